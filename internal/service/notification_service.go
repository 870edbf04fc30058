package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/models"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// DeviceTokenStore токены устройств для push уведомлений.
type DeviceTokenStore interface {
	DeviceTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
	DeleteDeviceTokens(ctx context.Context, tokens []string) error
}

// LiveNotifier доставляет событие в открытые websocket соединения пользователя.
type LiveNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// PushSender отправляет push и возвращает недействительные токены.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error)
}

// NotificationMessage уведомление для набора пользователей.
type NotificationMessage struct {
	UserIDs []uuid.UUID
	Kind    string
	Title   string
	Body    string
	Data    map[string]string
}

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo    NotificationRepository
	devices DeviceTokenStore
	live    LiveNotifier
	push    PushSender
}

// NewNotificationService создаёт новый сервис уведомлений. live и push могут быть nil.
func NewNotificationService(repo NotificationRepository, devices DeviceTokenStore, live LiveNotifier, push PushSender) *NotificationService {
	return &NotificationService{repo: repo, devices: devices, live: live, push: push}
}

// Send сохраняет уведомление каждому получателю, отправляет его в websocket и push.
// Сбой доставки в websocket или push только логируется.
func (s *NotificationService) Send(ctx context.Context, msg NotificationMessage) error {
	if len(msg.UserIDs) == 0 {
		return nil
	}
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("notification service: marshal data %w", err)
	}

	for _, userID := range msg.UserIDs {
		n := &models.Notification{
			UserID: userID,
			Kind:   msg.Kind,
			Title:  msg.Title,
			Body:   msg.Body,
			Data:   data,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return err
		}
		if s.live != nil {
			if err := s.live.BroadcastToUser(userID, msg.Kind, n); err != nil && logger.Log != nil {
				logger.Log.WithError(err).WithField("user_id", userID).Warn("notification service: websocket")
			}
		}
	}

	s.sendPush(ctx, msg)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, msg NotificationMessage) {
	if s.push == nil || s.devices == nil {
		return
	}
	tokens, err := s.devices.DeviceTokens(ctx, msg.UserIDs)
	if err != nil || len(tokens) == 0 {
		if err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warn("notification service: токены устройств")
		}
		return
	}

	data := map[string]string{"kind": msg.Kind}
	for k, v := range msg.Data {
		data[k] = v
	}
	stale, err := s.push.Send(ctx, tokens, msg.Title, msg.Body, data)
	if err != nil && logger.Log != nil {
		logger.Log.WithError(err).WithField("kind", msg.Kind).Warn("notification service: push")
	}
	if len(stale) > 0 {
		if err := s.devices.DeleteDeviceTokens(ctx, stale); err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warn("notification service: удаление токенов")
		}
	}
}

// NotificationPage уведомления пользователя и число непрочитанных.
type NotificationPage struct {
	Items  []models.Notification `json:"results"`
	Unread int                   `json:"unread"`
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) (*NotificationPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, Unread: unread}, nil
}

// MarkAsRead отмечает уведомление пользователя прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
