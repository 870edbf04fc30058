package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository/common"
)

const notificationColumns = `id, user_id, kind, title, body, COALESCE(data, '{}'::jsonb) AS data, is_read, created_at`

// NotificationRepository уведомления о событиях заявок.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	// пустой data хранится как NULL
	var data interface{}
	if len(n.Data) > 0 {
		data = []byte(n.Data)
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (user_id, kind, title, body, data, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		n.UserID, n.Kind, n.Title, n.Body, data, n.IsRead,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if common.IsNoRows(err) {
		return nil, apperror.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notification repository: get %w", err)
	}
	return &n, nil
}

// List уведомления пользователя, новые первыми. limit 0 без ограничения.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	var args common.Args
	conds := []string{"user_id = " + args.Add(userID)}
	if unreadOnly {
		conds = append(conds, "is_read = FALSE")
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications` + common.Where(conds) + ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)
	}

	var out []models.Notification
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("notification repository: list %w", err)
	}
	return out, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark read %w", err)
	}
	return common.CheckRowsAffected(res, apperror.ErrNotificationNotFound)
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID); err != nil {
		return fmt.Errorf("notification repository: mark all read %w", err)
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}
	return n, nil
}
