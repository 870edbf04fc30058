package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *mockNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type memoryDevices struct {
	tokens  map[uuid.UUID][]string
	deleted []string
}

func (d *memoryDevices) DeviceTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	var out []string
	for _, id := range userIDs {
		out = append(out, d.tokens[id]...)
	}
	return out, nil
}

func (d *memoryDevices) DeleteDeviceTokens(ctx context.Context, tokens []string) error {
	d.deleted = append(d.deleted, tokens...)
	return nil
}

type recordingLive struct {
	events map[uuid.UUID][]string
}

func (l *recordingLive) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	l.events[userID] = append(l.events[userID], event)
	return nil
}

type recordingPush struct {
	tokens []string
	data   map[string]string
	stale  []string
}

func (p *recordingPush) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	p.tokens = tokens
	p.data = data
	return p.stale, nil
}

func TestNotificationService_SendFansOutToAllChannels(t *testing.T) {
	repo := new(mockNotificationRepo)
	alice, bob := uuid.New(), uuid.New()
	devices := &memoryDevices{tokens: map[uuid.UUID][]string{alice: {"a1"}, bob: {"b1", "b2"}}}
	live := &recordingLive{events: map[uuid.UUID][]string{}}
	push := &recordingPush{stale: []string{"b2"}}
	svc := NewNotificationService(repo, devices, live, push)
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.Kind == "request_assigned" && string(n.Data) == `{"request_id":"r1"}`
	})).Return(nil).Twice()

	err := svc.Send(ctx, NotificationMessage{
		UserIDs: []uuid.UUID{alice, bob},
		Kind:    "request_assigned",
		Title:   "New assignment",
		Body:    "FLGP-20240101-0001",
		Data:    map[string]string{"request_id": "r1"},
	})
	require.NoError(t, err)

	repo.AssertExpectations(t)
	assert.Equal(t, []string{"request_assigned"}, live.events[alice])
	assert.Equal(t, []string{"request_assigned"}, live.events[bob])
	assert.ElementsMatch(t, []string{"a1", "b1", "b2"}, push.tokens)
	assert.Equal(t, "request_assigned", push.data["kind"])
	assert.Equal(t, []string{"b2"}, devices.deleted)
}

func TestNotificationService_SendWithoutRecipients(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil, nil, nil)

	require.NoError(t, svc.Send(context.Background(), NotificationMessage{Kind: "request_approved"}))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNotificationService_ListIncludesUnread(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("List", ctx, userID, 20, 0, false).Return(nil, nil)
	repo.On("CountUnread", ctx, userID).Return(3, nil)

	page, err := svc.ListNotifications(ctx, userID, 0, -5, false)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 3, page.Unread)
}
