package services

import (
	"context"
	"time"

	"trip-share-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notification types
const (
	NotifyApplicationReceived = "application_received"
	NotifyApplicationAccepted = "application_accepted"
	NotifyApplicationRejected = "application_rejected"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// Pusher delivers a mobile push notification to a device
type Pusher interface {
	Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

// NotificationService stores in-app notifications and fans them out
type NotificationService struct {
	store  NotificationStore
	users  UserStore
	hub    Publisher
	pusher Pusher
	now    func() time.Time
}

// NewNotificationService creates a new notification service. hub and pusher
// may be nil.
func NewNotificationService(st Stores, hub Publisher, pusher Pusher) *NotificationService {
	return &NotificationService{
		store:  st.Notifications,
		users:  st.Users,
		hub:    hub,
		pusher: pusher,
		now:    time.Now,
	}
}

// Notify stores a notification for userID and delivers it over the websocket
// and push channels when available.
func (s *NotificationService) Notify(ctx context.Context, userID, kind, title, message, refType, refID string) (*models.Notification, error) {
	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		RefType:   refType,
		RefID:     refID,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, upstream("failed to create notification", err)
	}

	broadcast(s.hub, []string{userID}, "", WSMessage{Type: EventNotification, Data: n})

	if s.pusher != nil {
		user, err := s.users.GetByID(ctx, userID)
		if err == nil && user.PushToken != nil && *user.PushToken != "" {
			data := map[string]string{"type": kind, "ref_type": refType, "ref_id": refID}
			bestEffort("push_notification", s.pusher.Push(ctx, *user.PushToken, title, message, data))
		}
	}

	log.Debug().Str("user_id", userID).Str("type", kind).Msg("Notification sent")
	return n, nil
}

// Publish delivers a realtime event to userID without storing it
func (s *NotificationService) Publish(userID string, message WSMessage) {
	broadcast(s.hub, []string{userID}, "", message)
}

// List returns the newest notifications of a user and the unread count
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]*models.Notification, int, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	list, err := s.store.List(ctx, userID, limit)
	if err != nil {
		return nil, 0, upstream("failed to get notifications", err)
	}
	unread, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, upstream("failed to count notifications", err)
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return list, unread, nil
}

// MarkRead marks the given notifications of userID as read
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, validationError("notification_ids", "notification_ids is required")
	}
	n, err := s.store.MarkRead(ctx, userID, ids)
	if err != nil {
		return 0, upstream("failed to mark notifications read", err)
	}
	return n, nil
}

// MarkAllRead marks every notification of userID as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, upstream("failed to mark notifications read", err)
	}
	return n, nil
}
