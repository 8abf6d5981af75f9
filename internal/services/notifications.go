package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/store"
)

// maxLiveBacklog caps the unread notifications replayed on connect.
const maxLiveBacklog = 50

type NotifyInput struct {
	UserID     string
	FromUserID string
	Type       models.NotificationType
	Title      string
	Message    string
	TargetID   string
	TargetType string
	Data       map[string]interface{}
	// SkipIfExists suppresses a second notification with the same type,
	// sender, target and recipient.
	SkipIfExists bool
}

// NotificationService persists notifications and publishes them for live
// delivery. The stored row is the source of truth; publishing is
// best-effort.
type NotificationService struct {
	store store.Store
	bus   notify.Publisher
	now   func() time.Time
}

// Prepare writes the notification through s, which may be a transaction.
// It returns nil when the notification is suppressed.
func (n *NotificationService) Prepare(ctx context.Context, s store.Store, in NotifyInput) (*models.Notification, error) {
	if in.UserID == "" || in.UserID == in.FromUserID {
		return nil, nil
	}
	if in.SkipIfExists {
		exists, err := s.Notifications().Exists(ctx, store.NotificationKey{
			UserID:     in.UserID,
			FromUserID: in.FromUserID,
			Type:       in.Type,
			TargetID:   in.TargetID,
		})
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, nil
		}
	}

	note := &models.Notification{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		FromUserID: in.FromUserID,
		Type:       in.Type,
		Title:      in.Title,
		Message:    in.Message,
		TargetID:   in.TargetID,
		TargetType: in.TargetType,
		Data:       in.Data,
		CreatedAt:  n.now(),
	}
	if err := s.Notifications().Create(ctx, note); err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(in.Type)).Inc()
	return note, nil
}

// Deliver publishes a stored notification and the recipient's new unread
// count. Errors are logged only.
func (n *NotificationService) Deliver(ctx context.Context, note *models.Notification) {
	if note == nil || n.bus == nil {
		return
	}
	log := logging.Ctx(ctx)
	if ev, err := notify.NewEvent(notify.EventNotification, note.UserID, note); err == nil {
		if err := n.bus.Publish(ctx, ev); err != nil {
			metrics.NotificationPublishFailures.Inc()
			log.Warn().Err(err).Str("notification_id", note.ID).Msg("live publish failed")
		}
	}
	n.publishUnread(ctx, note.UserID)
}

func (n *NotificationService) publishUnread(ctx context.Context, userID string) {
	if n.bus == nil {
		return
	}
	count, err := n.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("unread count failed")
		return
	}
	ev, err := notify.NewEvent(notify.EventUnreadCount, userID, models.UnreadCount{Count: count})
	if err != nil {
		return
	}
	if err := n.bus.Publish(ctx, ev); err != nil {
		metrics.NotificationPublishFailures.Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("unread count publish failed")
	}
}

// Notify persists and delivers in one call.
func (n *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	note, err := n.Prepare(ctx, n.store, in)
	if err != nil {
		return nil, err
	}
	n.Deliver(ctx, note)
	return note, nil
}

// NotifyAll sends in to each user and returns how many were stored. It
// keeps going past individual failures.
func (n *NotificationService) NotifyAll(ctx context.Context, userIDs []string, in NotifyInput) (int, error) {
	sent := 0
	var firstErr error
	for _, id := range userIDs {
		in.UserID = id
		note, err := n.Notify(ctx, in)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if note != nil {
			sent++
		}
	}
	return sent, firstErr
}

func (n *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, p PageRequest) (models.Page[models.Notification], error) {
	items, total, err := n.store.Notifications().List(ctx, userID, unreadOnly, p.store())
	if err != nil {
		return models.Page[models.Notification]{}, err
	}
	return pageOf(items, total, p), nil
}

func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return n.store.Notifications().CountUnread(ctx, userID)
}

// Backlog returns up to 50 unread notifications, oldest first.
func (n *NotificationService) Backlog(ctx context.Context, userID string) ([]models.Notification, error) {
	items, _, err := n.store.Notifications().List(ctx, userID, true, store.Page{Limit: maxLiveBacklog})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (n *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := n.store.Notifications().MarkRead(ctx, userID, id); err != nil {
		return notFoundAs(err, ErrNotificationNotFound)
	}
	n.publishUnread(ctx, userID)
	return nil
}

func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := n.store.Notifications().MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	n.publishUnread(ctx, userID)
	return count, nil
}

func (n *NotificationService) Delete(ctx context.Context, userID, id string) error {
	err := n.store.Notifications().Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return err
	}
	n.publishUnread(ctx, userID)
	return nil
}
