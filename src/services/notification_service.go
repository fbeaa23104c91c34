package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/theleywin/Backend-Social-Feed/src/events"
	"github.com/theleywin/Backend-Social-Feed/src/models"
	"github.com/theleywin/Backend-Social-Feed/src/store"
)

const msgNotificationNotFound = "Notification not found"

// NotificationService tells post owners about likes and comments on their
// posts. It is fed by the event bus.
type NotificationService struct {
	store store.NotificationStore
	now   func() time.Time
}

func NewNotificationService(st store.NotificationStore) *NotificationService {
	return &NotificationService{store: st, now: time.Now}
}

// HandleEvent is an events.Handler.
func (s *NotificationService) HandleEvent(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.PostLiked:
		return s.notify(ctx, e, models.NotificationTypeLike)
	case events.PostCommented:
		return s.notify(ctx, e, models.NotificationTypeComment)
	case events.PostUnliked:
		err := s.store.DeleteLikeNotification(ctx, e.Actor, e.PostID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	case events.PostDeleted:
		if !e.Cascade {
			return nil
		}
		n, err := s.store.DeleteNotificationsByPost(ctx, e.PostID)
		if err != nil {
			return err
		}
		slog.Debug("Deleted notifications of post", "post_id", e.PostID, "count", n)
	}
	return nil
}

func (s *NotificationService) notify(ctx context.Context, e events.Event, kind models.NotificationType) error {
	// Nobody is told about their own activity.
	if e.Recipient == "" || e.Actor == e.Recipient {
		return nil
	}

	at := e.At
	if at.IsZero() {
		at = s.now().UTC()
	}
	return s.store.InsertNotification(ctx, &models.Notification{
		Recipient: e.Recipient,
		Sender:    e.Actor,
		Type:      kind,
		PostID:    e.PostID,
		Read:      false,
		CreatedAt: at,
		UpdatedAt: at,
	})
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, user models.User) ([]models.Notification, error) {
	list, err := s.store.ListNotifications(ctx, user.Handle)
	if err != nil {
		slog.Error("Error finding notifications", "recipient", user.Handle, "error", err)
		return nil, storeError(err)
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, user models.User, id string) (*models.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, user.Handle)
	if err != nil {
		return nil, notFoundOr(err, msgNotificationNotFound)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, user models.User, id string) error {
	if err := s.store.DeleteNotification(ctx, id, user.Handle); err != nil {
		return notFoundOr(err, msgNotificationNotFound)
	}
	return nil
}
