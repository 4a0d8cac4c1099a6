package anomaly

import (
	"context"

	id "appregistry/pkg/domain"
)

// Store persists anomaly notifications. Implementations return sentinel
// errors; the service translates them into coded domain errors.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, notificationID id.NotificationID) (*Notification, error)
	// FindAll returns every notification, newest first.
	FindAll(ctx context.Context) ([]*Notification, error)
	// FindByNotifier returns the notifications reported by a user, newest
	// first. An unknown notifier yields an empty list, not an error.
	FindByNotifier(ctx context.Context, notifierID id.UserID) ([]*Notification, error)
	// FindByApplication returns the notifications against an application,
	// newest first.
	FindByApplication(ctx context.Context, appID id.ApplicationID) ([]*Notification, error)
	// Update overwrites the mutable fields (description, status,
	// updated_at) of the notification with n's id.
	Update(ctx context.Context, n *Notification) error
	Delete(ctx context.Context, notificationID id.NotificationID) error
}
