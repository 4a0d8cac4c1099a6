package user

import (
	"context"

	id "appregistry/pkg/domain"
)

// Store persists users. Implementations return sentinel.ErrNotFound and
// sentinel.ErrConflict; the service translates them into domain errors.
type Store interface {
	Insert(ctx context.Context, u *User) error
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// UpdateSubject records the identity-provider subject observed for an
	// existing user; the first login may predate the provider migration.
	UpdateSubject(ctx context.Context, userID id.UserID, subject string) error
}
