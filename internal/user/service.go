package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"appregistry/internal/platform/metrics"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	emailutil "appregistry/pkg/email"
	"appregistry/pkg/platform/sentinel"
	"appregistry/pkg/requestcontext"
)

// Service is the user directory: callers are looked up, and lazily
// created, by email on their first authenticated request.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, metrics: m, logger: logger}
}

// FindOrCreateByEmail returns the user with the given email, creating the
// record if it does not exist yet. The identity-provider subject is
// attached on create and refreshed when it changes.
func (s *Service) FindOrCreateByEmail(ctx context.Context, email, subject string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}

	existing, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if subject != "" && existing.Subject != subject {
			if err := s.store.UpdateSubject(ctx, existing.ID, subject); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user subject")
			}
			existing.Subject = subject
		}
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// fall through to create
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	firstName, lastName := emailutil.DeriveNameFromEmail(email)
	created := &User{
		ID:        id.NewUserID(),
		Email:     strings.ToLower(email),
		FirstName: firstName,
		LastName:  lastName,
		Subject:   subject,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Insert(ctx, created); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Concurrent first request for the same email won the race.
			winner, findErr := s.store.FindByEmail(ctx, email)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to look up user")
			}
			return winner, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.metrics.IncrementUsersCreated()
	s.logger.InfoContext(ctx, "user created on first login", "user_id", created.ID.String())
	return created, nil
}

// ResolveByEmail narrows FindOrCreateByEmail for the auth middleware.
func (s *Service) ResolveByEmail(ctx context.Context, email, subject string) (id.UserID, error) {
	u, err := s.FindOrCreateByEmail(ctx, email, subject)
	if err != nil {
		return id.UserID{}, err
	}
	return u.ID, nil
}

// GetByID fetches a user by internal id.
func (s *Service) GetByID(ctx context.Context, userID id.UserID) (*User, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "user %s not found", userID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return u, nil
}
