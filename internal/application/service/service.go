// Package service implements the registry operations on application
// aggregates: create with owner synthesis, partial update with child
// reconciliation, search and export.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appregistry/internal/application/models"
	"appregistry/internal/application/store"
	"appregistry/internal/platform/metrics"
	"appregistry/internal/user"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	"appregistry/pkg/platform/sentinel"
)

var tracer = otel.Tracer("appregistry.application")

var validate = validator.New()

// Users is the slice of the user directory the service needs.
type Users interface {
	GetByID(ctx context.Context, userID id.UserID) (*user.User, error)
}

// Tx runs a function against a transactional view of the application
// store. Implementations must roll back when the function errors.
type Tx interface {
	RunInTx(ctx context.Context, fn func(store.Store) error) error
}

// Service owns application aggregate operations.
type Service struct {
	store   store.Store
	tx      Tx
	users   Users
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(st store.Store, tx Tx, users Users, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: st, tx: tx, users: users, metrics: m, logger: logger}
}

// Get returns one aggregate by id.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, translateStoreErr(err, appID)
	}
	return app, nil
}

// List returns a page of aggregates, most recently updated first.
func (s *Service) List(ctx context.Context, page, limit int) ([]*models.Application, error) {
	apps, err := s.store.List(ctx, page, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// Search filters the catalog. A link query switches to exact lookup
// through external resource links; label and tag filters otherwise apply
// together.
func (s *Service) Search(ctx context.Context, q models.SearchQuery) ([]*models.Application, error) {
	ctx, span := tracer.Start(ctx, "application.Search",
		trace.WithAttributes(attribute.String("search.label", q.Label)))
	defer span.End()

	q = q.Normalize()
	if q.Link != "" {
		apps, err := s.store.FindByResourceLink(ctx, q.Link)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search applications by link")
		}
		return pageSlice(apps, q), nil
	}

	apps, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search applications")
	}
	return apps, nil
}

// Delete removes an aggregate and its owned children.
func (s *Service) Delete(ctx context.Context, appID id.ApplicationID) error {
	ctx, span := tracer.Start(ctx, "application.Delete",
		trace.WithAttributes(attribute.String("application.id", appID.String())))
	defer span.End()

	err := s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.Delete(ctx, appID)
	})
	if err != nil {
		return translateStoreErr(err, appID)
	}
	s.logger.InfoContext(ctx, "application deleted", "application_id", appID.String())
	return nil
}

func translateStoreErr(err error, appID id.ApplicationID) error {
	var domainErr *dErrors.Error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "application %s not found", appID)
	case errors.Is(err, sentinel.ErrForeignKey):
		return dErrors.New(dErrors.CodeInvalidInput, "referenced record does not exist")
	case errors.As(err, &domainErr):
		// Already coded, e.g. a transaction timeout.
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "application store failure")
	}
}

func pageSlice(apps []*models.Application, q models.SearchQuery) []*models.Application {
	start := q.Offset()
	if start >= len(apps) {
		return []*models.Application{}
	}
	end := start + q.Limit
	if end > len(apps) {
		end = len(apps)
	}
	return apps[start:end]
}

// ensureUserExists verifies a referenced user id resolves in the
// directory.
func (s *Service) ensureUserExists(ctx context.Context, userID id.UserID) error {
	_, err := s.users.GetByID(ctx, userID)
	return err
}
