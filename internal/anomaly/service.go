package anomaly

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	appmodels "appregistry/internal/application/models"
	"appregistry/internal/platform/metrics"
	"appregistry/internal/user"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	"appregistry/pkg/platform/sentinel"
	"appregistry/pkg/requestcontext"
)

var tracer = otel.Tracer("appregistry.anomaly")

var validate = validator.New()

// Applications is the slice of the application service the workflow
// needs.
type Applications interface {
	Get(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error)
}

// Users resolves notifier ids to directory records.
type Users interface {
	GetByID(ctx context.Context, userID id.UserID) (*user.User, error)
}

// Service owns the anomaly-notification workflow.
type Service struct {
	store        Store
	applications Applications
	users        Users
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewService(store Store, applications Applications, users Users, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, applications: applications, users: users, metrics: m, logger: logger}
}

// Create files a new report. The caller becomes the notifier and the
// status always starts at in_pending regardless of the payload.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	ctx, span := tracer.Start(ctx, "anomaly.Create")
	defer span.End()

	notifierID := requestcontext.UserID(ctx)
	if notifierID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user required")
	}
	if err := validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid notification payload")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "description is required")
	}

	appID, err := id.ParseApplicationID(req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.applications.Get(ctx, appID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	n := &Notification{
		ID:            id.NewNotificationID(),
		ApplicationID: appID,
		NotifierID:    notifierID,
		Description:   strings.TrimSpace(req.Description),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		if errors.Is(err, sentinel.ErrForeignKey) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "application %s not found", appID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notification")
	}

	s.metrics.IncrementNotificationsCreated()
	s.logger.InfoContext(ctx, "anomaly notification created",
		"notification_id", n.ID.String(), "application_id", appID.String())
	return n, nil
}

// ListForCaller returns the caller's own reports, newest first, enriched
// with the application label. A caller without reports gets an empty
// list.
func (s *Service) ListForCaller(ctx context.Context) ([]*ApplicationView, error) {
	notifierID := requestcontext.UserID(ctx)
	if notifierID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user required")
	}

	notifications, err := s.store.FindByNotifier(ctx, notifierID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}

	views := make([]*ApplicationView, 0, len(notifications))
	for _, n := range notifications {
		view := &ApplicationView{Notification: *n}
		if app, err := s.applications.Get(ctx, n.ApplicationID); err == nil {
			view.ApplicationLabel = app.Label
		}
		views = append(views, view)
	}
	return views, nil
}

// ListForApplication returns the reports filed against an application,
// newest first, enriched with the notifier's email.
func (s *Service) ListForApplication(ctx context.Context, appID id.ApplicationID) ([]*NotifierView, error) {
	ctx, span := tracer.Start(ctx, "anomaly.ListForApplication",
		trace.WithAttributes(attribute.String("application.id", appID.String())))
	defer span.End()

	if _, err := s.applications.Get(ctx, appID); err != nil {
		return nil, err
	}

	notifications, err := s.store.FindByApplication(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}

	views := make([]*NotifierView, 0, len(notifications))
	for _, n := range notifications {
		view := &NotifierView{Notification: *n}
		if u, err := s.users.GetByID(ctx, n.NotifierID); err == nil {
			view.NotifierEmail = u.Email
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns one report by id.
func (s *Service) Get(ctx context.Context, notificationID id.NotificationID) (*Notification, error) {
	n, err := s.store.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", notificationID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notification")
	}
	return n, nil
}

// List returns every report, newest first.
func (s *Service) List(ctx context.Context) ([]*Notification, error) {
	notifications, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return notifications, nil
}

// Update merges the present fields onto a report. A status change must
// move forward through the workflow; staying in place is a no-op accepted
// for idempotent clients.
func (s *Service) Update(ctx context.Context, notificationID id.NotificationID, req UpdateRequest) (*Notification, error) {
	if err := validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid notification patch")
	}

	n, err := s.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "description cannot be cleared")
		}
		n.Description = desc
	}
	if req.Status != nil {
		next := Status(*req.Status)
		if !n.Status.CanTransitionTo(next) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"notification cannot move from %s back to %s", n.Status, next)
		}
		n.Status = next
	}

	n.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update notification")
	}

	s.logger.InfoContext(ctx, "anomaly notification updated",
		"notification_id", notificationID.String(), "status", string(n.Status))
	return n, nil
}

// Delete removes a report.
func (s *Service) Delete(ctx context.Context, notificationID id.NotificationID) error {
	if err := s.store.Delete(ctx, notificationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "notification %s not found", notificationID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete notification")
	}
	s.logger.InfoContext(ctx, "anomaly notification deleted",
		"notification_id", notificationID.String())
	return nil
}
