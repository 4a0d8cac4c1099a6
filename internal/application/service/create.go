package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appregistry/internal/application/models"
	"appregistry/internal/application/store"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	platformstrings "appregistry/pkg/platform/strings"
	"appregistry/pkg/requestcontext"
)

// Create registers a new application. The authenticated caller becomes
// the owner: an Owner actor is synthesized and prepended to the supplied
// actors, and the audit metadata is stamped with the caller.
func (s *Service) Create(ctx context.Context, req models.CreateApplicationRequest) (*models.Application, error) {
	ctx, span := tracer.Start(ctx, "application.Create",
		trace.WithAttributes(attribute.String("application.label", req.Label)))
	defer span.End()

	ownerID := requestcontext.UserID(ctx)
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user required")
	}
	if err := validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid application payload")
	}
	if strings.TrimSpace(req.Label) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "label is required")
	}
	if err := s.ensureUserExists(ctx, ownerID); err != nil {
		return nil, err
	}

	lifecycle, err := buildLifecycle(req.Lifecycle)
	if err != nil {
		return nil, err
	}

	var parentID *id.ApplicationID
	if req.ParentID != "" {
		parsed, err := id.ParseApplicationID(req.ParentID)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.FindByID(ctx, parsed); err != nil {
			return nil, translateStoreErr(err, parsed)
		}
		parentID = &parsed
	}

	actors := []models.Actor{ownerActor(ownerID, requestcontext.UserEmail(ctx))}
	for _, in := range req.Actors {
		actor, err := buildActor(in)
		if err != nil {
			return nil, err
		}
		if actor.UserID != nil {
			if err := s.ensureUserExists(ctx, *actor.UserID); err != nil {
				return nil, err
			}
		}
		actors = append(actors, actor)
	}

	compliances := make([]models.Compliance, 0, len(req.Compliances))
	for _, in := range req.Compliances {
		c, err := buildCompliance(in)
		if err != nil {
			return nil, err
		}
		compliances = append(compliances, c)
	}

	resources := make([]models.ExternalResource, 0, len(req.ExternalResources))
	for _, in := range req.ExternalResources {
		r, err := buildResource(in)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}

	now := requestcontext.Now(ctx)
	app := &models.Application{
		ID:                id.NewApplicationID(),
		Label:             strings.TrimSpace(req.Label),
		ShortName:         req.ShortName,
		Logo:              req.Logo,
		Description:       req.Description,
		Purposes:          platformstrings.DedupeAndTrim(req.Purposes),
		Tags:              platformstrings.DedupeAndTrim(req.Tags),
		OwnerID:           ownerID,
		ParentID:          parentID,
		Lifecycle:         lifecycle,
		Actors:            actors,
		Compliances:       compliances,
		ExternalResources: resources,
		Metadata: models.Metadata{
			ID:        uuid.New(),
			CreatedAt: now,
			CreatedBy: ownerID,
			UpdatedAt: now,
			UpdatedBy: ownerID,
		},
	}

	err = s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.Insert(ctx, app)
	})
	if err != nil {
		return nil, translateStoreErr(err, app.ID)
	}

	s.metrics.IncrementApplicationsCreated()
	s.logger.InfoContext(ctx, "application created",
		"application_id", app.ID.String(), "label", app.Label)
	return app, nil
}

// ownerActor is the actor entry synthesized from the creating user.
func ownerActor(ownerID id.UserID, email string) models.Actor {
	return models.Actor{
		ID:     uuid.New(),
		Role:   models.OwnerRole,
		Type:   models.ActorResponsable,
		Email:  email,
		UserID: &ownerID,
	}
}

func buildLifecycle(in models.CreateLifecycle) (models.Lifecycle, error) {
	status := models.LifecycleStatus(in.Status)
	if in.Status == "" {
		status = models.LifecycleUnderConstruction
	}
	if !status.Valid() {
		return models.Lifecycle{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown lifecycle status %q", in.Status)
	}

	first, err := models.ParseDate("firstProductionDate", in.FirstProductionDate)
	if err != nil {
		return models.Lifecycle{}, err
	}
	planned, err := models.ParseOptionalDate("plannedDecommissioningDate", in.PlannedDecommissioningDate)
	if err != nil {
		return models.Lifecycle{}, err
	}
	if planned != nil && !planned.After(first) {
		return models.Lifecycle{}, dErrors.New(dErrors.CodeInvalidInput,
			"plannedDecommissioningDate must be after firstProductionDate")
	}

	return models.Lifecycle{
		ID:                         uuid.New(),
		Status:                     status,
		FirstProductionDate:        first,
		PlannedDecommissioningDate: planned,
	}, nil
}

func buildActor(in models.CreateActor) (models.Actor, error) {
	if strings.EqualFold(in.Role, models.OwnerRole) {
		return models.Actor{}, dErrors.New(dErrors.CodeInvalidInput, "the Owner actor is managed automatically")
	}
	actor := models.Actor{
		ID:           uuid.New(),
		Role:         in.Role,
		Email:        in.Email,
		Organization: in.Organization,
	}
	if in.ActorType != "" {
		t := models.ActorType(in.ActorType)
		if !t.Valid() {
			return models.Actor{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown actor type %q", in.ActorType)
		}
		actor.Type = t
	}
	if in.UserID != "" {
		userID, err := id.ParseUserID(in.UserID)
		if err != nil {
			return models.Actor{}, err
		}
		actor.UserID = &userID
	}
	return actor, nil
}

func buildCompliance(in models.CreateCompliance) (models.Compliance, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Compliance{}, dErrors.New(dErrors.CodeInvalidInput, "compliance name is required")
	}
	c := models.Compliance{
		ID:         uuid.New(),
		Name:       in.Name,
		ScoreValue: in.ScoreValue,
		ScoreUnit:  in.ScoreUnit,
		Notes:      in.Notes,
	}
	if in.Type != "" {
		t := models.ComplianceType(in.Type)
		if !t.Valid() {
			return models.Compliance{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance type %q", in.Type)
		}
		c.Type = t
	}
	if in.Status != "" {
		st := models.ComplianceStatus(in.Status)
		if !st.Valid() {
			return models.Compliance{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance status %q", in.Status)
		}
		c.Status = st
	}
	var err error
	if c.ValidityStart, err = models.ParseOptionalDate("validityStart", in.ValidityStart); err != nil {
		return models.Compliance{}, err
	}
	if c.ValidityEnd, err = models.ParseOptionalDate("validityEnd", in.ValidityEnd); err != nil {
		return models.Compliance{}, err
	}
	if c.ValidityStart != nil && c.ValidityEnd != nil && c.ValidityEnd.Before(*c.ValidityStart) {
		return models.Compliance{}, dErrors.New(dErrors.CodeInvalidInput, "validityEnd must not precede validityStart")
	}
	return c, nil
}

func buildResource(in models.CreateExternalResource) (models.ExternalResource, error) {
	if strings.TrimSpace(in.Link) == "" {
		return models.ExternalResource{}, dErrors.New(dErrors.CodeInvalidInput, "external resource link is required")
	}
	r := models.ExternalResource{
		ID:          uuid.New(),
		Link:        in.Link,
		Description: in.Description,
	}
	if in.Type != "" {
		t := models.ExternalResourceType(in.Type)
		if !t.Valid() {
			return models.ExternalResource{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown external resource type %q", in.Type)
		}
		r.Type = t
	}
	return r, nil
}
