package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appregistry/internal/application/models"
	"appregistry/internal/application/reconcile"
	"appregistry/internal/application/store"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	platformstrings "appregistry/pkg/platform/strings"
	"appregistry/pkg/requestcontext"
)

// Update applies a partial update. Present fields overwrite, absent
// fields stay; the three child collections are reconciled against the
// stored state and patch entries carrying unknown ids are rejected.
func (s *Service) Update(ctx context.Context, appID id.ApplicationID, req models.PatchApplicationRequest) (*models.Application, error) {
	ctx, span := tracer.Start(ctx, "application.Update",
		trace.WithAttributes(attribute.String("application.id", appID.String())))
	defer span.End()

	callerID := requestcontext.UserID(ctx)
	if callerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated user required")
	}

	existing, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, translateStoreErr(err, appID)
	}

	upd := store.Update{
		Label:       req.Label,
		ShortName:   req.ShortName,
		Logo:        req.Logo,
		Description: req.Description,
		UpdatedAt:   requestcontext.Now(ctx),
		UpdatedBy:   callerID,
	}
	if req.Label != nil && *req.Label == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "label cannot be cleared")
	}
	if req.Purposes != nil {
		purposes := platformstrings.DedupeAndTrim(*req.Purposes)
		upd.Purposes = &purposes
	}
	if req.Tags != nil {
		tags := platformstrings.DedupeAndTrim(*req.Tags)
		upd.Tags = &tags
	}

	if req.ParentID != nil {
		change, err := s.parentChange(ctx, appID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		upd.Parent = change
	}

	if req.Lifecycle != nil {
		change, err := lifecycleChange(existing.Lifecycle, *req.Lifecycle)
		if err != nil {
			return nil, err
		}
		upd.Lifecycle = change
	}

	if req.Actors != nil {
		changes, err := s.actorChanges(ctx, existing.Actors, *req.Actors)
		if err != nil {
			return nil, err
		}
		upd.Actors = changes
	}
	if req.Compliances != nil {
		changes, err := complianceChanges(existing.Compliances, *req.Compliances)
		if err != nil {
			return nil, err
		}
		upd.Compliances = changes
	}
	if req.ExternalResources != nil {
		changes, err := resourceChanges(existing.ExternalResources, *req.ExternalResources)
		if err != nil {
			return nil, err
		}
		upd.ExternalResources = changes
	}

	err = s.tx.RunInTx(ctx, func(st store.Store) error {
		return st.Apply(ctx, appID, upd)
	})
	if err != nil {
		return nil, translateStoreErr(err, appID)
	}

	s.metrics.IncrementApplicationsUpdated()
	s.logger.InfoContext(ctx, "application updated", "application_id", appID.String())

	updated, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, translateStoreErr(err, appID)
	}
	return updated, nil
}

// parentChange resolves the parentId field: empty string disconnects,
// anything else must be an existing application that does not close a
// cycle through this one.
func (s *Service) parentChange(ctx context.Context, appID id.ApplicationID, raw string) (*store.ParentChange, error) {
	if raw == "" {
		return &store.ParentChange{Disconnect: true}, nil
	}
	parentID, err := id.ParseApplicationID(raw)
	if err != nil {
		return nil, err
	}
	if parentID == appID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "an application cannot be its own parent")
	}
	if _, err := s.store.FindByID(ctx, parentID); err != nil {
		return nil, translateStoreErr(err, parentID)
	}
	if err := s.checkNoCycle(ctx, appID, parentID); err != nil {
		return nil, err
	}
	return &store.ParentChange{Parent: parentID}, nil
}

// checkNoCycle walks up from the candidate parent. The walk is bounded by
// the catalog size so a corrupt chain cannot loop forever.
func (s *Service) checkNoCycle(ctx context.Context, appID, parentID id.ApplicationID) error {
	bound, err := s.store.Count(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to inspect parent chain")
	}
	current := parentID
	for i := 0; i <= bound; i++ {
		next, err := s.store.ParentOf(ctx, current)
		if err != nil {
			return translateStoreErr(err, current)
		}
		if next == nil {
			return nil
		}
		if *next == appID {
			return dErrors.New(dErrors.CodeInvariantViolation, "parent relation would form a cycle")
		}
		current = *next
	}
	return dErrors.New(dErrors.CodeInvariantViolation, "parent relation would form a cycle")
}

func lifecycleChange(current models.Lifecycle, patch models.PatchLifecycle) (*store.LifecycleChange, error) {
	change := &store.LifecycleChange{}
	merged := current

	if patch.Status != nil {
		next := models.LifecycleStatus(*patch.Status)
		if !next.Valid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown lifecycle status %q", *patch.Status)
		}
		if !current.Status.CanTransitionTo(next) {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"lifecycle cannot move from %s back to %s", current.Status, next)
		}
		change.Status = &next
		merged.Status = next
	}
	if patch.FirstProductionDate != nil {
		first, err := models.ParseDate("firstProductionDate", *patch.FirstProductionDate)
		if err != nil {
			return nil, err
		}
		change.FirstProductionDate = &first
		merged.FirstProductionDate = first
	}
	if patch.PlannedDecommissioningDate != nil {
		if *patch.PlannedDecommissioningDate == "" {
			change.ClearPlannedDecommissioning = true
			merged.PlannedDecommissioningDate = nil
		} else {
			planned, err := models.ParseDate("plannedDecommissioningDate", *patch.PlannedDecommissioningDate)
			if err != nil {
				return nil, err
			}
			change.PlannedDecommissioningDate = &planned
			merged.PlannedDecommissioningDate = &planned
		}
	}

	if merged.PlannedDecommissioningDate != nil && !merged.PlannedDecommissioningDate.After(merged.FirstProductionDate) {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"plannedDecommissioningDate must be after firstProductionDate")
	}
	return change, nil
}

func (s *Service) actorChanges(ctx context.Context, current []models.Actor, patches []models.ActorPatch) (*store.ActorChanges, error) {
	byID := make(map[string]models.Actor, len(current))
	existingIDs := make([]string, 0, len(current))
	var ownerID string
	for _, a := range current {
		key := a.ID.String()
		byID[key] = a
		existingIDs = append(existingIDs, key)
		if a.Role == models.OwnerRole {
			ownerID = key
		}
	}

	plan := reconcile.Diff(existingIDs, patches, func(p models.ActorPatch) string { return p.ID })
	if len(plan.Unmatched) > 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"actor %s does not belong to this application", plan.Unmatched[0].ID)
	}
	for _, deleted := range plan.Delete {
		if deleted == ownerID {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "the Owner actor cannot be removed")
		}
	}

	changes := &store.ActorChanges{Delete: plan.Delete}
	for _, p := range plan.Create {
		actor, err := buildActor(models.CreateActor{
			Role:         deref(p.Role),
			ActorType:    deref(p.ActorType),
			Email:        deref(p.Email),
			Organization: deref(p.Organization),
		})
		if err != nil {
			return nil, err
		}
		changes.Create = append(changes.Create, actor)
	}
	for _, p := range plan.Update {
		actor := byID[p.ID]
		if actor.Role == models.OwnerRole && p.Role != nil && *p.Role != models.OwnerRole {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "the Owner actor role cannot change")
		}
		if p.Role != nil {
			actor.Role = *p.Role
		}
		if p.ActorType != nil {
			t := models.ActorType(*p.ActorType)
			if !t.Valid() {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown actor type %q", *p.ActorType)
			}
			actor.Type = t
		}
		if p.Email != nil {
			actor.Email = *p.Email
		}
		if p.Organization != nil {
			actor.Organization = *p.Organization
		}
		changes.Update = append(changes.Update, actor)
	}
	return changes, nil
}

func complianceChanges(current []models.Compliance, patches []models.CompliancePatch) (*store.ComplianceChanges, error) {
	byID := make(map[string]models.Compliance, len(current))
	existingIDs := make([]string, 0, len(current))
	for _, c := range current {
		byID[c.ID.String()] = c
		existingIDs = append(existingIDs, c.ID.String())
	}

	plan := reconcile.Diff(existingIDs, patches, func(p models.CompliancePatch) string { return p.ID })
	if len(plan.Unmatched) > 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"compliance %s does not belong to this application", plan.Unmatched[0].ID)
	}

	changes := &store.ComplianceChanges{Delete: plan.Delete}
	for _, p := range plan.Create {
		c, err := buildCompliance(models.CreateCompliance{
			Type:          deref(p.Type),
			Name:          deref(p.Name),
			Status:        deref(p.Status),
			ValidityStart: deref(p.ValidityStart),
			ValidityEnd:   deref(p.ValidityEnd),
			ScoreValue:    deref(p.ScoreValue),
			ScoreUnit:     deref(p.ScoreUnit),
			Notes:         deref(p.Notes),
		})
		if err != nil {
			return nil, err
		}
		changes.Create = append(changes.Create, c)
	}
	for _, p := range plan.Update {
		c := byID[p.ID]
		if p.Name != nil {
			if *p.Name == "" {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "compliance name is required")
			}
			c.Name = *p.Name
		}
		if p.Type != nil {
			t := models.ComplianceType(*p.Type)
			if !t.Valid() {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance type %q", *p.Type)
			}
			c.Type = t
		}
		if p.Status != nil {
			st := models.ComplianceStatus(*p.Status)
			if !st.Valid() {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance status %q", *p.Status)
			}
			c.Status = st
		}
		var err error
		if p.ValidityStart != nil {
			if c.ValidityStart, err = models.ParseOptionalDate("validityStart", *p.ValidityStart); err != nil {
				return nil, err
			}
		}
		if p.ValidityEnd != nil {
			if c.ValidityEnd, err = models.ParseOptionalDate("validityEnd", *p.ValidityEnd); err != nil {
				return nil, err
			}
		}
		if c.ValidityStart != nil && c.ValidityEnd != nil && c.ValidityEnd.Before(*c.ValidityStart) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "validityEnd must not precede validityStart")
		}
		if p.ScoreValue != nil {
			c.ScoreValue = *p.ScoreValue
		}
		if p.ScoreUnit != nil {
			c.ScoreUnit = *p.ScoreUnit
		}
		if p.Notes != nil {
			c.Notes = *p.Notes
		}
		changes.Update = append(changes.Update, c)
	}
	return changes, nil
}

func resourceChanges(current []models.ExternalResource, patches []models.ExternalResourcePatch) (*store.ExternalResourceChanges, error) {
	byID := make(map[string]models.ExternalResource, len(current))
	existingIDs := make([]string, 0, len(current))
	for _, r := range current {
		byID[r.ID.String()] = r
		existingIDs = append(existingIDs, r.ID.String())
	}

	plan := reconcile.Diff(existingIDs, patches, func(p models.ExternalResourcePatch) string { return p.ID })
	if len(plan.Unmatched) > 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"external resource %s does not belong to this application", plan.Unmatched[0].ID)
	}

	changes := &store.ExternalResourceChanges{Delete: plan.Delete}
	for _, p := range plan.Create {
		r, err := buildResource(models.CreateExternalResource{
			Link:        deref(p.Link),
			Description: deref(p.Description),
			Type:        deref(p.Type),
		})
		if err != nil {
			return nil, err
		}
		changes.Create = append(changes.Create, r)
	}
	for _, p := range plan.Update {
		r := byID[p.ID]
		if p.Link != nil {
			if *p.Link == "" {
				return nil, dErrors.New(dErrors.CodeInvalidInput, "external resource link is required")
			}
			r.Link = *p.Link
		}
		if p.Description != nil {
			r.Description = *p.Description
		}
		if p.Type != nil {
			t := models.ExternalResourceType(*p.Type)
			if !t.Valid() {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown external resource type %q", *p.Type)
			}
			r.Type = t
		}
		changes.Update = append(changes.Update, r)
	}
	return changes, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
