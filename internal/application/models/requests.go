package models

import (
	"time"

	dErrors "appregistry/pkg/domain-errors"
	platformstrings "appregistry/pkg/platform/strings"
)

// Request DTOs for the application endpoints. The JSON field names match
// the public API contract, including the historical `externalRessource`
// spelling consumers already depend on.

// CreateLifecycle is the lifecycle part of a create request.
type CreateLifecycle struct {
	Status                     string `json:"status" validate:"omitempty,oneof=under_construction in_production decommissioning decommissioned"`
	FirstProductionDate        string `json:"firstProductionDate" validate:"required"`
	PlannedDecommissioningDate string `json:"plannedDecommissioningDate,omitempty"`
}

// CreateActor is a caller-supplied actor on create. The Owner actor is
// synthesized server-side and must not be supplied.
type CreateActor struct {
	Role         string `json:"role"`
	ActorType    string `json:"actorType,omitempty" validate:"omitempty,oneof=Responsable Exploitation ResponsableAutre Hebergement ArchitecteApplicatif ArchitecteInfra RepresentantSSI Autre"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	UserID       string `json:"userId,omitempty" validate:"omitempty,uuid"`
	Organization string `json:"organization,omitempty"`
}

// CreateCompliance is a caller-supplied compliance record on create.
type CreateCompliance struct {
	Type          string `json:"type,omitempty" validate:"omitempty,oneof=regulation standard policy contractual security privacy"`
	Name          string `json:"name"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=compliant non_compliant partially_compliant not_concerned"`
	ValidityStart string `json:"validityStart,omitempty"`
	ValidityEnd   string `json:"validityEnd,omitempty"`
	ScoreValue    string `json:"scoreValue,omitempty"`
	ScoreUnit     string `json:"scoreUnit,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// CreateExternalResource is a caller-supplied external link on create.
type CreateExternalResource struct {
	Link        string `json:"link" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"omitempty,oneof=documentation supervision service"`
}

// CreateApplicationRequest is the body of POST /applications.
type CreateApplicationRequest struct {
	Label             string                   `json:"label" validate:"required"`
	ShortName         string                   `json:"shortName,omitempty"`
	Logo              string                   `json:"logo,omitempty"`
	Description       string                   `json:"description"`
	Purposes          []string                 `json:"purposes,omitempty"`
	Tags              []string                 `json:"tags,omitempty"`
	ParentID          string                   `json:"parentId,omitempty" validate:"omitempty,uuid"`
	Lifecycle         CreateLifecycle          `json:"lifecycle" validate:"required"`
	Actors            []CreateActor            `json:"actors" validate:"dive"`
	Compliances       []CreateCompliance       `json:"compliances" validate:"dive"`
	ExternalResources []CreateExternalResource `json:"externalRessource" validate:"dive"`
}

// PatchLifecycle merges onto the stored lifecycle: present fields
// overwrite, absent fields stay.
type PatchLifecycle struct {
	Status                     *string `json:"status,omitempty"`
	FirstProductionDate        *string `json:"firstProductionDate,omitempty"`
	PlannedDecommissioningDate *string `json:"plannedDecommissioningDate,omitempty"`
}

// ActorPatch is a reconciliation entry: an absent id means create, a
// present id means update the matching stored actor.
type ActorPatch struct {
	ID           string  `json:"id,omitempty"`
	Role         *string `json:"role,omitempty"`
	ActorType    *string `json:"actorType,omitempty"`
	Email        *string `json:"email,omitempty"`
	Organization *string `json:"organization,omitempty"`
}

// CompliancePatch is a reconciliation entry for compliances.
type CompliancePatch struct {
	ID            string  `json:"id,omitempty"`
	Type          *string `json:"type,omitempty"`
	Name          *string `json:"name,omitempty"`
	Status        *string `json:"status,omitempty"`
	ValidityStart *string `json:"validityStart,omitempty"`
	ValidityEnd   *string `json:"validityEnd,omitempty"`
	ScoreValue    *string `json:"scoreValue,omitempty"`
	ScoreUnit     *string `json:"scoreUnit,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// ExternalResourcePatch is a reconciliation entry for external resources.
type ExternalResourcePatch struct {
	ID          string  `json:"id,omitempty"`
	Link        *string `json:"link,omitempty"`
	Description *string `json:"description,omitempty"`
	Type        *string `json:"type,omitempty"`
}

// PatchApplicationRequest is the body of PATCH /applications/{id}. Every
// field is optional: present fields overwrite, absent fields leave the
// stored value untouched. ParentID set to the empty string disconnects
// the parent relation. The three child collections follow reconciliation
// semantics.
type PatchApplicationRequest struct {
	Label             *string                  `json:"label,omitempty"`
	ShortName         *string                  `json:"shortName,omitempty"`
	Logo              *string                  `json:"logo,omitempty"`
	Description       *string                  `json:"description,omitempty"`
	Purposes          *[]string                `json:"purposes,omitempty"`
	Tags              *[]string                `json:"tags,omitempty"`
	ParentID          *string                  `json:"parentId,omitempty"`
	Lifecycle         *PatchLifecycle          `json:"lifecycle,omitempty"`
	Actors            *[]ActorPatch            `json:"actors,omitempty"`
	Compliances       *[]CompliancePatch       `json:"compliances,omitempty"`
	ExternalResources *[]ExternalResourcePatch `json:"externalRessource,omitempty"`
}

// SearchQuery filters the catalog. Label matches as a case- and
// accent-insensitive substring; every Tag must match some stored tag the
// same way; Link, when set, switches to exact lookup through external
// resource links.
type SearchQuery struct {
	Label string
	Tags  []string
	Link  string
	Page  int
	Limit int
}

const (
	DefaultPage  = 1
	DefaultLimit = 12
)

// Normalize applies pagination defaults and lowercases the tag filters,
// which are matched case-insensitively by the stores.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	q.Tags = platformstrings.DedupeAndTrimLower(q.Tags)
	return q
}

// Offset converts 1-indexed pagination to a row offset.
func (q SearchQuery) Offset() int { return (q.Page - 1) * q.Limit }

// dateFormats accepted for date fields, most specific first.
var dateFormats = []string{time.RFC3339, "2006-01-02"}

// ParseDate parses an ISO 8601 date or timestamp.
func ParseDate(field, value string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an ISO 8601 date", field)
}

// ParseOptionalDate parses a date when non-empty, else returns nil.
func ParseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := ParseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
