// Package models defines the application aggregate: the application record
// itself, its 1:1 lifecycle, and its owned child collections (actors,
// compliances, external resources), plus the audit metadata stamped on
// every write.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "appregistry/pkg/domain"
)

// LifecycleStatus tracks where an application stands in its life.
type LifecycleStatus string

const (
	LifecycleUnderConstruction LifecycleStatus = "under_construction"
	LifecycleInProduction      LifecycleStatus = "in_production"
	LifecycleDecommissioning   LifecycleStatus = "decommissioning"
	LifecycleDecommissioned    LifecycleStatus = "decommissioned"
)

// lifecycleOrder drives the forward-only transition rule.
var lifecycleOrder = map[LifecycleStatus]int{
	LifecycleUnderConstruction: 0,
	LifecycleInProduction:      1,
	LifecycleDecommissioning:   2,
	LifecycleDecommissioned:    3,
}

func (s LifecycleStatus) Valid() bool {
	_, ok := lifecycleOrder[s]
	return ok
}

// CanTransitionTo allows staying in place or moving forward through the
// lifecycle; an application never returns to an earlier stage.
func (s LifecycleStatus) CanTransitionTo(next LifecycleStatus) bool {
	from, okFrom := lifecycleOrder[s]
	to, okTo := lifecycleOrder[next]
	return okFrom && okTo && to >= from
}

// ActorType categorizes the role an actor plays for an application. Values
// match the upstream organizational taxonomy.
type ActorType string

const (
	ActorResponsable          ActorType = "Responsable"
	ActorExploitation         ActorType = "Exploitation"
	ActorResponsableAutre     ActorType = "ResponsableAutre"
	ActorHebergement          ActorType = "Hebergement"
	ActorArchitecteApplicatif ActorType = "ArchitecteApplicatif"
	ActorArchitecteInfra      ActorType = "ArchitecteInfra"
	ActorRepresentantSSI      ActorType = "RepresentantSSI"
	ActorAutre                ActorType = "Autre"
)

func (t ActorType) Valid() bool {
	switch t {
	case ActorResponsable, ActorExploitation, ActorResponsableAutre, ActorHebergement,
		ActorArchitecteApplicatif, ActorArchitecteInfra, ActorRepresentantSSI, ActorAutre:
		return true
	}
	return false
}

// ComplianceType classifies a compliance record.
type ComplianceType string

const (
	ComplianceRegulation  ComplianceType = "regulation"
	ComplianceStandard    ComplianceType = "standard"
	CompliancePolicy      ComplianceType = "policy"
	ComplianceContractual ComplianceType = "contractual"
	ComplianceSecurity    ComplianceType = "security"
	CompliancePrivacy     ComplianceType = "privacy"
)

func (t ComplianceType) Valid() bool {
	switch t {
	case ComplianceRegulation, ComplianceStandard, CompliancePolicy,
		ComplianceContractual, ComplianceSecurity, CompliancePrivacy:
		return true
	}
	return false
}

// ComplianceStatus is the assessed state of a compliance record.
type ComplianceStatus string

const (
	Compliant          ComplianceStatus = "compliant"
	NonCompliant       ComplianceStatus = "non_compliant"
	PartiallyCompliant ComplianceStatus = "partially_compliant"
	NotConcerned       ComplianceStatus = "not_concerned"
)

func (s ComplianceStatus) Valid() bool {
	switch s {
	case Compliant, NonCompliant, PartiallyCompliant, NotConcerned:
		return true
	}
	return false
}

// ExternalResourceType classifies an external reference.
type ExternalResourceType string

const (
	ResourceDocumentation ExternalResourceType = "documentation"
	ResourceSupervision   ExternalResourceType = "supervision"
	ResourceService       ExternalResourceType = "service"
)

func (t ExternalResourceType) Valid() bool {
	switch t {
	case ResourceDocumentation, ResourceSupervision, ResourceService:
		return true
	}
	return false
}

// OwnerRole is the role of the actor synthesized from the creating user.
const OwnerRole = "Owner"

// Metadata is the audit record attached to an application.
type Metadata struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy id.UserID `json:"createdBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy id.UserID `json:"updatedBy"`
}

// Lifecycle is the 1:1 lifecycle child of an application.
type Lifecycle struct {
	ID                         uuid.UUID       `json:"id"`
	Status                     LifecycleStatus `json:"status"`
	FirstProductionDate        time.Time       `json:"firstProductionDate"`
	PlannedDecommissioningDate *time.Time      `json:"plannedDecommissioningDate,omitempty"`
}

// Actor is a person or organization responsible for some aspect of an
// application. The first actor of every application is the synthesized
// Owner (see service.Create).
type Actor struct {
	ID           uuid.UUID  `json:"id"`
	Role         string     `json:"role"`
	Type         ActorType  `json:"actorType,omitempty"`
	Email        string     `json:"email,omitempty"`
	UserID       *id.UserID `json:"userId,omitempty"`
	Organization string     `json:"organization,omitempty"`
}

// Compliance is a regulatory/standard/policy record for an application.
type Compliance struct {
	ID            uuid.UUID        `json:"id"`
	Type          ComplianceType   `json:"type,omitempty"`
	Name          string           `json:"name"`
	Status        ComplianceStatus `json:"status,omitempty"`
	ValidityStart *time.Time       `json:"validityStart,omitempty"`
	ValidityEnd   *time.Time       `json:"validityEnd,omitempty"`
	ScoreValue    string           `json:"scoreValue,omitempty"`
	ScoreUnit     string           `json:"scoreUnit,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

// ExternalResource is a link attached to an application (documentation,
// supervision dashboard, service endpoint).
type ExternalResource struct {
	ID          uuid.UUID            `json:"id"`
	Link        string               `json:"link"`
	Description string               `json:"description"`
	Type        ExternalResourceType `json:"type"`
}

// Application is the aggregate root of the registry.
//
// Invariants:
//   - Label is non-empty
//   - OwnerID references an existing user
//   - ParentID never forms a cycle (an application is not its own
//     ancestor); enforced by the service before any parent link commits
//   - Lifecycle always exists
//   - Actors always contain the synthesized Owner entry
type Application struct {
	ID                id.ApplicationID   `json:"id"`
	Label             string             `json:"label"`
	ShortName         string             `json:"shortName,omitempty"`
	Logo              string             `json:"logo,omitempty"`
	Description       string             `json:"description"`
	Purposes          []string           `json:"purposes"`
	Tags              []string           `json:"tags"`
	OwnerID           id.UserID          `json:"ownerId"`
	ParentID          *id.ApplicationID  `json:"parentId,omitempty"`
	Lifecycle         Lifecycle          `json:"lifecycle"`
	Actors            []Actor            `json:"actors"`
	Compliances       []Compliance       `json:"compliances"`
	ExternalResources []ExternalResource `json:"externalRessource"`
	Metadata          Metadata           `json:"metadata"`
}

// MarshalJSON renders nil collections as empty arrays. Consumers iterate
// the aggregate's lists without null checks, so the API never emits
// JSON null for them.
func (a Application) MarshalJSON() ([]byte, error) {
	type alias Application
	out := alias(a)
	if out.Purposes == nil {
		out.Purposes = []string{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Actors == nil {
		out.Actors = []Actor{}
	}
	if out.Compliances == nil {
		out.Compliances = []Compliance{}
	}
	if out.ExternalResources == nil {
		out.ExternalResources = []ExternalResource{}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy so store snapshots never alias caller state.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Purposes = append([]string(nil), a.Purposes...)
	clone.Tags = append([]string(nil), a.Tags...)
	clone.Actors = append([]Actor(nil), a.Actors...)
	clone.Compliances = append([]Compliance(nil), a.Compliances...)
	clone.ExternalResources = append([]ExternalResource(nil), a.ExternalResources...)
	if a.ParentID != nil {
		parent := *a.ParentID
		clone.ParentID = &parent
	}
	if a.Lifecycle.PlannedDecommissioningDate != nil {
		d := *a.Lifecycle.PlannedDecommissioningDate
		clone.Lifecycle.PlannedDecommissioningDate = &d
	}
	return &clone
}
