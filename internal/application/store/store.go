// Package store persists application aggregates. Implementations return
// sentinel errors; services translate them into coded domain errors.
package store

import (
	"context"
	"time"

	"appregistry/internal/application/models"
	id "appregistry/pkg/domain"
)

// Store is the persistence contract for application aggregates.
type Store interface {
	Insert(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	List(ctx context.Context, page, limit int) ([]*models.Application, error)
	// Apply commits a partial update. The aggregate must exist.
	Apply(ctx context.Context, appID id.ApplicationID, upd Update) error
	Delete(ctx context.Context, appID id.ApplicationID) error
	Search(ctx context.Context, q models.SearchQuery) ([]*models.Application, error)
	// FindByResourceLink returns applications holding an external resource
	// with exactly this link.
	FindByResourceLink(ctx context.Context, link string) ([]*models.Application, error)
	// ParentOf returns the parent id of an application, nil when the
	// application has no parent.
	ParentOf(ctx context.Context, appID id.ApplicationID) (*id.ApplicationID, error)
	Count(ctx context.Context) (int, error)
}

// ParentChange connects or disconnects the parent relation.
type ParentChange struct {
	// Disconnect clears the parent; when false, Parent is the new parent.
	Disconnect bool
	Parent     id.ApplicationID
}

// LifecycleChange merges onto the stored lifecycle. Nil fields keep the
// stored value; ClearPlannedDecommissioning removes the planned date.
type LifecycleChange struct {
	Status                      *models.LifecycleStatus
	FirstProductionDate         *time.Time
	PlannedDecommissioningDate  *time.Time
	ClearPlannedDecommissioning bool
}

// ActorChanges is the reconciliation outcome for the actors collection.
type ActorChanges struct {
	Create []models.Actor
	Update []models.Actor
	Delete []string
}

// ComplianceChanges is the reconciliation outcome for compliances.
type ComplianceChanges struct {
	Create []models.Compliance
	Update []models.Compliance
	Delete []string
}

// ExternalResourceChanges is the reconciliation outcome for external
// resources.
type ExternalResourceChanges struct {
	Create []models.ExternalResource
	Update []models.ExternalResource
	Delete []string
}

// Update is the full partial-update payload applied in one transaction.
// Nil scalar pointers leave the stored value untouched.
type Update struct {
	Label       *string
	ShortName   *string
	Logo        *string
	Description *string
	Purposes    *[]string
	Tags        *[]string

	Parent            *ParentChange
	Lifecycle         *LifecycleChange
	Actors            *ActorChanges
	Compliances       *ComplianceChanges
	ExternalResources *ExternalResourceChanges

	UpdatedAt time.Time
	UpdatedBy id.UserID
}
