// Package anomaly implements the anomaly-notification workflow: users
// flag a problem on a cataloged application and maintainers walk the
// report from received to resolved.
package anomaly

import (
	"time"

	id "appregistry/pkg/domain"
)

// Status is the workflow state of a notification.
type Status string

const (
	StatusPending    Status = "in_pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// statusOrder drives the forward-only workflow.
var statusOrder = map[Status]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusDone:       2,
}

func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransitionTo allows staying in place or moving forward; a resolved
// notification never reopens.
func (s Status) CanTransitionTo(next Status) bool {
	from, okFrom := statusOrder[s]
	to, okTo := statusOrder[next]
	return okFrom && okTo && to >= from
}

// Notification is one anomaly report against an application.
type Notification struct {
	ID            id.NotificationID `json:"id"`
	ApplicationID id.ApplicationID  `json:"applicationId"`
	NotifierID    id.UserID         `json:"notifierId"`
	Description   string            `json:"description"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// ApplicationView enriches a notification with the application label for
// the caller's own-notifications listing.
type ApplicationView struct {
	Notification
	ApplicationLabel string `json:"applicationLabel"`
}

// NotifierView enriches a notification with the reporting user's email
// for the per-application listing.
type NotifierView struct {
	Notification
	NotifierEmail string `json:"notifierEmail"`
}

// CreateRequest is the body of POST /anomaly-notifications. The status is
// always forced to in_pending on create.
type CreateRequest struct {
	ApplicationID string `json:"applicationId" validate:"required,uuid"`
	Description   string `json:"description" validate:"required"`
}

// UpdateRequest is the body of PATCH /anomaly-notifications/{id}. Absent
// fields leave the stored value untouched.
type UpdateRequest struct {
	Description *string `json:"description" validate:"omitempty"`
	Status      *string `json:"status" validate:"omitempty,oneof=in_pending in_progress done"`
}
