// Package domain holds identifier types shared across services.
//
// IDs are distinct types over uuid.UUID so the compiler rejects passing a
// user id where an application id is expected. Child rows of the
// application aggregate (actors, compliances, external resources) travel
// as plain uuid.UUIDs; only the identifiers that cross service boundaries
// get their own type.
package domain

import (
	"github.com/google/uuid"

	dErrors "appregistry/pkg/domain-errors"
)

type (
	// ApplicationID identifies an application record.
	ApplicationID uuid.UUID
	// UserID identifies a user in the internal directory. This is the
	// storage join key; the identity provider subject is a separate,
	// non-key attribute on the user record.
	UserID uuid.UUID
	// NotificationID identifies an anomaly notification.
	NotificationID uuid.UUID
)

func (id ApplicationID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id ApplicationID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id ApplicationID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ApplicationID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = ApplicationID(parsed)
	return nil
}

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

func (id *NotificationID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = NotificationID(parsed)
	return nil
}

// NewApplicationID returns a fresh random application id.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewUserID returns a fresh random user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewNotificationID returns a fresh random notification id.
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

// ParseApplicationID parses a textual application id. Empty, malformed and
// nil UUIDs are rejected with CodeInvalidInput.
func ParseApplicationID(s string) (ApplicationID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return ApplicationID{}, err
	}
	return ApplicationID(parsed), nil
}

// ParseUserID parses a textual user id.
func ParseUserID(s string) (UserID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseNotificationID parses a textual notification id.
func ParseNotificationID(s string) (NotificationID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return NotificationID{}, err
	}
	return NotificationID(parsed), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}
