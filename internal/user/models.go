package user

import (
	"time"

	id "appregistry/pkg/domain"
)

// User is a registry account, lazily created on first authenticated
// request.
//
// Invariants:
//   - Email is non-empty and unique; it is the find-or-create key
//   - ID is the only storage join key; Subject (the identity-provider id)
//     is informational and only consulted at the authentication boundary
// FirstName and LastName are derived from the email local part on first
// login; the identity provider does not forward profile claims.
type User struct {
	ID        id.UserID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Subject   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
