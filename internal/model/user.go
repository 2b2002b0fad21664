package model

import (
	"errors"
	"time"
)

// DefaultRole is assigned to every user at creation.
const DefaultRole = "user"

// ErrMissingTimestamps marks a persisted user row without created_at or
// updated_at. It is a data-integrity defect, never a client error.
var ErrMissingTimestamps = errors.New("user record is missing timestamps")

// User represents an application user record as stored in the `users`
// table. PasswordHash is the argon2id PHC string and must never leave the
// service; handlers respond with FilteredUser instead.
//
// Fields:
//
//	ID           – users.id, UUID generated at creation.
//	Email        – users.email, unique, stored lower-cased.
//	PasswordHash – users.password_hash.
//	ExternalID   – users.external_id, optional alternate login handle
//	               (e.g. a Telegram user id), unique when present.
//	DisplayName  – users.display_name, optional.
//	Role         – users.role, "user" by default.
//	CreatedAt    – users.created_at, set by the database.
//	UpdatedAt    – users.updated_at, refreshed by the database on update.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	ExternalID   *string
	DisplayName  *string
	Role         string
	CreatedAt    *time.Time
	UpdatedAt    *time.Time
}

// NewUser carries the columns the caller supplies on insert. Everything
// else (id aside) is defaulted by the store.
type NewUser struct {
	Email        string
	PasswordHash string
	DisplayName  *string
	ExternalID   *string
}

// FilteredUser is the outward-safe projection of User.
type FilteredUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter maps u to its FilteredUser. The only failure is a record with
// absent timestamps.
func (u *User) Filter() (FilteredUser, error) {
	if u.CreatedAt == nil || u.UpdatedAt == nil {
		return FilteredUser{}, ErrMissingTimestamps
	}
	return FilteredUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt.UTC(),
		UpdatedAt:   u.UpdatedAt.UTC(),
	}, nil
}
