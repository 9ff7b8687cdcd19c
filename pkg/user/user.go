// Package user implements the User entity (§3): the system operator account
// that owns loans, audit entries, and managed employees.
package user

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the JSON body for POST /auth/register. Role is not
// settable by the caller — the first user in the system becomes ADMIN,
// every subsequent registration defaults to MANAGER (§8 scenario 1).
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RoleChangeRequest is the JSON body for PATCH /users/:id/role (ADMIN only).
type RoleChangeRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN MANAGER READER"`
}

// PasswordChangeRequest is the JSON body for PATCH /users/:id/password
// (self or ADMIN).
type PasswordChangeRequest struct {
	Password string `json:"password" validate:"required,password"`
}

// Response is the JSON response for a user. PasswordHash is never included
// — §4.3 requires it is never returned or logged.
type Response struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
