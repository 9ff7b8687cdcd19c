// Package employee implements the Employee entity (§3): the person a Loan
// is issued to, owned by the MANAGER who manages them.
package employee

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequest is the JSON body for POST /employees. ManagerUserID is only
// honored for an ADMIN caller; for a MANAGER it is always overridden to
// their own user id (§4.7: a MANAGER can only own what they create).
type CreateRequest struct {
	Name          string     `json:"name" validate:"required,min=1,max=200"`
	Email         string     `json:"email" validate:"required,email"`
	ManagerUserID *uuid.UUID `json:"manager_user_id"`
}

// UpdateRequest is the JSON body for PATCH /employees/:id. ManagerUserID
// reassignment is ADMIN-only, same rule as CreateRequest.
type UpdateRequest struct {
	Name          string     `json:"name" validate:"required,min=1,max=200"`
	Email         string     `json:"email" validate:"required,email"`
	ManagerUserID *uuid.UUID `json:"manager_user_id"`
}

// Response is the JSON response for an employee.
type Response struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ManagerUserID uuid.UUID `json:"manager_user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
