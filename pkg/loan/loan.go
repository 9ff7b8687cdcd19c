// Package loan implements the loan lifecycle state machine (C9): creating
// a loan against an Employee, attaching asset-item and stock lines, capturing
// pickup/return signatures, and closing or soft-deleting it while keeping
// invariants A1, A2, L1, L2, and S1 intact across every transition.
package loan

import (
	"time"

	"github.com/google/uuid"
)

// Loan lifecycle states (§4.9). A soft-deleted loan keeps whichever of
// these it had at the moment of deletion; DeletedAt being set is what
// callers check, not a third status value.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// LineSpec describes one line of a loan creation or add-line request:
// exactly one of AssetItemID or (AssetModelID, Quantity) must be set (L2).
type LineSpec struct {
	AssetItemID  *uuid.UUID `json:"asset_item_id,omitempty"`
	AssetModelID *uuid.UUID `json:"asset_model_id,omitempty"`
	Quantity     int        `json:"quantity,omitempty"`
}

// CreateRequest is the JSON body for POST /loans.
type CreateRequest struct {
	EmployeeID uuid.UUID  `json:"employee_id" validate:"required"`
	Lines      []LineSpec `json:"lines"`
}

// AddLineRequest is the JSON body for POST /loans/:id/lines.
type AddLineRequest struct {
	Line LineSpec `json:"line"`
}

// SignatureRequest is the JSON body for the pickup/return signature
// endpoints: a reference to an already-uploaded blob (URL or content hash),
// not the blob itself.
type SignatureRequest struct {
	Reference string `json:"reference" validate:"required"`
	Override  bool   `json:"override,omitempty"`
}

// LineResponse is the JSON representation of one loan line.
type LineResponse struct {
	ID           uuid.UUID  `json:"id"`
	AssetItemID  *uuid.UUID `json:"asset_item_id,omitempty"`
	AssetModelID *uuid.UUID `json:"asset_model_id,omitempty"`
	Quantity     int        `json:"quantity,omitempty"`
	AddedAt      time.Time  `json:"added_at"`
}

// Response is the JSON representation of a loan and its lines.
type Response struct {
	ID                 uuid.UUID      `json:"id"`
	EmployeeID         uuid.UUID      `json:"employee_id"`
	Status             string         `json:"status"`
	OpenedAt           time.Time      `json:"opened_at"`
	ClosedAt           *time.Time     `json:"closed_at,omitempty"`
	PickupSignatureURL *string        `json:"pickup_signature_url,omitempty"`
	PickupSignedAt     *time.Time     `json:"pickup_signed_at,omitempty"`
	ReturnSignatureURL *string        `json:"return_signature_url,omitempty"`
	ReturnSignedAt     *time.Time     `json:"return_signed_at,omitempty"`
	CreatedBy          uuid.UUID      `json:"created_by"`
	DeletedAt          *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy          *uuid.UUID     `json:"deleted_by,omitempty"`
	Lines              []LineResponse `json:"lines"`
}

// isStockLine reports whether the spec describes a consumable stock line
// rather than a unique asset-item line.
func (l LineSpec) isStockLine() bool {
	return l.AssetModelID != nil
}

// valid enforces L2: exactly one of {asset-item, stock-item+quantity}.
func (l LineSpec) valid() bool {
	hasItem := l.AssetItemID != nil
	hasStock := l.AssetModelID != nil
	if hasItem == hasStock {
		return false
	}
	if hasStock && l.Quantity < 1 {
		return false
	}
	return true
}
