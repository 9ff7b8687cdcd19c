// Package auth implements the authentication/authorization chain: password
// hashing (C3), token issuance/verification/revocation (C4), the auth gate
// (C5), the role gate (C6), the ownership gate (C7), and the per-tier rate
// limiter (C11).
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Role is one of the three total roles. ADMIN is unconstrained, MANAGER
// mutates owned resources, READER cannot mutate (§4.6, GLOSSARY).
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleReader  = "READER"
)

// Identity is the authenticated caller attached to the request context by
// the auth gate (C5).
type Identity struct {
	UserID    uuid.UUID
	Role      string
	IssuedAt  time.Time
}

type contextKey int

const identityKey contextKey = iota

// NewContext attaches id to ctx.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the Identity attached to ctx, or nil if unauthenticated.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// FromRequest is a convenience wrapper over FromContext.
func FromRequest(r *http.Request) *Identity {
	return FromContext(r.Context())
}
