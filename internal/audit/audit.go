// Package audit implements the append-only audit trail (C8). Every mutation
// that changes role, permission, loan state, or user credentials, or
// soft-deletes anything, writes an Entry here in the same transaction as the
// business mutation — the commit atomicity is the point, so Log takes the
// caller's open store.DBTX rather than owning its own connection or
// background flush loop the way the teacher's async Writer did.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/auth"
	"github.com/gearloop/assetloan/internal/store"
)

// Entry is a single audit record.
type Entry struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Detail     json.RawMessage
	IPAddress  string
	UserAgent  string
}

// Log writes entry inside dbtx. When dbtx is an open pgx.Tx (the normal
// case), the audit row commits or rolls back atomically with whatever
// business mutation dbtx is also carrying (§4.8, §5).
func Log(ctx context.Context, dbtx store.DBTX, e Entry) error {
	if e.Detail == nil {
		e.Detail = json.RawMessage("{}")
	}

	const query = `
		INSERT INTO audit_entries (actor_id, action, entity_type, entity_id, detail, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`

	_, err := dbtx.Exec(ctx, query, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Detail, e.IPAddress, e.UserAgent)
	if err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// LogFromRequest is a convenience wrapper that fills ActorID/IPAddress/
// UserAgent from the request and its authenticated identity before
// delegating to Log. detail is marshaled to JSON; a nil detail becomes "{}".
func LogFromRequest(ctx context.Context, dbtx store.DBTX, r *http.Request, action, entityType string, entityID uuid.UUID, detail any) error {
	var raw json.RawMessage
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		raw = b
	}

	e := Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     raw,
		IPAddress:  clientIP(r),
		UserAgent:  r.Header.Get("User-Agent"),
	}

	if id := auth.FromRequest(r); id != nil {
		e.ActorID = id.UserID
	}

	return Log(ctx, dbtx, e)
}

// clientIP extracts the client address, preferring X-Forwarded-For then
// X-Real-IP before falling back to RemoteAddr — the same precedence the
// rate limiter uses (auth.ClientIP), kept local here to avoid an
// audit→auth dependency beyond the identity lookup it already needs.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
