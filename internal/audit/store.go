package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/store"
)

// Store provides read access to the audit trail. Writes go through Log /
// LogFromRequest, never through Store — the audit log is append-only and
// every write belongs to a specific business transaction.
type Store struct {
	dbtx store.DBTX
}

// NewStore creates an audit Store backed by the given connection.
func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// Row is a single audit entry as read back from the store.
type Row struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Detail     []byte
	IPAddress  *string
	UserAgent  *string
	CreatedAt  time.Time
}

// Filter narrows a List query. Zero values are treated as "no filter".
type Filter struct {
	ActorID    uuid.UUID
	EntityType string
	EntityID   uuid.UUID
}

const auditColumns = `id, actor_id, action, entity_type, entity_id, detail, ip_address, user_agent, created_at`

func scanRow(row pgx.Row) (Row, error) {
	var e Row
	err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
	return e, err
}

// List returns audit entries newest-first, optionally narrowed by actor,
// entity type, and/or entity id (§4.8: "filterable by actor, entity-type,
// entity-id").
func (s *Store) List(ctx context.Context, f Filter, p store.PageParams) ([]Row, int, error) {
	where := "TRUE"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ActorID != uuid.Nil {
		where += " AND actor_id = " + arg(f.ActorID)
	}
	if f.EntityType != "" {
		where += " AND entity_type = " + arg(f.EntityType)
	}
	if f.EntityID != uuid.Nil {
		where += " AND entity_id = " + arg(f.EntityID)
	}

	var total int
	countQuery := "SELECT count(*) FROM audit_entries WHERE " + where
	if err := s.dbtx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM audit_entries WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		auditColumns, where, arg(p.PageSize), arg(p.Offset),
	)

	rows, err := s.dbtx.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		e, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning audit entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating audit entries: %w", err)
	}

	return out, total, nil
}
