package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/store"
)

// Store provides database operations for users.
type Store struct {
	dbtx store.DBTX
}

// NewStore creates a user Store backed by the given connection or
// transaction.
func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const userColumns = `id, email, password_hash, role, created_at, updated_at`

// Row represents a row returned from the users table, including the
// password hash — only ToResponse(), never the handler layer, should see
// this field cross a response boundary.
type Row struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToResponse converts a Row to the public Response DTO, omitting the
// password hash (§4.3).
func (u *Row) ToResponse() Response {
	return Response{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func scanRow(row pgx.Row) (Row, error) {
	var u Row
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Count returns the total number of users, used to decide whether a new
// registration becomes the first ADMIN.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// GetByEmail looks up a user by email, matching the stored address
// case-sensitively. Emails are stored as given; the unique index on
// lower(email) only stops two addresses that differ in case from both
// being registered.
func (s *Store) GetByEmail(ctx context.Context, email string) (Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanRow(s.dbtx.QueryRow(ctx, query, email))
}

// Get returns a single user by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Row, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanRow(s.dbtx.QueryRow(ctx, query, id))
}

// CreateParams holds parameters for creating a user.
type CreateParams struct {
	Email        string
	PasswordHash string
	Role         string
}

// Create inserts a new user. A unique violation on email is surfaced
// untranslated; callers map it to apperr.Conflict.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO users (email, password_hash, role)
	VALUES ($1, $2, $3)
	RETURNING ` + userColumns
	return scanRow(s.dbtx.QueryRow(ctx, query, p.Email, p.PasswordHash, p.Role))
}

// UpdateRole changes a user's role, returning pgx.ErrNoRows if id does not
// exist.
func (s *Store) UpdateRole(ctx context.Context, id uuid.UUID, role string) (Row, error) {
	query := `UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	return scanRow(s.dbtx.QueryRow(ctx, query, id, role))
}

// UpdatePasswordHash replaces a user's password hash, returning
// pgx.ErrNoRows if id does not exist.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) (Row, error) {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	return scanRow(s.dbtx.QueryRow(ctx, query, id, hash))
}
