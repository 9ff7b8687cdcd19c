package employee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/store"
)

// Store provides database operations for employees.
type Store struct {
	dbtx store.DBTX
}

// NewStore creates an employee Store backed by the given connection or
// transaction.
func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const employeeColumns = `id, name, email, manager_user_id, created_at, updated_at`

// Row represents a row returned from the employees table.
type Row struct {
	ID            uuid.UUID
	Name          string
	Email         string
	ManagerUserID uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ToResponse converts a Row to its public DTO.
func (e *Row) ToResponse() Response {
	return Response{
		ID:            e.ID,
		Name:          e.Name,
		Email:         e.Email,
		ManagerUserID: e.ManagerUserID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func scanRow(row pgx.Row) (Row, error) {
	var e Row
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.ManagerUserID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Get returns a single employee by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Row, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	return scanRow(s.dbtx.QueryRow(ctx, query, id))
}

// List returns employees ordered by name, with offset pagination.
func (s *Store) List(ctx context.Context, p store.PageParams) ([]Row, int, error) {
	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM employees`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting employees: %w", err)
	}

	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY name ASC LIMIT $1 OFFSET $2`
	rows, err := s.dbtx.Query(ctx, query, p.PageSize, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		e, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning employee row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating employee rows: %w", err)
	}

	return out, total, nil
}

// CreateParams holds parameters for creating an employee.
type CreateParams struct {
	Name          string
	Email         string
	ManagerUserID uuid.UUID
}

// Create inserts a new employee.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO employees (name, email, manager_user_id)
	VALUES ($1, $2, $3)
	RETURNING ` + employeeColumns
	return scanRow(s.dbtx.QueryRow(ctx, query, p.Name, p.Email, p.ManagerUserID))
}

// UpdateParams holds parameters for updating an employee.
type UpdateParams struct {
	ID            uuid.UUID
	Name          string
	Email         string
	ManagerUserID uuid.UUID
}

// Update updates an employee's editable fields.
func (s *Store) Update(ctx context.Context, p UpdateParams) (Row, error) {
	query := `UPDATE employees
	SET name = $2, email = $3, manager_user_id = $4, updated_at = now()
	WHERE id = $1
	RETURNING ` + employeeColumns
	return scanRow(s.dbtx.QueryRow(ctx, query, p.ID, p.Name, p.Email, p.ManagerUserID))
}

// Delete removes an employee. A foreign-key violation (employee still
// referenced by a loan) surfaces untranslated; the service maps it to
// apperr.Conflict (L1: deletion of a referenced employee must fail).
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
