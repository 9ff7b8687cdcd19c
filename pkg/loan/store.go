package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/store"
)

// Store provides database operations for loans and loan lines.
type Store struct {
	dbtx store.DBTX
}

// NewStore creates a loan Store backed by the given connection or
// transaction.
func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const loanColumns = `id, employee_id, status, opened_at, closed_at,
	pickup_signature_url, pickup_signed_at, return_signature_url, return_signed_at,
	created_by, deleted_at, deleted_by`

// Row is a row from the loans table.
type Row struct {
	ID                 uuid.UUID
	EmployeeID         uuid.UUID
	Status             string
	OpenedAt           time.Time
	ClosedAt           *time.Time
	PickupSignatureURL *string
	PickupSignedAt     *time.Time
	ReturnSignatureURL *string
	ReturnSignedAt     *time.Time
	CreatedBy          uuid.UUID
	DeletedAt          *time.Time
	DeletedBy          *uuid.UUID
}

func scanLoan(row pgx.Row) (Row, error) {
	var l Row
	err := row.Scan(&l.ID, &l.EmployeeID, &l.Status, &l.OpenedAt, &l.ClosedAt,
		&l.PickupSignatureURL, &l.PickupSignedAt, &l.ReturnSignatureURL, &l.ReturnSignedAt,
		&l.CreatedBy, &l.DeletedAt, &l.DeletedBy)
	return l, err
}

const lineColumns = `id, loan_id, asset_item_id, asset_model_id, quantity, added_at`

// LineRow is a row from the loan_lines table.
type LineRow struct {
	ID           uuid.UUID
	LoanID       uuid.UUID
	AssetItemID  *uuid.UUID
	AssetModelID *uuid.UUID
	Quantity     int
	AddedAt      time.Time
}

func (l *LineRow) ToResponse() LineResponse {
	return LineResponse{
		ID: l.ID, AssetItemID: l.AssetItemID, AssetModelID: l.AssetModelID,
		Quantity: l.Quantity, AddedAt: l.AddedAt,
	}
}

func scanLine(row pgx.Row) (LineRow, error) {
	var l LineRow
	err := row.Scan(&l.ID, &l.LoanID, &l.AssetItemID, &l.AssetModelID, &l.Quantity, &l.AddedAt)
	return l, err
}

// Get returns a single loan, including soft-deleted ones; callers decide
// whether a deleted loan should be treated as not found.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Row, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(s.dbtx.QueryRow(ctx, query, id))
}

// List returns loans ordered by opened_at descending, with offset
// pagination. Soft-deleted loans are excluded unless includeDeleted is set.
func (s *Store) List(ctx context.Context, p store.PageParams, includeDeleted bool) ([]Row, int, error) {
	where := "WHERE deleted_at IS NULL"
	if includeDeleted {
		where = ""
	}

	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM loans `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting loans: %w", err)
	}

	query := `SELECT ` + loanColumns + ` FROM loans ` + where + ` ORDER BY opened_at DESC LIMIT $1 OFFSET $2`
	rows, err := s.dbtx.Query(ctx, query, p.PageSize, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning loan row: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// Create inserts a new OPEN loan.
func (s *Store) Create(ctx context.Context, employeeID, createdBy uuid.UUID) (Row, error) {
	query := `INSERT INTO loans (employee_id, status, opened_at, created_by)
	VALUES ($1, $2, now(), $3) RETURNING ` + loanColumns
	return scanLoan(s.dbtx.QueryRow(ctx, query, employeeID, StatusOpen, createdBy))
}

// ListLines returns every line of a loan in the order they were added.
func (s *Store) ListLines(ctx context.Context, loanID uuid.UUID) ([]LineRow, error) {
	query := `SELECT ` + lineColumns + ` FROM loan_lines WHERE loan_id = $1 ORDER BY added_at ASC`
	rows, err := s.dbtx.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("listing loan lines: %w", err)
	}
	defer rows.Close()

	var out []LineRow
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan line row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLine returns a single loan line.
func (s *Store) GetLine(ctx context.Context, lineID uuid.UUID) (LineRow, error) {
	query := `SELECT ` + lineColumns + ` FROM loan_lines WHERE id = $1`
	return scanLine(s.dbtx.QueryRow(ctx, query, lineID))
}

// AddLine inserts a loan line. Exactly one of assetItemID or assetModelID
// must be non-nil (L2), enforced by the caller and backstopped by a CHECK
// constraint on the table.
func (s *Store) AddLine(ctx context.Context, loanID uuid.UUID, assetItemID, assetModelID *uuid.UUID, quantity int) (LineRow, error) {
	query := `INSERT INTO loan_lines (loan_id, asset_item_id, asset_model_id, quantity, added_at)
	VALUES ($1, $2, $3, $4, now()) RETURNING ` + lineColumns
	return scanLine(s.dbtx.QueryRow(ctx, query, loanID, assetItemID, assetModelID, quantity))
}

// DeleteLine removes a loan line.
func (s *Store) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM loan_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("deleting loan line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetPickupSignature records the pickup signature reference and timestamp.
func (s *Store) SetPickupSignature(ctx context.Context, loanID uuid.UUID, url string, signedAt time.Time) error {
	_, err := s.dbtx.Exec(ctx,
		`UPDATE loans SET pickup_signature_url = $2, pickup_signed_at = $3 WHERE id = $1`,
		loanID, url, signedAt)
	if err != nil {
		return fmt.Errorf("setting pickup signature: %w", err)
	}
	return nil
}

// SetReturnSignature records the return signature reference and timestamp.
func (s *Store) SetReturnSignature(ctx context.Context, loanID uuid.UUID, url string, signedAt time.Time) error {
	_, err := s.dbtx.Exec(ctx,
		`UPDATE loans SET return_signature_url = $2, return_signed_at = $3 WHERE id = $1`,
		loanID, url, signedAt)
	if err != nil {
		return fmt.Errorf("setting return signature: %w", err)
	}
	return nil
}

// Close transitions a loan to CLOSED with closed_at = now.
func (s *Store) Close(ctx context.Context, loanID uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE loans SET status = $2, closed_at = now() WHERE id = $1`, loanID, StatusClosed)
	if err != nil {
		return fmt.Errorf("closing loan: %w", err)
	}
	return nil
}

// SoftDelete sets deleted_at/deleted_by on a loan.
func (s *Store) SoftDelete(ctx context.Context, loanID, deletedBy uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE loans SET deleted_at = now(), deleted_by = $2 WHERE id = $1`, loanID, deletedBy)
	if err != nil {
		return fmt.Errorf("soft deleting loan: %w", err)
	}
	return nil
}
