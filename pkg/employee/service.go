package employee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/store"
)

// Service encapsulates employee business logic.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates an employee Service backed by the given connection or
// transaction.
func NewService(dbtx store.DBTX, logger *slog.Logger) *Service {
	return &Service{store: NewStore(dbtx), logger: logger}
}

// Get returns a single employee.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Response, error) {
	row, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("employee not found")
	}
	if err != nil {
		return Response{}, fmt.Errorf("getting employee: %w", err)
	}
	return row.ToResponse(), nil
}

// List returns a paginated employee list.
func (s *Service) List(ctx context.Context, p store.PageParams) (store.Page[Response], error) {
	rows, total, err := s.store.List(ctx, p)
	if err != nil {
		return store.Page[Response]{}, fmt.Errorf("listing employees: %w", err)
	}

	items := make([]Response, len(rows))
	for i := range rows {
		items[i] = rows[i].ToResponse()
	}
	return store.NewPage(items, p, total), nil
}

// Create creates a new employee. managerUserID is the owning manager:
// callers pass req.ManagerUserID only when the caller is ADMIN; otherwise
// the handler has already forced it to the caller's own user id.
func (s *Service) Create(ctx context.Context, req CreateRequest, managerUserID uuid.UUID) (Response, error) {
	row, err := s.store.Create(ctx, CreateParams{Name: req.Name, Email: req.Email, ManagerUserID: managerUserID})
	if err != nil {
		if store.IsUniqueViolation(err, "") {
			return Response{}, apperr.Conflict("an employee with this email already exists")
		}
		return Response{}, fmt.Errorf("creating employee: %w", err)
	}
	return row.ToResponse(), nil
}

// Update updates an employee's editable fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest, managerUserID uuid.UUID) (Response, error) {
	row, err := s.store.Update(ctx, UpdateParams{ID: id, Name: req.Name, Email: req.Email, ManagerUserID: managerUserID})
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("employee not found")
	}
	if err != nil {
		if store.IsUniqueViolation(err, "") {
			return Response{}, apperr.Conflict("an employee with this email already exists")
		}
		return Response{}, fmt.Errorf("updating employee: %w", err)
	}
	return row.ToResponse(), nil
}

// Delete removes an employee. L1 requires this fail with conflict while any
// loan (including soft-deleted) still references the employee; the
// employees.id → loans.employee_id foreign key (no ON DELETE CASCADE)
// enforces this as the backstop, translated here to apperr.Conflict.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("employee not found")
	}
	if store.IsForeignKeyViolation(err) {
		return apperr.Conflict("employee is referenced by one or more loans")
	}
	if err != nil {
		return fmt.Errorf("deleting employee: %w", err)
	}
	return nil
}

// Resolver is an auth.OwnerResolver for the employee resource kind
// (§4.7: identity.user-id == employee.manager-user-id).
func (s *Service) Resolver() func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
		row, err := s.store.Get(ctx, id)
		if err != nil {
			return uuid.Nil, err
		}
		return row.ManagerUserID, nil
	}
}
