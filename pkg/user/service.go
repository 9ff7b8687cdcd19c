package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/auth"
	"github.com/gearloop/assetloan/internal/store"
)

// Service encapsulates user business logic: registration (first-user-is-
// ADMIN), and password verification for login.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a user Service backed by the given connection or
// transaction.
func NewService(dbtx store.DBTX, logger *slog.Logger) *Service {
	return &Service{store: NewStore(dbtx), logger: logger}
}

// Get returns a single user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Response, error) {
	row, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Response{}, fmt.Errorf("getting user: %w", err)
	}
	return row.ToResponse(), nil
}

// Register creates a new user. The first user ever registered becomes
// ADMIN; every subsequent registration defaults to MANAGER (§8 scenario 1).
// A duplicate email surfaces as apperr.Conflict.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Response, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("counting users: %w", err)
	}

	role := auth.RoleManager
	if count == 0 {
		role = auth.RoleAdmin
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	row, err := s.store.Create(ctx, CreateParams{Email: req.Email, PasswordHash: hash, Role: role})
	if err != nil {
		if store.IsUniqueViolation(err, "") {
			return Response{}, apperr.Conflict("an account with this email already exists")
		}
		return Response{}, fmt.Errorf("creating user: %w", err)
	}

	return row.ToResponse(), nil
}

// Authenticate verifies email/password and returns the matching user row.
// A missing user and a wrong password must be indistinguishable to the
// caller (both are "invalid credentials") to avoid a user-enumeration
// oracle.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Row, error) {
	row, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return Row{}, fmt.Errorf("looking up user: %w", err)
	}

	if !auth.VerifyPassword(row.PasswordHash, password) {
		return Row{}, apperr.Unauthorized("invalid credentials")
	}

	return row, nil
}

// ChangeRole updates a user's role. The handler restricts this to ADMIN
// callers and is responsible for invalidating the target's outstanding
// tokens afterward (§4.4 T1): a role change can grant or revoke permission,
// so existing tokens must be re-verified against the new role rather than
// trusted until they expire.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role string) (Response, error) {
	row, err := s.store.UpdateRole(ctx, id, role)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Response{}, fmt.Errorf("updating user role: %w", err)
	}
	return row.ToResponse(), nil
}

// ChangePassword re-hashes and stores a new password for id. As with
// ChangeRole, the handler invalidates the user's outstanding tokens after
// this commits, so a leaked old token stops working the moment the
// credential it was issued under is replaced.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, newPassword string) (Response, error) {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	row, err := s.store.UpdatePasswordHash(ctx, id, hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Response{}, fmt.Errorf("updating user password: %w", err)
	}
	return row.ToResponse(), nil
}
