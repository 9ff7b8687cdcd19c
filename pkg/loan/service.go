package loan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/apperr"
	"github.com/gearloop/assetloan/internal/audit"
	"github.com/gearloop/assetloan/internal/store"
	"github.com/gearloop/assetloan/internal/telemetry"
	"github.com/gearloop/assetloan/pkg/inventory"
)

// Service implements the loan lifecycle state machine (C9). Every mutating
// operation runs inside one SERIALIZABLE transaction via
// store.RetrySerializable, since creating or closing a loan may contend with
// another loan over the same StockItem or AssetItem row (C10); the audit
// entry for the mutation is written inside the same transaction so it
// commits or rolls back atomically with the business change (§4.8, §5).
type Service struct {
	root   *store.Store
	logger *slog.Logger
}

// NewService creates a loan Service. Unlike the other domain services, this
// one is always constructed from the root *store.Store rather than a bare
// DBTX: every operation opens its own retried transaction instead of
// joining a caller-supplied one.
func NewService(root *store.Store, logger *slog.Logger) *Service {
	return &Service{root: root, logger: logger}
}

// Get returns a single loan with its lines. includeDeleted lets ADMIN
// fetch a soft-deleted loan; any other caller gets not-found.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (Response, error) {
	loanStore := NewStore(s.root.Pool)
	row, err := loanStore.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("loan not found")
	}
	if err != nil {
		return Response{}, fmt.Errorf("getting loan: %w", err)
	}
	if row.DeletedAt != nil && !includeDeleted {
		return Response{}, apperr.NotFound("loan not found")
	}

	lines, err := loanStore.ListLines(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("listing loan lines: %w", err)
	}
	return toResponse(row, lines), nil
}

// List returns a paginated loan list, excluding soft-deleted entries unless
// includeDeleted is set (ADMIN only, enforced by the handler).
func (s *Service) List(ctx context.Context, p store.PageParams, includeDeleted bool) (store.Page[Response], error) {
	loanStore := NewStore(s.root.Pool)
	rows, total, err := loanStore.List(ctx, p, includeDeleted)
	if err != nil {
		return store.Page[Response]{}, fmt.Errorf("listing loans: %w", err)
	}

	items := make([]Response, len(rows))
	for i := range rows {
		lines, err := loanStore.ListLines(ctx, rows[i].ID)
		if err != nil {
			return store.Page[Response]{}, fmt.Errorf("listing loan lines: %w", err)
		}
		items[i] = toResponse(rows[i], lines)
	}
	return store.NewPage(items, p, total), nil
}

// Create opens a new loan for an employee with an initial (possibly empty)
// set of lines, all in one SERIALIZABLE transaction (§4.9 create).
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy uuid.UUID) (Response, error) {
	for _, l := range req.Lines {
		if !l.valid() {
			return Response{}, apperr.Validation("each line must specify exactly one of asset_item_id or asset_model_id+quantity")
		}
	}

	var resp Response
	err := s.runTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loanStore := NewStore(tx)
		invStore := inventory.NewStore(tx)

		loanRow, err := loanStore.Create(ctx, req.EmployeeID, createdBy)
		if err != nil {
			if store.IsForeignKeyViolation(err) {
				return apperr.Validation("unknown employee")
			}
			return fmt.Errorf("creating loan: %w", err)
		}

		lines, err := addLines(ctx, loanStore, invStore, loanRow.ID, req.Lines)
		if err != nil {
			return err
		}

		detail, _ := json.Marshal(map[string]any{"employee_id": req.EmployeeID, "line_count": len(lines)})
		if err := audit.Log(ctx, tx, audit.Entry{
			ActorID: createdBy, Action: "loan.create", EntityType: "loan", EntityID: loanRow.ID, Detail: detail,
		}); err != nil {
			return err
		}

		resp = toResponse(loanRow, lines)
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	telemetry.LoansCreatedTotal.Inc()
	return resp, nil
}

// AddLine adds one line to an OPEN, undeleted loan (§4.9 add_line).
func (s *Service) AddLine(ctx context.Context, loanID uuid.UUID, spec LineSpec, actor uuid.UUID) (Response, error) {
	if !spec.valid() {
		return Response{}, apperr.Validation("line must specify exactly one of asset_item_id or asset_model_id+quantity")
	}

	var resp Response
	err := s.runTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loanStore := NewStore(tx)
		invStore := inventory.NewStore(tx)

		loanRow, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return notFoundOrErr(err, "loan not found")
		}
		if err := assertMutable(loanRow); err != nil {
			return err
		}

		if _, err := addLines(ctx, loanStore, invStore, loanID, []LineSpec{spec}); err != nil {
			return err
		}

		detail, _ := json.Marshal(map[string]any{"line": spec})
		if err := audit.Log(ctx, tx, audit.Entry{
			ActorID: actor, Action: "loan.add_line", EntityType: "loan", EntityID: loanID, Detail: detail,
		}); err != nil {
			return err
		}

		allLines, err := loanStore.ListLines(ctx, loanID)
		if err != nil {
			return fmt.Errorf("listing loan lines: %w", err)
		}
		resp = toResponse(loanRow, allLines)
		return nil
	})
	return resp, err
}

// RemoveLine reverses the status/stock effect of a line on an OPEN loan
// (§4.9 remove_line).
func (s *Service) RemoveLine(ctx context.Context, loanID, lineID, actor uuid.UUID) (Response, error) {
	var resp Response
	err := s.runTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loanStore := NewStore(tx)
		invStore := inventory.NewStore(tx)

		loanRow, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return notFoundOrErr(err, "loan not found")
		}
		if err := assertMutable(loanRow); err != nil {
			return err
		}

		line, err := loanStore.GetLine(ctx, lineID)
		if err != nil || line.LoanID != loanID {
			return apperr.NotFound("loan line not found")
		}

		if err := reverseLine(ctx, invStore, line); err != nil {
			return err
		}
		if err := loanStore.DeleteLine(ctx, lineID); err != nil {
			return fmt.Errorf("deleting loan line: %w", err)
		}

		if err := audit.Log(ctx, tx, audit.Entry{
			ActorID: actor, Action: "loan.remove_line", EntityType: "loan", EntityID: loanID,
		}); err != nil {
			return err
		}

		lines, err := loanStore.ListLines(ctx, loanID)
		if err != nil {
			return fmt.Errorf("listing loan lines: %w", err)
		}
		resp = toResponse(loanRow, lines)
		return nil
	})
	return resp, err
}

// SignPickup and SignReturn attach a signature reference to an OPEN loan.
// Re-signing an already-signed slot is rejected unless the request sets
// Override and actorIsAdmin; such an override is recorded as a single
// loan.role_override audit entry in place of the normal loan.sign_* entry
// (§4.9 sign_pickup / sign_return).
func (s *Service) SignPickup(ctx context.Context, loanID uuid.UUID, req SignatureRequest, actor uuid.UUID, actorIsAdmin bool) (Response, error) {
	return s.sign(ctx, loanID, req, actor, actorIsAdmin, "pickup")
}

func (s *Service) SignReturn(ctx context.Context, loanID uuid.UUID, req SignatureRequest, actor uuid.UUID, actorIsAdmin bool) (Response, error) {
	return s.sign(ctx, loanID, req, actor, actorIsAdmin, "return")
}

func (s *Service) sign(ctx context.Context, loanID uuid.UUID, req SignatureRequest, actor uuid.UUID, actorIsAdmin bool, which string) (Response, error) {
	var resp Response
	err := s.runTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loanStore := NewStore(tx)

		loanRow, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return notFoundOrErr(err, "loan not found")
		}
		if err := assertMutable(loanRow); err != nil {
			return err
		}

		alreadySigned := (which == "pickup" && loanRow.PickupSignatureURL != nil) ||
			(which == "return" && loanRow.ReturnSignatureURL != nil)
		if alreadySigned && !req.Override {
			return apperr.Conflict(which + " signature already present")
		}
		if alreadySigned && !actorIsAdmin {
			return apperr.Forbidden("only an admin may override an existing signature")
		}

		now := time.Now()
		if which == "pickup" {
			if err := loanStore.SetPickupSignature(ctx, loanID, req.Reference, now); err != nil {
				return err
			}
		} else {
			if err := loanStore.SetReturnSignature(ctx, loanID, req.Reference, now); err != nil {
				return err
			}
		}

		action := "loan.sign_" + which
		if alreadySigned && actorIsAdmin {
			action = "loan.role_override"
		}
		if err := audit.Log(ctx, tx, audit.Entry{
			ActorID: actor, Action: action, EntityType: "loan", EntityID: loanID,
		}); err != nil {
			return err
		}

		lines, err := loanStore.ListLines(ctx, loanID)
		if err != nil {
			return fmt.Errorf("listing loan lines: %w", err)
		}
		updated, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return fmt.Errorf("re-reading loan: %w", err)
		}
		resp = toResponse(updated, lines)
		return nil
	})
	return resp, err
}

// Close transitions an OPEN loan with both signatures and at least one line
// to CLOSED, reversing every line's status/stock effect (§4.9 close).
func (s *Service) Close(ctx context.Context, loanID, actor uuid.UUID) (Response, error) {
	var resp Response
	err := s.runTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loanStore := NewStore(tx)
		invStore := inventory.NewStore(tx)

		loanRow, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return notFoundOrErr(err, "loan not found")
		}
		if loanRow.DeletedAt != nil {
			return apperr.NotFound("loan not found")
		}
		if loanRow.Status != StatusOpen {
			return apperr.Conflict("loan is not open")
		}
		if loanRow.PickupSignatureURL == nil || loanRow.ReturnSignatureURL == nil {
			return apperr.Conflict("loan requires both pickup and return signatures before closing")
		}

		lines, err := loanStore.ListLines(ctx, loanID)
		if err != nil {
			return fmt.Errorf("listing loan lines: %w", err)
		}
		if len(lines) == 0 {
			return apperr.Conflict("loan has no lines")
		}

		for _, line := range lines {
			if err := reverseLine(ctx, invStore, line); err != nil {
				return err
			}
		}
		if err := loanStore.Close(ctx, loanID); err != nil {
			return err
		}

		if err := audit.Log(ctx, tx, audit.Entry{
			ActorID: actor, Action: "loan.close", EntityType: "loan", EntityID: loanID,
		}); err != nil {
			return err
		}

		updated, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return fmt.Errorf("re-reading loan: %w", err)
		}
		resp = toResponse(updated, lines)
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	telemetry.LoansClosedTotal.Inc()
	return resp, nil
}

// SoftDelete marks a loan deleted, reversing the effects of any un-closed
// lines exactly as Close would so A1/A2/S1 hold across the delete (§4.9
// soft_delete).
func (s *Service) SoftDelete(ctx context.Context, loanID, actor uuid.UUID) error {
	return s.runTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loanStore := NewStore(tx)
		invStore := inventory.NewStore(tx)

		loanRow, err := loanStore.Get(ctx, loanID)
		if err != nil {
			return notFoundOrErr(err, "loan not found")
		}
		if loanRow.DeletedAt != nil {
			return apperr.NotFound("loan not found")
		}

		if loanRow.Status == StatusOpen {
			lines, err := loanStore.ListLines(ctx, loanID)
			if err != nil {
				return fmt.Errorf("listing loan lines: %w", err)
			}
			for _, line := range lines {
				if err := reverseLine(ctx, invStore, line); err != nil {
					return err
				}
			}
		}

		if err := loanStore.SoftDelete(ctx, loanID, actor); err != nil {
			return err
		}

		return audit.Log(ctx, tx, audit.Entry{
			ActorID: actor, Action: "loan.delete", EntityType: "loan", EntityID: loanID,
		})
	})
}

// Resolver is an auth.OwnerResolver for the loan resource kind: ownership
// is the loan's creator (§4.9: "creator-only" on mutating endpoints).
func (s *Service) Resolver() func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
		row, err := NewStore(s.root.Pool).Get(ctx, id)
		if err != nil {
			return uuid.Nil, err
		}
		return row.CreatedBy, nil
	}
}

// runTransaction wraps fn in store.RetrySerializable, counting every
// serialization-failure retry against the same stock-contention metrics C10
// uses: a loan transaction fails to serialize for exactly the reason a bare
// stock reservation would, since it performs the same StockItem/AssetItem
// mutations under the same isolation level.
func (s *Service) runTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	err := s.root.RetrySerializable(ctx, func(error) {
		telemetry.StockReservationRetriesTotal.Inc()
	}, fn)
	if err != nil && store.IsSerializationFailure(err) {
		telemetry.StockReservationConflictsTotal.Inc()
		return apperr.Conflict("stock contention, retry")
	}
	return err
}

// addLines applies each line spec: asset-item lines transition the item
// IN_STOCK -> LENT (A1/A2), stock lines reserve against the asset model's
// StockItem (C10). Returns the created line rows.
func addLines(ctx context.Context, loanStore *Store, invStore *inventory.Store, loanID uuid.UUID, specs []LineSpec) ([]LineRow, error) {
	lines := make([]LineRow, 0, len(specs))
	for _, spec := range specs {
		if spec.isStockLine() {
			stockItem, err := invStore.GetStockItemByAssetModel(ctx, *spec.AssetModelID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperr.Validation("no stock item configured for this asset model")
				}
				return nil, fmt.Errorf("looking up stock item: %w", err)
			}
			if err := reserveStock(ctx, invStore, stockItem.ID, spec.Quantity); err != nil {
				return nil, err
			}
			line, err := loanStore.AddLine(ctx, loanID, nil, spec.AssetModelID, spec.Quantity)
			if err != nil {
				return nil, fmt.Errorf("adding stock line: %w", err)
			}
			lines = append(lines, line)
			continue
		}

		if err := invStore.SetAssetItemStatus(ctx, *spec.AssetItemID, inventory.AssetStatusInStock, inventory.AssetStatusLent); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.Conflict("asset item is not available")
			}
			return nil, fmt.Errorf("transitioning asset item: %w", err)
		}
		line, err := loanStore.AddLine(ctx, loanID, spec.AssetItemID, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("adding asset item line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// reserveStock and reverseLine are the two directions of the C10 stock
// adjustment. Both call AdjustLoaned directly inside the loan's own
// transaction so the stock mutation commits atomically with the rest of the
// loan change instead of opening a second, independently-retried
// transaction.
func reserveStock(ctx context.Context, invStore *inventory.Store, stockItemID uuid.UUID, qty int) error {
	if err := invStore.AdjustLoaned(ctx, stockItemID, qty); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			return apperr.Conflict("insufficient stock available")
		}
		return err
	}
	return nil
}

// reverseLine undoes a single line's effect: an asset-item line goes back
// to IN_STOCK, a stock line releases its quantity.
func reverseLine(ctx context.Context, invStore *inventory.Store, line LineRow) error {
	if line.AssetItemID != nil {
		if err := invStore.SetAssetItemStatus(ctx, *line.AssetItemID, inventory.AssetStatusLent, inventory.AssetStatusInStock); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reversing asset item status: %w", err)
		}
		return nil
	}

	stockItem, err := invStore.GetStockItemByAssetModel(ctx, *line.AssetModelID)
	if err != nil {
		return fmt.Errorf("looking up stock item to release: %w", err)
	}
	if err := invStore.AdjustLoaned(ctx, stockItem.ID, -line.Quantity); err != nil {
		return fmt.Errorf("releasing stock line: %w", err)
	}
	return nil
}

// assertMutable enforces the "only on OPEN, undeleted loans" precondition
// shared by add_line, remove_line, and the signature endpoints.
func assertMutable(row Row) error {
	if row.DeletedAt != nil {
		return apperr.NotFound("loan not found")
	}
	if row.Status != StatusOpen {
		return apperr.Conflict("loan is not open")
	}
	return nil
}

func notFoundOrErr(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(message)
	}
	return fmt.Errorf("getting loan: %w", err)
}

func toResponse(row Row, lines []LineRow) Response {
	lineResponses := make([]LineResponse, len(lines))
	for i := range lines {
		lineResponses[i] = lines[i].ToResponse()
	}
	return Response{
		ID: row.ID, EmployeeID: row.EmployeeID, Status: row.Status, OpenedAt: row.OpenedAt,
		ClosedAt: row.ClosedAt, PickupSignatureURL: row.PickupSignatureURL, PickupSignedAt: row.PickupSignedAt,
		ReturnSignatureURL: row.ReturnSignatureURL, ReturnSignedAt: row.ReturnSignedAt,
		CreatedBy: row.CreatedBy, DeletedAt: row.DeletedAt, DeletedBy: row.DeletedBy,
		Lines: lineResponses,
	}
}
