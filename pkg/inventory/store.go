package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearloop/assetloan/internal/store"
)

// ErrInsufficientStock signals that a reservation or release would push
// loaned outside [0, quantity]. The loan engine (pkg/loan), the only caller
// of AdjustLoaned, checks for this sentinel and translates it to
// apperr.Conflict.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// Store provides database operations for asset models, asset items, and
// stock items. All three share one Store since they are read and written
// together constantly (a loan line touches an AssetItem or a StockItem
// alongside its AssetModel).
type Store struct {
	dbtx store.DBTX
}

// NewStore creates an inventory Store backed by the given connection or
// transaction.
func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// --- AssetModel ---------------------------------------------------------

const assetModelColumns = `id, name, manufacturer, category, created_at, updated_at`

// AssetModelRow is a row from asset_models.
type AssetModelRow struct {
	ID           uuid.UUID
	Name         string
	Manufacturer string
	Category     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *AssetModelRow) ToResponse() AssetModelResponse {
	return AssetModelResponse{
		ID: r.ID, Name: r.Name, Manufacturer: r.Manufacturer, Category: r.Category,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func scanAssetModel(row pgx.Row) (AssetModelRow, error) {
	var m AssetModelRow
	err := row.Scan(&m.ID, &m.Name, &m.Manufacturer, &m.Category, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetAssetModel returns a single asset model.
func (s *Store) GetAssetModel(ctx context.Context, id uuid.UUID) (AssetModelRow, error) {
	query := `SELECT ` + assetModelColumns + ` FROM asset_models WHERE id = $1`
	return scanAssetModel(s.dbtx.QueryRow(ctx, query, id))
}

// ListAssetModels returns asset models with offset pagination.
func (s *Store) ListAssetModels(ctx context.Context, p store.PageParams) ([]AssetModelRow, int, error) {
	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM asset_models`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting asset models: %w", err)
	}

	query := `SELECT ` + assetModelColumns + ` FROM asset_models ORDER BY name ASC LIMIT $1 OFFSET $2`
	rows, err := s.dbtx.Query(ctx, query, p.PageSize, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing asset models: %w", err)
	}
	defer rows.Close()

	var out []AssetModelRow
	for rows.Next() {
		m, err := scanAssetModel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning asset model row: %w", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// CreateAssetModel inserts a new asset model.
func (s *Store) CreateAssetModel(ctx context.Context, p AssetModelRequest) (AssetModelRow, error) {
	query := `INSERT INTO asset_models (name, manufacturer, category)
	VALUES ($1, $2, $3) RETURNING ` + assetModelColumns
	return scanAssetModel(s.dbtx.QueryRow(ctx, query, p.Name, p.Manufacturer, p.Category))
}

// --- AssetItem -----------------------------------------------------------

const assetItemColumns = `id, asset_model_id, asset_tag, status, created_at, updated_at`

// AssetItemRow is a row from asset_items.
type AssetItemRow struct {
	ID           uuid.UUID
	AssetModelID uuid.UUID
	AssetTag     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *AssetItemRow) ToResponse() AssetItemResponse {
	return AssetItemResponse{
		ID: r.ID, AssetModelID: r.AssetModelID, AssetTag: r.AssetTag, Status: r.Status,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func scanAssetItem(row pgx.Row) (AssetItemRow, error) {
	var a AssetItemRow
	err := row.Scan(&a.ID, &a.AssetModelID, &a.AssetTag, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetAssetItem returns a single asset item.
func (s *Store) GetAssetItem(ctx context.Context, id uuid.UUID) (AssetItemRow, error) {
	query := `SELECT ` + assetItemColumns + ` FROM asset_items WHERE id = $1`
	return scanAssetItem(s.dbtx.QueryRow(ctx, query, id))
}

// ListAssetItems returns asset items with offset pagination.
func (s *Store) ListAssetItems(ctx context.Context, p store.PageParams) ([]AssetItemRow, int, error) {
	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM asset_items`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting asset items: %w", err)
	}

	query := `SELECT ` + assetItemColumns + ` FROM asset_items ORDER BY asset_tag ASC LIMIT $1 OFFSET $2`
	rows, err := s.dbtx.Query(ctx, query, p.PageSize, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing asset items: %w", err)
	}
	defer rows.Close()

	var out []AssetItemRow
	for rows.Next() {
		a, err := scanAssetItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning asset item row: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// CreateAssetItem inserts a new asset item in IN_STOCK status.
func (s *Store) CreateAssetItem(ctx context.Context, p AssetItemRequest) (AssetItemRow, error) {
	query := `INSERT INTO asset_items (asset_model_id, asset_tag, status)
	VALUES ($1, $2, $3) RETURNING ` + assetItemColumns
	return scanAssetItem(s.dbtx.QueryRow(ctx, query, p.AssetModelID, p.AssetTag, AssetStatusInStock))
}

// SetAssetItemStatus transitions an asset item's status only if its current
// status matches expectCurrent, returning pgx.ErrNoRows if it does not (used
// by the loan engine to enforce A1/A2 atomically with the row's own
// update, not via a separate read-then-write).
func (s *Store) SetAssetItemStatus(ctx context.Context, id uuid.UUID, expectCurrent, next string) error {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE asset_items SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, expectCurrent, next)
	if err != nil {
		return fmt.Errorf("updating asset item status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- StockItem -------------------------------------------------------------

const stockItemColumns = `id, asset_model_id, quantity, loaned, created_at, updated_at`

// StockItemRow is a row from stock_items.
type StockItemRow struct {
	ID           uuid.UUID
	AssetModelID uuid.UUID
	Quantity     int
	Loaned       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *StockItemRow) ToResponse() StockItemResponse {
	return StockItemResponse{
		ID: r.ID, AssetModelID: r.AssetModelID, Quantity: r.Quantity, Loaned: r.Loaned,
		Available: r.Quantity - r.Loaned, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func scanStockItem(row pgx.Row) (StockItemRow, error) {
	var s StockItemRow
	err := row.Scan(&s.ID, &s.AssetModelID, &s.Quantity, &s.Loaned, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetStockItem returns a single stock item.
func (s *Store) GetStockItem(ctx context.Context, id uuid.UUID) (StockItemRow, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE id = $1`
	return scanStockItem(s.dbtx.QueryRow(ctx, query, id))
}

// GetStockItemByAssetModel returns the stock item for an asset model. A
// StockItem is keyed one-to-one by asset model (§3), so the loan engine
// resolves a stock line's asset-model-id to its StockItem this way before
// reserving against it.
func (s *Store) GetStockItemByAssetModel(ctx context.Context, assetModelID uuid.UUID) (StockItemRow, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE asset_model_id = $1`
	return scanStockItem(s.dbtx.QueryRow(ctx, query, assetModelID))
}

// ListStockItems returns stock items with offset pagination.
func (s *Store) ListStockItems(ctx context.Context, p store.PageParams) ([]StockItemRow, int, error) {
	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM stock_items`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting stock items: %w", err)
	}

	query := `SELECT ` + stockItemColumns + ` FROM stock_items ORDER BY created_at ASC LIMIT $1 OFFSET $2`
	rows, err := s.dbtx.Query(ctx, query, p.PageSize, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing stock items: %w", err)
	}
	defer rows.Close()

	var out []StockItemRow
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning stock item row: %w", err)
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// CreateStockItem inserts a new stock item with zero units loaned.
func (s *Store) CreateStockItem(ctx context.Context, p StockItemRequest) (StockItemRow, error) {
	query := `INSERT INTO stock_items (asset_model_id, quantity, loaned)
	VALUES ($1, $2, 0) RETURNING ` + stockItemColumns
	return scanStockItem(s.dbtx.QueryRow(ctx, query, p.AssetModelID, p.Quantity))
}

// AdjustLoaned applies delta to loaned (positive to reserve, negative to
// release) after asserting the result stays within [0, quantity]. Must run
// inside a SERIALIZABLE transaction (C10): the loan engine (pkg/loan) is the
// sole caller, invoking this directly from inside its own
// loan-creation/close/delete transaction so the stock mutation commits
// atomically with the rest of the loan change. The CHECK constraint on the
// table is the backstop if this assertion is ever bypassed.
func (s *Store) AdjustLoaned(ctx context.Context, id uuid.UUID, delta int) error {
	row, err := s.GetStockItem(ctx, id)
	if err != nil {
		return err
	}

	newLoaned, ok := nextLoaned(row.Loaned, delta, row.Quantity)
	if !ok {
		return ErrInsufficientStock
	}

	_, err = s.dbtx.Exec(ctx, `UPDATE stock_items SET loaned = $2, updated_at = now() WHERE id = $1`, id, newLoaned)
	if err != nil {
		return fmt.Errorf("adjusting stock item: %w", err)
	}
	return nil
}

// nextLoaned computes loaned+delta and reports whether it stays within
// [0, quantity] — the invariant S1 requires to hold after every reservation
// or release. Split out from AdjustLoaned so the bounds arithmetic can be
// tested without a database.
func nextLoaned(loaned, delta, quantity int) (int, bool) {
	next := loaned + delta
	if next < 0 || next > quantity {
		return 0, false
	}
	return next, true
}
