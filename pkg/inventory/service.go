package inventory

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

// Service encapsulates asset model, asset item, and stock item business
// logic. Loan-driven stock mutations call Store.AdjustLoaned directly from
// inside the loan engine's own SERIALIZABLE transaction (pkg/loan), not
// through this Service, so the stock change commits atomically with the
// rest of the loan mutation instead of opening a second transaction.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates an inventory Service backed by the given connection.
func NewService(dbtx store.DBTX, logger *slog.Logger) *Service {
	return &Service{store: NewStore(dbtx), logger: logger}
}

// --- AssetModel ---------------------------------------------------------

func (s *Service) GetAssetModel(ctx context.Context, id uuid.UUID) (AssetModelResponse, error) {
	row, err := s.store.GetAssetModel(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return AssetModelResponse{}, apperr.NotFound("asset model not found")
	}
	if err != nil {
		return AssetModelResponse{}, fmt.Errorf("getting asset model: %w", err)
	}
	return row.ToResponse(), nil
}

func (s *Service) ListAssetModels(ctx context.Context, p store.PageParams) (store.Page[AssetModelResponse], error) {
	rows, total, err := s.store.ListAssetModels(ctx, p)
	if err != nil {
		return store.Page[AssetModelResponse]{}, fmt.Errorf("listing asset models: %w", err)
	}
	items := make([]AssetModelResponse, len(rows))
	for i := range rows {
		items[i] = rows[i].ToResponse()
	}
	return store.NewPage(items, p, total), nil
}

func (s *Service) CreateAssetModel(ctx context.Context, req AssetModelRequest) (AssetModelResponse, error) {
	row, err := s.store.CreateAssetModel(ctx, req)
	if err != nil {
		return AssetModelResponse{}, fmt.Errorf("creating asset model: %w", err)
	}
	return row.ToResponse(), nil
}

// --- AssetItem -----------------------------------------------------------

func (s *Service) GetAssetItem(ctx context.Context, id uuid.UUID) (AssetItemResponse, error) {
	row, err := s.store.GetAssetItem(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return AssetItemResponse{}, apperr.NotFound("asset item not found")
	}
	if err != nil {
		return AssetItemResponse{}, fmt.Errorf("getting asset item: %w", err)
	}
	return row.ToResponse(), nil
}

func (s *Service) ListAssetItems(ctx context.Context, p store.PageParams) (store.Page[AssetItemResponse], error) {
	rows, total, err := s.store.ListAssetItems(ctx, p)
	if err != nil {
		return store.Page[AssetItemResponse]{}, fmt.Errorf("listing asset items: %w", err)
	}
	items := make([]AssetItemResponse, len(rows))
	for i := range rows {
		items[i] = rows[i].ToResponse()
	}
	return store.NewPage(items, p, total), nil
}

func (s *Service) CreateAssetItem(ctx context.Context, req AssetItemRequest) (AssetItemResponse, error) {
	row, err := s.store.CreateAssetItem(ctx, req)
	if err != nil {
		if store.IsUniqueViolation(err, "") {
			return AssetItemResponse{}, apperr.Conflict("an asset item with this tag already exists")
		}
		if store.IsForeignKeyViolation(err) {
			return AssetItemResponse{}, apperr.Validation("unknown asset model")
		}
		return AssetItemResponse{}, fmt.Errorf("creating asset item: %w", err)
	}
	return row.ToResponse(), nil
}

// --- StockItem -------------------------------------------------------------

func (s *Service) GetStockItem(ctx context.Context, id uuid.UUID) (StockItemResponse, error) {
	row, err := s.store.GetStockItem(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockItemResponse{}, apperr.NotFound("stock item not found")
	}
	if err != nil {
		return StockItemResponse{}, fmt.Errorf("getting stock item: %w", err)
	}
	return row.ToResponse(), nil
}

func (s *Service) ListStockItems(ctx context.Context, p store.PageParams) (store.Page[StockItemResponse], error) {
	rows, total, err := s.store.ListStockItems(ctx, p)
	if err != nil {
		return store.Page[StockItemResponse]{}, fmt.Errorf("listing stock items: %w", err)
	}
	items := make([]StockItemResponse, len(rows))
	for i := range rows {
		items[i] = rows[i].ToResponse()
	}
	return store.NewPage(items, p, total), nil
}

func (s *Service) CreateStockItem(ctx context.Context, req StockItemRequest) (StockItemResponse, error) {
	row, err := s.store.CreateStockItem(ctx, req)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return StockItemResponse{}, apperr.Validation("unknown asset model")
		}
		return StockItemResponse{}, fmt.Errorf("creating stock item: %w", err)
	}
	return row.ToResponse(), nil
}
