// Package inventory implements the AssetModel, AssetItem, and StockItem
// entities (§3) and the stock reservation engine (C10) that arbitrates
// concurrent draws against a shared consumable pool.
package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Asset item lifecycle states (§4.9).
const (
	AssetStatusInStock = "IN_STOCK"
	AssetStatusLent    = "LENT"
)

// AssetModelRequest is the JSON body for creating/updating an asset model.
type AssetModelRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	Manufacturer string `json:"manufacturer" validate:"max=200"`
	Category     string `json:"category" validate:"max=100"`
}

// AssetModelResponse is the JSON response for an asset model.
type AssetModelResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssetItemRequest is the JSON body for creating an asset item.
type AssetItemRequest struct {
	AssetModelID uuid.UUID `json:"asset_model_id" validate:"required"`
	AssetTag     string    `json:"asset_tag" validate:"required,min=1,max=100"`
}

// AssetItemResponse is the JSON response for an asset item.
type AssetItemResponse struct {
	ID           uuid.UUID `json:"id"`
	AssetModelID uuid.UUID `json:"asset_model_id"`
	AssetTag     string    `json:"asset_tag"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StockItemRequest is the JSON body for creating/updating a stock item.
type StockItemRequest struct {
	AssetModelID uuid.UUID `json:"asset_model_id" validate:"required"`
	Quantity     int       `json:"quantity" validate:"gte=0"`
}

// StockItemResponse is the JSON response for a stock item.
type StockItemResponse struct {
	ID           uuid.UUID `json:"id"`
	AssetModelID uuid.UUID `json:"asset_model_id"`
	Quantity     int       `json:"quantity"`
	Loaned       int       `json:"loaned"`
	Available    int       `json:"available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
