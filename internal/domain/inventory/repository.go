// Package inventory provides the append-only inventory ledger.
package inventory

import (
	"context"
	"time"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// Repository defines persistence for inventory items and movements.
type Repository interface {
	// GetItem returns the balance row for (product, warehouse).
	// A missing row reads as a zero item.
	GetItem(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error)

	// GetItemForUpdate returns the balance row with a row lock, inserting
	// a zero row first if absent. Serialises concurrent writers to the
	// same (product, warehouse).
	GetItemForUpdate(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error)

	// UpdateItem persists quantity and weighted average cost.
	UpdateItem(ctx context.Context, item entity.InventoryItem) error

	// CreateMovements batch inserts movements over the COPY protocol.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByDocument returns all movements recorded for a document.
	GetMovementsByDocument(ctx context.Context, docKind string, docID id.ID) ([]entity.StockMovement, error)

	// MovementHistory returns movements for a product filtered and ordered
	// by creation time.
	MovementHistory(ctx context.Context, productID id.ID, f MovementFilter) ([]entity.StockMovement, error)

	// ListItems returns balance rows, optionally scoped to one warehouse,
	// excluding zero rows when requested.
	ListItems(ctx context.Context, warehouseID *id.ID, excludeZero bool) ([]entity.InventoryItem, error)

	// Turnover sums receipts and issues for the filter range.
	Turnover(ctx context.Context, f TurnoverFilter) (Turnover, error)
}

// MovementFilter for movement history queries.
type MovementFilter struct {
	WarehouseID *id.ID
	Kind        *entity.MovementKind
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// TurnoverFilter for turnover reports.
type TurnoverFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	FromDate    time.Time
	ToDate      time.Time
}

// Turnover represents receipt/issue totals over a period.
type Turnover struct {
	WarehouseID    id.ID          `json:"warehouseId,omitempty"`
	ProductID      id.ID          `json:"productId,omitempty"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Receipt        types.Quantity `json:"receipt"`
	Issue          types.Quantity `json:"issue"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}
