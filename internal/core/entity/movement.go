package entity

import (
	"fmt"
	"time"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// MovementKind defines the direction and origin of a stock movement.
type MovementKind string

const (
	MovementIn          MovementKind = "in"
	MovementOut         MovementKind = "out"
	MovementTransferIn  MovementKind = "transfer_in"
	MovementTransferOut MovementKind = "transfer_out"
	MovementAdjustment  MovementKind = "adjustment"
	MovementReturnIn    MovementKind = "return_in"
	MovementReturnOut   MovementKind = "return_out"
)

// Increases reports whether the movement kind adds to stock on hand.
// Adjustments carry their own sign and are handled separately.
func (k MovementKind) Increases() bool {
	switch k {
	case MovementIn, MovementTransferIn, MovementReturnIn:
		return true
	}
	return false
}

// DocumentRef points a ledger record back at its source document.
// Kind+ID identify the document; Number is denormalised for statements.
type DocumentRef struct {
	Kind   string `db:"doc_kind" json:"docKind"`
	ID     id.ID  `db:"doc_id" json:"docId"`
	Number string `db:"doc_number" json:"docNumber"`
	LineID id.ID  `db:"doc_line_id" json:"docLineId,omitempty"`
}

// IsZero reports whether the reference is unset (manual entry).
func (r DocumentRef) IsZero() bool {
	return r.Kind == "" && id.IsNil(r.ID)
}

func (r DocumentRef) String() string {
	if r.IsZero() {
		return "manual"
	}
	return fmt.Sprintf("%s/%s", r.Kind, r.Number)
}

// StockMovement is one immutable row in the inventory ledger. Movements are
// never updated; retraction happens through compensating inverse movements.
type StockMovement struct {
	// LineID is the unique identifier for this movement (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// Dimensions
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Kind and quantity. Quantity is positive for all kinds except
	// adjustment, which carries its own sign.
	Kind     MovementKind   `db:"kind" json:"kind"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Running-balance snapshots taken under the item row lock
	QuantityBefore types.Quantity `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  types.Quantity `db:"quantity_after" json:"quantityAfter"`

	// UnitCost is the receipt cost for IN-kind movements and the weighted
	// average cost captured at issue for OUT-kind movements. COGS reversal
	// on returns reads this value instead of recomputing from current cost.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// Document is the source document reference
	Document DocumentRef `json:"document"`

	// Reference is a unique human-readable movement reference
	Reference string `db:"reference" json:"reference"`

	// Period is the business date for the movement
	Period time.Time `db:"period" json:"period"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
}

// SignedQuantity returns the quantity with sign based on kind. Adjustments
// carry their own sign and pass through unchanged.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.Kind == MovementAdjustment || m.Kind.Increases() {
		return m.Quantity
	}
	return m.Quantity.Neg()
}

// Inverse builds the compensating movement used when a source document is
// reversed. The inverse carries the original unit cost.
func (m *StockMovement) Inverse(ref string, createdBy string) StockMovement {
	inv := *m
	inv.LineID = id.New()
	inv.Kind = inverseKind(m.Kind)
	if m.Kind == MovementAdjustment {
		inv.Quantity = m.Quantity.Neg()
	}
	inv.Reference = ref
	inv.CreatedAt = time.Now().UTC()
	inv.CreatedBy = createdBy
	// Snapshots are recomputed by the ledger when the inverse is applied.
	inv.QuantityBefore = 0
	inv.QuantityAfter = 0
	return inv
}

func inverseKind(k MovementKind) MovementKind {
	switch k {
	case MovementIn:
		return MovementOut
	case MovementOut:
		return MovementIn
	case MovementTransferIn:
		return MovementTransferOut
	case MovementTransferOut:
		return MovementTransferIn
	case MovementReturnIn:
		return MovementReturnOut
	case MovementReturnOut:
		return MovementReturnIn
	default:
		return MovementAdjustment
	}
}

// InventoryItem is the materialised per-(product, warehouse) balance.
// Only the inventory ledger writes it, always under a row lock.
type InventoryItem struct {
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	WeightedAvgCost types.Money    `db:"weighted_avg_cost" json:"weightedAvgCost"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
