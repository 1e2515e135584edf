package inventory

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/audit"
	"pressledger/pkg/logger"
)

// MovementSpec describes one movement to apply. Quantity is positive for all
// kinds except adjustment, which carries its own sign. UnitCost is required
// for IN-kind movements at a known cost; OUT-kind movements capture the
// weighted average cost at issue when UnitCost is zero.
type MovementSpec struct {
	ProductID   id.ID
	WarehouseID id.ID
	Kind        entity.MovementKind
	Quantity    types.Quantity
	UnitCost    types.Money
	Document    entity.DocumentRef
	Reference   string
	Period      time.Time
	CreatedBy   string
}

// Ledger applies stock movements and maintains per-(product, warehouse)
// balances and weighted average costs. Transactions are managed by the
// caller; every Apply must run inside one.
type Ledger struct {
	repo  Repository
	audit audit.Recorder
	cfg   config.Config
}

// NewLedger creates a new inventory ledger.
func NewLedger(repo Repository, auditRec audit.Recorder, cfg config.Config) *Ledger {
	return &Ledger{
		repo:  repo,
		audit: auditRec,
		cfg:   cfg,
	}
}

// Apply records the movements in order, locking each item row, checking
// availability on OUT-kind movements, snapshotting before/after quantities,
// and maintaining the weighted average cost. Returns the applied movements
// with snapshots and captured costs filled in.
//
// Transfers must list the OUT spec before the IN spec; if the OUT fails the
// IN is never attempted.
func (l *Ledger) Apply(ctx context.Context, specs []MovementSpec) ([]entity.StockMovement, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	movements := make([]entity.StockMovement, 0, len(specs))
	for _, spec := range specs {
		m, err := l.applyOne(ctx, spec)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	if err := l.repo.CreateMovements(ctx, movements); err != nil {
		return nil, fmt.Errorf("create movements: %w", err)
	}

	return movements, nil
}

func (l *Ledger) applyOne(ctx context.Context, spec MovementSpec) (entity.StockMovement, error) {
	var zero entity.StockMovement

	if err := l.validateSpec(spec); err != nil {
		return zero, err
	}

	item, err := l.repo.GetItemForUpdate(ctx, spec.ProductID, spec.WarehouseID)
	if err != nil {
		return zero, fmt.Errorf("lock item: %w", err)
	}

	before := item.Quantity
	delta := signedDelta(spec.Kind, spec.Quantity)
	after := before + delta

	if delta.IsNegative() && after.IsNegative() {
		if !l.cfg.AllowNegativeStock {
			return zero, apperror.NewInsufficientStock(
				spec.ProductID.String(),
				delta.Abs().String(),
				before.String(),
			)
		}
		// Oversell permitted by configuration; leave a warning trace.
		if err := l.audit.Record(ctx, audit.Record{
			EntityType: "inventory_item",
			EntityID:   spec.ProductID,
			Action:     audit.ActionWarning,
			Changes: map[string]any{
				"warehouse_id": spec.WarehouseID.String(),
				"quantity":     audit.Change(before.String(), after.String()),
				"reference":    spec.Reference,
			},
		}); err != nil {
			return zero, fmt.Errorf("audit oversell: %w", err)
		}
		logger.Warn(ctx, "negative stock permitted",
			"product_id", spec.ProductID,
			"warehouse_id", spec.WarehouseID,
			"after", after.String())
	}

	unitCost := spec.UnitCost
	if delta.IsPositive() {
		// Receipt at a known cost re-averages the on-hand cost. Receipts
		// without a cost (transfers in) keep the current average.
		if unitCost.IsPositive() {
			item.WeightedAvgCost = weightedAvg(item.WeightedAvgCost, before, unitCost, spec.Quantity)
		} else {
			unitCost = item.WeightedAvgCost
		}
	} else if unitCost.IsZero() {
		// Issues capture the average cost at issue time; COGS and return
		// postings read this persisted value, never the current price.
		unitCost = item.WeightedAvgCost
	}

	now := time.Now().UTC()
	item.Quantity = after
	item.LastMovementAt = now
	item.UpdatedAt = now
	if err := l.repo.UpdateItem(ctx, item); err != nil {
		return zero, fmt.Errorf("update item: %w", err)
	}

	return entity.StockMovement{
		LineID:         id.New(),
		ProductID:      spec.ProductID,
		WarehouseID:    spec.WarehouseID,
		Kind:           spec.Kind,
		Quantity:       spec.Quantity,
		QuantityBefore: before,
		QuantityAfter:  after,
		UnitCost:       unitCost,
		Document:       spec.Document,
		Reference:      spec.Reference,
		Period:         spec.Period,
		CreatedAt:      now,
		CreatedBy:      spec.CreatedBy,
	}, nil
}

func (l *Ledger) validateSpec(spec MovementSpec) error {
	if id.IsNil(spec.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("reference", spec.Reference)
	}
	if id.IsNil(spec.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("reference", spec.Reference)
	}
	if spec.Reference == "" {
		return apperror.NewValidation("movement reference is required")
	}
	if spec.Kind == entity.MovementAdjustment {
		if spec.Quantity.IsZero() {
			return apperror.NewValidation("adjustment quantity must be non-zero").
				WithDetail("reference", spec.Reference)
		}
	} else if !spec.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("reference", spec.Reference).
			WithDetail("quantity", spec.Quantity.String())
	}
	if spec.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").
			WithDetail("reference", spec.Reference)
	}
	return nil
}

// ReverseDocument writes compensating inverse movements for everything the
// document recorded. The originals are kept; replay over the full history
// still reproduces the balances. Inverse receipts carry the original unit
// cost so the average cost unwinds symmetrically.
func (l *Ledger) ReverseDocument(ctx context.Context, docKind string, docID id.ID, createdBy string) ([]entity.StockMovement, error) {
	originals, err := l.repo.GetMovementsByDocument(ctx, docKind, docID)
	if err != nil {
		return nil, fmt.Errorf("load movements: %w", err)
	}
	if len(originals) == 0 {
		return nil, nil
	}

	specs := make([]MovementSpec, 0, len(originals))
	for _, m := range originals {
		inv := m.Inverse(fmt.Sprintf("REV-%s", m.Reference), createdBy)
		specs = append(specs, MovementSpec{
			ProductID:   inv.ProductID,
			WarehouseID: inv.WarehouseID,
			Kind:        inv.Kind,
			Quantity:    inv.Quantity,
			UnitCost:    inv.UnitCost,
			Document:    inv.Document,
			Reference:   inv.Reference,
			Period:      inv.Period,
			CreatedBy:   createdBy,
		})
	}

	return l.Apply(ctx, specs)
}

// StockOnHand returns the current balance for (product, warehouse).
func (l *Ledger) StockOnHand(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error) {
	return l.repo.GetItem(ctx, productID, warehouseID)
}

// Availability returns total quantity across warehouses.
func (l *Ledger) Availability(ctx context.Context, productID id.ID) (types.Quantity, error) {
	items, err := l.repo.ListItems(ctx, nil, true)
	if err != nil {
		return 0, fmt.Errorf("list items: %w", err)
	}

	var total types.Quantity
	for _, it := range items {
		if it.ProductID == productID {
			total += it.Quantity
		}
	}
	return total, nil
}

// WarehouseStock returns all non-zero balances for a warehouse.
func (l *Ledger) WarehouseStock(ctx context.Context, warehouseID id.ID) ([]entity.InventoryItem, error) {
	return l.repo.ListItems(ctx, &warehouseID, true)
}

// History returns movement history for a product.
func (l *Ledger) History(ctx context.Context, productID id.ID, f MovementFilter) ([]entity.StockMovement, error) {
	return l.repo.MovementHistory(ctx, productID, f)
}

// TurnoverReport sums receipts and issues over a period.
func (l *Ledger) TurnoverReport(ctx context.Context, f TurnoverFilter) (Turnover, error) {
	return l.repo.Turnover(ctx, f)
}

// signedDelta converts a spec quantity into a balance delta.
func signedDelta(kind entity.MovementKind, qty types.Quantity) types.Quantity {
	if kind == entity.MovementAdjustment || kind.Increases() {
		return qty
	}
	return qty.Neg()
}
