package domaintest

import (
	"context"
	"sort"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/inventory"
)

type itemKey struct {
	product   id.ID
	warehouse id.ID
}

// InventoryRepo implements inventory.Repository over maps. Missing item rows
// read as zero, matching the SQL upsert behaviour.
type InventoryRepo struct {
	items     map[itemKey]entity.InventoryItem
	Movements []entity.StockMovement
}

// NewInventoryRepo creates an empty inventory store.
func NewInventoryRepo() *InventoryRepo {
	return &InventoryRepo{items: make(map[itemKey]entity.InventoryItem)}
}

func (r *InventoryRepo) GetItem(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error) {
	item, ok := r.items[itemKey{productID, warehouseID}]
	if !ok {
		return entity.InventoryItem{
			ProductID:       productID,
			WarehouseID:     warehouseID,
			WeightedAvgCost: types.ZeroMoney(),
		}, nil
	}
	return item, nil
}

func (r *InventoryRepo) GetItemForUpdate(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error) {
	item, _ := r.GetItem(ctx, productID, warehouseID)
	r.items[itemKey{productID, warehouseID}] = item
	return item, nil
}

func (r *InventoryRepo) UpdateItem(ctx context.Context, item entity.InventoryItem) error {
	r.items[itemKey{item.ProductID, item.WarehouseID}] = item
	return nil
}

func (r *InventoryRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.Movements = append(r.Movements, movements...)
	return nil
}

func (r *InventoryRepo) GetMovementsByDocument(ctx context.Context, docKind string, docID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.Movements {
		if m.Document.Kind == docKind && m.Document.ID == docID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *InventoryRepo) MovementHistory(ctx context.Context, productID id.ID, f inventory.MovementFilter) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.Movements {
		if m.ProductID != productID {
			continue
		}
		if f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.Kind != nil && m.Kind != *f.Kind {
			continue
		}
		if f.FromDate != nil && m.Period.Before(*f.FromDate) {
			continue
		}
		if f.ToDate != nil && m.Period.After(*f.ToDate) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *InventoryRepo) ListItems(ctx context.Context, warehouseID *id.ID, excludeZero bool) ([]entity.InventoryItem, error) {
	var out []entity.InventoryItem
	for _, item := range r.items {
		if warehouseID != nil && item.WarehouseID != *warehouseID {
			continue
		}
		if excludeZero && item.Quantity.IsZero() {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].WarehouseID.String() < out[j].WarehouseID.String()
	})
	return out, nil
}

func (r *InventoryRepo) Turnover(ctx context.Context, f inventory.TurnoverFilter) (inventory.Turnover, error) {
	var t inventory.Turnover
	if f.WarehouseID != nil {
		t.WarehouseID = *f.WarehouseID
	}
	if f.ProductID != nil {
		t.ProductID = *f.ProductID
	}

	for _, m := range r.Movements {
		if f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.ProductID != nil && m.ProductID != *f.ProductID {
			continue
		}
		signed := m.SignedQuantity()
		switch {
		case m.Period.Before(f.FromDate):
			t.OpeningBalance += signed
		case !m.Period.After(f.ToDate):
			if signed.IsNegative() {
				t.Issue += signed.Neg()
			} else {
				t.Receipt += signed
			}
		}
	}

	t.ClosingBalance = t.OpeningBalance + t.Receipt - t.Issue
	return t, nil
}

// LastMovement returns the most recently appended movement, for assertions.
func (r *InventoryRepo) LastMovement() entity.StockMovement {
	if len(r.Movements) == 0 {
		return entity.StockMovement{}
	}
	return r.Movements[len(r.Movements)-1]
}

var _ inventory.Repository = (*InventoryRepo)(nil)
