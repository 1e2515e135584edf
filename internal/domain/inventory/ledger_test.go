package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/inventory"
)

func newLedger(allowNegative bool) (*inventory.Ledger, *domaintest.Store) {
	s := domaintest.NewStore()
	cfg := domaintest.TestConfig()
	cfg.AllowNegativeStock = allowNegative
	return inventory.NewLedger(s.Inventory, s.Audit, cfg), s
}

func spec(productID, warehouseID id.ID, kind entity.MovementKind, qty int64, cost string) inventory.MovementSpec {
	return inventory.MovementSpec{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Kind:        kind,
		Quantity:    types.NewQuantityFromInt64(qty),
		UnitCost:    types.MustMoney(cost),
		Document:    entity.DocumentRef{Kind: "purchase_invoice", ID: id.New(), Number: "PI-1"},
		Reference:   "MV-" + id.New().String()[:8],
		Period:      time.Now().UTC(),
		CreatedBy:   "tester",
	}
}

func TestApply_WeightedAverageReaverages(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()

	_, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementIn, 10, "4.00")})
	require.NoError(t, err)

	item, err := ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.True(t, item.WeightedAvgCost.Equal(types.MustMoney("4.00")))

	// 10@4.00 + 10@6.00 -> 20 on hand at 5.00
	_, err = ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementIn, 10, "6.00")})
	require.NoError(t, err)

	item, err = ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(20), item.Quantity)
	assert.True(t, item.WeightedAvgCost.Equal(types.MustMoney("5.00")), "got %s", item.WeightedAvgCost)
}

func TestApply_IssueCapturesAverageCost(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()

	_, err := ledger.Apply(ctx, []inventory.MovementSpec{
		spec(product, warehouse, entity.MovementIn, 10, "4.00"),
		spec(product, warehouse, entity.MovementIn, 10, "6.00"),
	})
	require.NoError(t, err)

	out, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementOut, 5, "0")})
	require.NoError(t, err)
	require.Len(t, out, 1)

	// the issue persists the average at issue time, not the last receipt price
	assert.True(t, out[0].UnitCost.Equal(types.MustMoney("5.00")), "got %s", out[0].UnitCost)
	assert.Equal(t, types.NewQuantityFromInt64(20), out[0].QuantityBefore)
	assert.Equal(t, types.NewQuantityFromInt64(15), out[0].QuantityAfter)

	// issues do not move the average
	item, err := ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.True(t, item.WeightedAvgCost.Equal(types.MustMoney("5.00")))
}

func TestApply_TransferInWithoutCostKeepsAverage(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()

	_, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementIn, 10, "4.00")})
	require.NoError(t, err)

	in, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementTransferIn, 5, "0")})
	require.NoError(t, err)
	assert.True(t, in[0].UnitCost.Equal(types.MustMoney("4.00")))

	item, err := ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.True(t, item.WeightedAvgCost.Equal(types.MustMoney("4.00")))
}

func TestApply_InsufficientStock(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()

	_, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementIn, 3, "4.00")})
	require.NoError(t, err)

	_, err = ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementOut, 5, "0")})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	// the failed issue left the balance untouched
	item, err := ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(3), item.Quantity)
}

func TestApply_NegativeStockPermittedWithWarning(t *testing.T) {
	ledger, s := newLedger(true)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()

	out, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementOut, 5, "0")})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(-5), out[0].QuantityAfter)

	assert.Len(t, s.Audit.ByAction(audit.ActionWarning), 1)
}

func TestApply_AdjustmentCarriesSign(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()

	_, err := ledger.Apply(ctx, []inventory.MovementSpec{spec(product, warehouse, entity.MovementIn, 10, "4.00")})
	require.NoError(t, err)

	down := spec(product, warehouse, entity.MovementAdjustment, 0, "0")
	down.Quantity = types.NewQuantityFromInt64(-3)
	_, err = ledger.Apply(ctx, []inventory.MovementSpec{down})
	require.NoError(t, err)

	item, err := ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(7), item.Quantity)

	zero := spec(product, warehouse, entity.MovementAdjustment, 0, "0")
	_, err = ledger.Apply(ctx, []inventory.MovementSpec{zero})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestApply_ValidatesSpec(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()

	missing := spec(id.New(), id.New(), entity.MovementIn, 5, "4.00")
	missing.Reference = ""
	_, err := ledger.Apply(ctx, []inventory.MovementSpec{missing})
	require.Error(t, err)

	negCost := spec(id.New(), id.New(), entity.MovementIn, 5, "-1.00")
	_, err = ledger.Apply(ctx, []inventory.MovementSpec{negCost})
	require.Error(t, err)

	zeroQty := spec(id.New(), id.New(), entity.MovementOut, 0, "0")
	_, err = ledger.Apply(ctx, []inventory.MovementSpec{zeroQty})
	require.Error(t, err)
}

func TestReverseDocument_RestoresStock(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product, warehouse := id.New(), id.New()
	doc := entity.DocumentRef{Kind: "purchase_invoice", ID: id.New(), Number: "PI-7"}

	in := spec(product, warehouse, entity.MovementIn, 10, "4.00")
	in.Document = doc
	_, err := ledger.Apply(ctx, []inventory.MovementSpec{in})
	require.NoError(t, err)

	reversed, err := ledger.ReverseDocument(ctx, doc.Kind, doc.ID, "tester")
	require.NoError(t, err)
	require.Len(t, reversed, 1)
	assert.Equal(t, entity.MovementOut, reversed[0].Kind)
	assert.True(t, reversed[0].UnitCost.Equal(types.MustMoney("4.00")))
	assert.Equal(t, "REV-"+in.Reference, reversed[0].Reference)

	item, err := ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.True(t, item.Quantity.IsZero())

	// nothing recorded, nothing to reverse
	none, err := ledger.ReverseDocument(ctx, "purchase_invoice", id.New(), "tester")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAvailabilityAndTurnover(t *testing.T) {
	ledger, _ := newLedger(false)
	ctx := context.Background()
	product := id.New()
	wh1, wh2 := id.New(), id.New()

	_, err := ledger.Apply(ctx, []inventory.MovementSpec{
		spec(product, wh1, entity.MovementIn, 10, "4.00"),
		spec(product, wh2, entity.MovementIn, 5, "4.00"),
		spec(product, wh1, entity.MovementOut, 2, "0"),
	})
	require.NoError(t, err)

	total, err := ledger.Availability(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(13), total)

	now := time.Now().UTC()
	turn, err := ledger.TurnoverReport(ctx, inventory.TurnoverFilter{
		ProductID: &product,
		FromDate:  now.AddDate(0, 0, -1),
		ToDate:    now.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(15), turn.Receipt)
	assert.Equal(t, types.NewQuantityFromInt64(2), turn.Issue)
	assert.Equal(t, types.NewQuantityFromInt64(13), turn.ClosingBalance)
}
