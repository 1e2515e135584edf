package sale_invoice_test

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
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/sale_invoice"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/partners"
)

func stock(t *testing.T, h *domaintest.Harness, product, warehouse id.ID, qty int64, cost string) {
	t.Helper()
	_, err := h.Ledger.Apply(context.Background(), []inventory.MovementSpec{{
		ProductID:   product,
		WarehouseID: warehouse,
		Kind:        entity.MovementIn,
		Quantity:    types.NewQuantityFromInt64(qty),
		UnitCost:    types.MustMoney(cost),
		Document:    entity.DocumentRef{Kind: "purchase_invoice", ID: id.New(), Number: "SEED"},
		Reference:   "SEED/1",
		Period:      time.Now().UTC(),
		CreatedBy:   "tester",
	}})
	require.NoError(t, err)
}

func codeTotals(t *testing.T, h *domaintest.Harness, number int64) map[string][2]types.Money {
	t.Helper()
	ctx := context.Background()

	entry, err := h.Journal.GetByNumber(ctx, number)
	require.NoError(t, err)

	totals := map[string][2]types.Money{}
	for _, l := range entry.Lines {
		acc, err := h.Accounts.GetByID(ctx, l.AccountID)
		require.NoError(t, err)
		cur, ok := totals[acc.Code]
		if !ok {
			cur = [2]types.Money{types.ZeroMoney(), types.ZeroMoney()}
		}
		totals[acc.Code] = [2]types.Money{cur[0].Add(l.Debit), cur[1].Add(l.Credit)}
	}
	return totals
}

func TestConfirm_PostsRevenueAndCOGS(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-300", "Atlas Publishing House", partners.KindCustomer)
	product, warehouse := id.New(), id.New()
	stock(t, h, product, warehouse, 20, "2.00")

	inv := sale_invoice.New(cus.ID, warehouse, documents.TermsCredit)
	inv.AddItem(product, types.NewQuantityFromInt64(10), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, inv))

	res, err := h.SaleInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, res.Movements, 1)

	// cost captured at the weighted average, not the sale price
	assert.True(t, res.Movements[0].UnitCost.Equal(types.MustMoney("2.00")))

	totals := codeTotals(t, h, res.EntryNumber)
	assert.True(t, totals["1200.CUS-300"][0].Equal(types.MustMoney("50.00")))
	assert.True(t, totals["4100"][1].Equal(types.MustMoney("50.00")))
	assert.True(t, totals["5100"][0].Equal(types.MustMoney("20.00")))
	assert.True(t, totals["1300"][1].Equal(types.MustMoney("20.00")))

	item, err := h.Ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(10), item.Quantity)

	bal, err := h.Partners.Balance(ctx, cus.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.MustMoney("50.00")))
}

func TestConfirm_CashTermsCollectsImmediately(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-301", "Harbor Print Co", partners.KindCustomer)
	product, warehouse := id.New(), id.New()
	stock(t, h, product, warehouse, 5, "1.00")

	inv := sale_invoice.New(cus.ID, warehouse, documents.TermsCash)
	inv.AddItem(product, types.NewQuantityFromInt64(5), types.MustMoney("3.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, inv))

	res, err := h.SaleInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	totals := codeTotals(t, h, res.EntryNumber)
	assert.True(t, totals["1010"][0].Equal(types.MustMoney("15.00")))

	inv, err = h.SaleInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.PaymentPaid, inv.PaymentStatus)

	bal, err := h.Partners.Balance(ctx, cus.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestConfirm_InsufficientStockFailsWhole(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-302", "Quarto Books", partners.KindCustomer)
	product, warehouse := id.New(), id.New()
	stock(t, h, product, warehouse, 3, "2.00")

	inv := sale_invoice.New(cus.ID, warehouse, documents.TermsCredit)
	inv.AddItem(product, types.NewQuantityFromInt64(10), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, inv))

	_, err := h.SaleInvoices.Confirm(ctx, inv.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	// the failed confirmation left nothing behind
	inv, err = h.SaleInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, inv.IsConfirmed())

	bal, err := h.Partners.Balance(ctx, cus.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestReverse_RestoresStockAndBalance(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-303", "Folio Press", partners.KindCustomer)
	product, warehouse := id.New(), id.New()
	stock(t, h, product, warehouse, 20, "2.00")

	inv := sale_invoice.New(cus.ID, warehouse, documents.TermsCredit)
	inv.AddItem(product, types.NewQuantityFromInt64(10), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, inv))
	_, err := h.SaleInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	_, err = h.SaleInvoices.Reverse(ctx, inv.ID, "shipment refused")
	require.NoError(t, err)

	item, err := h.Ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(20), item.Quantity)

	bal, err := h.Partners.Balance(ctx, cus.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "got %s", bal)
}
