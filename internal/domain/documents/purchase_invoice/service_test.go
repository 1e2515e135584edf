package purchase_invoice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/partners"
)

// entryTotals sums the posted entry's lines per account code.
func entryTotals(t *testing.T, h *domaintest.Harness, number int64) map[string][2]types.Money {
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

func TestConfirm_CreditTerms(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	sup := h.RegisterPartner(ctx, "SUP-200", "Nordic Paper Mills", partners.KindSupplier)
	product, warehouse := id.New(), id.New()

	inv := purchase_invoice.New(sup.ID, warehouse, documents.TermsCredit)
	inv.AddItem(product, types.NewQuantityFromInt64(10), types.MustMoney("4.80"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, inv))
	assert.NotEmpty(t, inv.Number)

	res, err := h.PurchaseInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, res.Movements, 1)

	// goods landed in stock at the invoice unit value
	item, err := h.Ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(10), item.Quantity)
	assert.True(t, item.WeightedAvgCost.Equal(types.MustMoney("4.80")))

	totals := entryTotals(t, h, res.EntryNumber)
	assert.True(t, totals["1300"][0].Equal(types.MustMoney("48.00")))
	assert.True(t, totals["2100.SUP-200"][1].Equal(types.MustMoney("48.00")))

	// we owe the supplier the full amount
	bal, err := h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.MustMoney("48.00")))

	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.IsConfirmed())
	assert.Equal(t, documents.PaymentUnpaid, inv.PaymentStatus)

	// confirming again replays the original entry and moves no more stock
	res2, err := h.PurchaseInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, res2.Replayed)
	assert.Equal(t, res.EntryNumber, res2.EntryNumber)

	item, err = h.Ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(10), item.Quantity)
}

func TestConfirm_CashTermsSettlesImmediately(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	sup := h.RegisterPartner(ctx, "SUP-201", "Baltic Ink Supply", partners.KindSupplier)
	inv := purchase_invoice.New(sup.ID, id.New(), documents.TermsCash)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(5), types.MustMoney("3.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, inv))

	res, err := h.PurchaseInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	totals := entryTotals(t, h, res.EntryNumber)
	assert.True(t, totals["1010"][1].Equal(types.MustMoney("15.00")))

	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.PaymentPaid, inv.PaymentStatus)
	assert.True(t, inv.Outstanding().IsZero())

	// cash settlement never touches the supplier ledger
	bal, err := h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestReverse_PutsEverythingBack(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	sup := h.RegisterPartner(ctx, "SUP-202", "Plate & Die Works", partners.KindSupplier)
	product, warehouse := id.New(), id.New()

	inv := purchase_invoice.New(sup.ID, warehouse, documents.TermsCredit)
	inv.AddItem(product, types.NewQuantityFromInt64(10), types.MustMoney("4.80"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, inv))
	_, err := h.PurchaseInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	rev, err := h.PurchaseInvoices.Reverse(ctx, inv.ID, "goods rejected")
	require.NoError(t, err)
	assert.NotZero(t, rev.ReversalEntryNumber)
	require.Len(t, rev.Movements, 1)

	item, err := h.Ledger.StockOnHand(ctx, product, warehouse)
	require.NoError(t, err)
	assert.True(t, item.Quantity.IsZero())

	bal, err := h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "got %s", bal)

	// reversed documents stay reversed
	_, err = h.PurchaseInvoices.Reverse(ctx, inv.ID, "again")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestCreate_RejectsCustomerPartner(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-200", "Atlas Publishing House", partners.KindCustomer)
	inv := purchase_invoice.New(cus.ID, id.New(), documents.TermsCredit)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(1), types.MustMoney("1.00"), types.ZeroMoney(), types.ZeroMoney())

	err := h.PurchaseInvoices.Create(ctx, inv)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestUpdate_ConfirmedRejected(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	sup := h.RegisterPartner(ctx, "SUP-203", "Foil & Varnish Co", partners.KindSupplier)
	inv := purchase_invoice.New(sup.ID, id.New(), documents.TermsCredit)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(2), types.MustMoney("7.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, inv))
	_, err := h.PurchaseInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	inv.Note = "late edit"
	err = h.PurchaseInvoices.Update(ctx, inv)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentPosted))
}
