package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/documents/sale_invoice"
	"pressledger/internal/domain/documents/sale_return"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/payments"
	"pressledger/internal/domain/reports"
	"pressledger/internal/service"
)

// TestFullAccountingCycle runs a month of business through the facade:
// purchase, sale with cost of goods sold, a customer return, settlement of
// both sides, payroll with an advance deduction, warehouse moves, and the
// period close over a balanced trial balance.
func TestFullAccountingCycle(t *testing.T) {
	h := domaintest.NewHarness()
	core := h.Core
	ctx := context.Background()
	now := time.Now().UTC()

	sup := h.RegisterPartner(ctx, "SUP-001", "Nordic Paper Mills", partners.KindSupplier)
	cus := h.RegisterPartner(ctx, "CUS-001", "Atlas Publishing House", partners.KindCustomer)
	product := id.New()
	wh1, wh2 := id.New(), id.New()

	// 100 reams in at 4.80 on credit
	purchase := purchase_invoice.New(sup.ID, wh1, documents.TermsCredit)
	purchase.AddItem(product, types.NewQuantityFromInt64(100), types.MustMoney("4.80"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, purchase))
	_, err := core.ConfirmDocument(ctx, documents.KindPurchaseInvoice, purchase.ID)
	require.NoError(t, err)

	// 50 sold at 9.00 on credit; cost of goods sold at the 4.80 average
	sale := sale_invoice.New(cus.ID, wh1, documents.TermsCredit)
	sale.AddItem(product, types.NewQuantityFromInt64(50), types.MustMoney("9.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, sale))
	_, err = core.ConfirmDocument(ctx, documents.KindSaleInvoice, sale.ID)
	require.NoError(t, err)

	cogs, err := core.AccountBalance(ctx, "5100", now)
	require.NoError(t, err)
	assert.True(t, cogs.Net.Equal(types.MustMoney("240.00")), "got %s", cogs.Net)

	// 10 come back at the original cost; revenue backs out via the allowance
	ret := sale_return.New(cus.ID, wh1, documents.TermsCredit)
	ret.AddCostedItem(product, types.NewQuantityFromInt64(10), types.MustMoney("9.00"),
		types.ZeroMoney(), types.ZeroMoney(), types.MustMoney("4.80"))
	require.NoError(t, h.SaleReturns.Create(ctx, ret))
	_, err = core.ConfirmDocument(ctx, documents.KindSaleReturn, ret.ID)
	require.NoError(t, err)

	// the customer settles the open 360.00 by bank transfer
	_, _, err = core.RecordPayment(ctx, payments.RecordInput{
		InvoiceKind: documents.KindSaleInvoice,
		InvoiceID:   sale.ID,
		Amount:      types.MustMoney("360.00"),
		Date:        now,
		Method:      payments.MethodBankTransfer,
		CreatedBy:   "clerk",
	})
	require.NoError(t, err)

	cusBal, err := h.Partners.Balance(ctx, cus.ID)
	require.NoError(t, err)
	assert.True(t, cusBal.IsZero(), "got %s", cusBal)

	// we pay the supplier in cash
	_, _, err = core.RecordPayment(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   purchase.ID,
		Amount:      types.MustMoney("480.00"),
		Date:        now,
		Method:      payments.MethodCash,
		CreatedBy:   "clerk",
	})
	require.NoError(t, err)

	supBal, err := h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, supBal.IsZero(), "got %s", supBal)

	// payroll with one granted advance deducting its first installment
	employee := id.New()
	adv := payments.NewAdvance(employee, "R. Halvorsen", types.MustMoney("300.00"), 3, now.AddDate(0, -1, 0))
	require.NoError(t, core.GrantAdvance(ctx, adv))

	run := payroll.NewRun(now)
	run.AddLine(employee, "R. Halvorsen",
		types.MustMoney("3000.00"), types.ZeroMoney(),
		types.MustMoney("480.00"), types.MustMoney("120.00"))
	require.NoError(t, h.Payroll.PopulateAdvances(ctx, run))
	require.NoError(t, h.Payroll.Create(ctx, run))
	_, err = core.ConfirmDocument(ctx, documents.KindPayrollRun, run.ID)
	require.NoError(t, err)

	receivable, err := core.AccountBalance(ctx, "1400", now)
	require.NoError(t, err)
	assert.True(t, receivable.Net.Equal(types.MustMoney("200.00")), "got %s", receivable.Net)

	// move 20 reams to the second warehouse and write off 2 damaged ones
	moved, err := core.TransferStock(ctx, service.TransferStockInput{
		ProductID:       product,
		FromWarehouseID: wh1,
		ToWarehouseID:   wh2,
		Quantity:        types.NewQuantityFromInt64(20),
		Reference:       "TR-001",
	})
	require.NoError(t, err)
	require.Len(t, moved, 2)
	assert.True(t, moved[1].UnitCost.Equal(types.MustMoney("4.80")))

	_, err = core.AdjustStock(ctx, service.AdjustStockInput{
		ProductID:   product,
		WarehouseID: wh1,
		Delta:       types.NewQuantityFromInt64(-2),
		Reference:   "ADJ-001",
		Reason:      "water damage",
	})
	require.NoError(t, err)

	// 100 - 50 + 10 - 20 - 2 in wh1, 20 in wh2, all still at 4.80
	onHand, err := core.StockOnHand(ctx, product, wh1)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt64(38), onHand.Quantity)

	sb, err := core.StockBalance(ctx, reports.StockBalanceFilter{ProductID: &product})
	require.NoError(t, err)
	require.Len(t, sb.Rows, 2)
	assert.True(t, sb.TotalValue.Equal(types.MustMoney("278.40")), "got %s", sb.TotalValue)

	// every posting kept the books balanced
	tb, err := core.TrialBalance(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, tb.Balanced, "debits %s credits %s", tb.TotalDebit, tb.TotalCredit)
	assert.True(t, tb.TotalDebit.IsPositive())

	// statement replays the customer's month down to zero
	lines, err := core.PartnerStatement(ctx, cus.ID, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, lines[0].Running.Equal(types.MustMoney("450.00")))
	assert.True(t, lines[2].Running.IsZero())

	for _, p := range []id.ID{sup.ID, cus.ID} {
		rec, err := core.ReconcilePartner(ctx, p)
		require.NoError(t, err)
		assert.True(t, rec.OK, "partner %s discrepancy %s", rec.Code, rec.Discrepancy)
	}

	// the month closes clean, and the closed period takes no more postings
	require.NoError(t, core.ClosePeriod(ctx, "TEST"))

	late := sale_invoice.New(cus.ID, wh1, documents.TermsCredit)
	late.AddItem(product, types.NewQuantityFromInt64(1), types.MustMoney("9.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, late))
	_, err = core.ConfirmDocument(ctx, documents.KindSaleInvoice, late.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed))

	require.NoError(t, core.ReopenPeriod(ctx, "TEST"))
	_, err = core.ConfirmDocument(ctx, documents.KindSaleInvoice, late.ID)
	require.NoError(t, err)
}

func TestConfirmDocument_UnknownKind(t *testing.T) {
	h := domaintest.NewHarness()

	_, err := h.Core.ConfirmDocument(context.Background(), "credit_memo", id.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestTransferStock_Validation(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	wh := id.New()

	_, err := h.Core.TransferStock(ctx, service.TransferStockInput{
		ProductID:       id.New(),
		FromWarehouseID: wh,
		ToWarehouseID:   wh,
		Quantity:        types.NewQuantityFromInt64(1),
		Reference:       "TR-002",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = h.Core.TransferStock(ctx, service.TransferStockInput{
		ProductID:       id.New(),
		FromWarehouseID: id.New(),
		ToWarehouseID:   id.New(),
		Quantity:        types.NewQuantityFromInt64(1),
	})
	require.Error(t, err)
}

func TestAdjustStock_RequiresReason(t *testing.T) {
	h := domaintest.NewHarness()

	_, err := h.Core.AdjustStock(context.Background(), service.AdjustStockInput{
		ProductID:   id.New(),
		WarehouseID: id.New(),
		Delta:       types.NewQuantityFromInt64(1),
		Reference:   "ADJ-002",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
