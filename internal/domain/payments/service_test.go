package payments_test

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
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/documents/sale_invoice"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/payments"
)

// confirmedPurchase books a 50.00 credit purchase invoice so the supplier is
// owed the full amount.
func confirmedPurchase(t *testing.T, h *domaintest.Harness) (*purchase_invoice.PurchaseInvoice, *partners.Partner) {
	t.Helper()
	ctx := context.Background()

	sup := h.RegisterPartner(ctx, "SUP-100", "Nordic Paper Mills", partners.KindSupplier)
	inv := purchase_invoice.New(sup.ID, id.New(), documents.TermsCredit)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(10), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, inv))

	_, err := h.PurchaseInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	return inv, sup
}

// confirmedSale stocks the warehouse and books a 50.00 credit sale invoice.
func confirmedSale(t *testing.T, h *domaintest.Harness) (*sale_invoice.SaleInvoice, *partners.Partner) {
	t.Helper()
	ctx := context.Background()

	cus := h.RegisterPartner(ctx, "CUS-100", "Atlas Publishing House", partners.KindCustomer)
	product, warehouse := id.New(), id.New()

	_, err := h.Ledger.Apply(ctx, []inventory.MovementSpec{{
		ProductID:   product,
		WarehouseID: warehouse,
		Kind:        entity.MovementIn,
		Quantity:    types.NewQuantityFromInt64(100),
		UnitCost:    types.MustMoney("2.00"),
		Document:    entity.DocumentRef{Kind: "purchase_invoice", ID: id.New(), Number: "SEED"},
		Reference:   "SEED/1",
		Period:      time.Now().UTC(),
		CreatedBy:   "tester",
	}})
	require.NoError(t, err)

	inv := sale_invoice.New(cus.ID, warehouse, documents.TermsCredit)
	inv.AddItem(product, types.NewQuantityFromInt64(10), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.SaleInvoices.Create(ctx, inv))

	_, err = h.SaleInvoices.Confirm(ctx, inv.ID)
	require.NoError(t, err)

	inv, err = h.SaleInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	return inv, cus
}

func TestRecord_SupplierPayment(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, sup := confirmedPurchase(t, h)

	bal, err := h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(types.MustMoney("50.00")), "got %s", bal)

	p, replayed, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("20.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCash,
		CreatedBy:   "tester",
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, p.IsPosted())
	require.NotNil(t, p.EntryNumber)
	assert.Equal(t, "1010", p.AccountCode)

	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.PaidAmount.Equal(types.MustMoney("20.00")))
	assert.Equal(t, documents.PaymentPartial, inv.PaymentStatus)

	// the payment debit shrank what we owe the supplier
	bal, err = h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.MustMoney("30.00")), "got %s", bal)
}

func TestRecord_CustomerPaymentSettlesInvoice(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, cus := confirmedSale(t, h)

	p, _, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindSaleInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("50.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodBankTransfer,
		CreatedBy:   "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, "1020", p.AccountCode)

	inv, err = h.SaleInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.PaymentPaid, inv.PaymentStatus)
	assert.True(t, inv.Outstanding().IsZero())

	bal, err := h.Partners.Balance(ctx, cus.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "got %s", bal)
}

func TestRecord_Overpayment(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, _ := confirmedPurchase(t, h)

	_, _, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("60.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeOverpayment))
}

func TestRecord_IdempotentOnPaymentID(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, _ := confirmedPurchase(t, h)
	paymentID := id.New()

	in := payments.RecordInput{
		PaymentID:   &paymentID,
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("20.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCash,
	}

	first, replayed, err := h.Payments.Record(ctx, in)
	require.NoError(t, err)
	require.False(t, replayed)

	again, replayed, err := h.Payments.Record(ctx, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.Number, again.Number)

	// the retry did not pay the invoice twice
	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.PaidAmount.Equal(types.MustMoney("20.00")))
}

func TestRecord_RejectsDraftInvoice(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	sup := h.RegisterPartner(ctx, "SUP-101", "Baltic Ink Supply", partners.KindSupplier)
	inv := purchase_invoice.New(sup.ID, id.New(), documents.TermsCredit)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(1), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.PurchaseInvoices.Create(ctx, inv))

	_, _, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("5.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestRecord_RejectsFutureDate(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, _ := confirmedPurchase(t, h)

	_, _, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("10.00"),
		Date:        time.Now().UTC().AddDate(0, 0, 2),
		Method:      payments.MethodCash,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestRecord_MethodAccountMismatch(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, _ := confirmedPurchase(t, h)

	// cash through the bank account is rejected
	_, _, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("10.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCash,
		AccountCode: "1020",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	// a check through the cash account is rejected too
	_, _, err = h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("10.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCheck,
		AccountCode: "1010",
	})
	require.Error(t, err)
}

func TestVoid_RestoresInvoice(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	inv, sup := confirmedPurchase(t, h)

	p, _, err := h.Payments.Record(ctx, payments.RecordInput{
		InvoiceKind: documents.KindPurchaseInvoice,
		InvoiceID:   inv.ID,
		Amount:      types.MustMoney("50.00"),
		Date:        time.Now().UTC(),
		Method:      payments.MethodCash,
	})
	require.NoError(t, err)

	reversal, err := h.Payments.Void(ctx, p.ID, "wrong invoice")
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)

	inv, err = h.PurchaseInvoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.PaidAmount.IsZero())
	assert.Equal(t, documents.PaymentUnpaid, inv.PaymentStatus)

	bal, err := h.Partners.Balance(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(types.MustMoney("50.00")), "got %s", bal)

	voided, err := h.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusVoided, voided.Status)

	_, err = h.Payments.Void(ctx, p.ID, "again")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestPayment_Validate(t *testing.T) {
	ctx := context.Background()

	valid := payments.New(documents.KindSaleInvoice, id.New(), types.MustMoney("10.00"), time.Now().UTC(), payments.MethodCash)
	require.NoError(t, valid.Validate(ctx))

	noInvoice := payments.New("", id.Nil(), types.MustMoney("10.00"), time.Now().UTC(), payments.MethodCash)
	assert.Error(t, noInvoice.Validate(ctx))

	zero := payments.New(documents.KindSaleInvoice, id.New(), types.ZeroMoney(), time.Now().UTC(), payments.MethodCash)
	assert.Error(t, zero.Validate(ctx))

	badMethod := payments.New(documents.KindSaleInvoice, id.New(), types.MustMoney("10.00"), time.Now().UTC(), payments.Method("barter"))
	assert.Error(t, badMethod.Validate(ctx))
}
