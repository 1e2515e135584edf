package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/journal"
)

func TestRecomputePaymentStatus(t *testing.T) {
	total := types.MustMoney("100.00")

	assert.Equal(t, PaymentUnpaid, RecomputePaymentStatus(total, types.ZeroMoney()))
	assert.Equal(t, PaymentPartial, RecomputePaymentStatus(total, types.MustMoney("40.00")))
	assert.Equal(t, PaymentPaid, RecomputePaymentStatus(total, types.MustMoney("100.00")))

	// within one cent counts as paid
	assert.Equal(t, PaymentPaid, RecomputePaymentStatus(total, types.MustMoney("99.99")))
	assert.Equal(t, PaymentPartial, RecomputePaymentStatus(total, types.MustMoney("99.98")))

	// overpaid stays paid
	assert.Equal(t, PaymentPaid, RecomputePaymentStatus(total, types.MustMoney("100.50")))
}

func TestNewItem_Totals(t *testing.T) {
	it := NewItem(1, id.New(), types.NewQuantityFromInt64Scaled(2500), // 2.5
		types.MustMoney("4.80"), types.MustMoney("1.00"), types.MustMoney("0.60"))

	// 2.5 * 4.80 = 12.00; - 1.00 + 0.60 = 11.60
	assert.True(t, it.Total.Equal(types.MustMoney("11.60")), "got %s", it.Total)
	require.NoError(t, it.Validate())
}

func TestItem_Validate(t *testing.T) {
	base := NewItem(1, id.New(), types.NewQuantityFromInt64(1), types.MustMoney("10.00"), types.ZeroMoney(), types.ZeroMoney())

	missing := base
	missing.ProductID = id.Nil()
	assert.Error(t, missing.Validate())

	zeroQty := base
	zeroQty.Quantity = 0
	assert.Error(t, zeroQty.Validate())

	negPrice := base
	negPrice.UnitPrice = types.MustMoney("-1.00")
	assert.Error(t, negPrice.Validate())
}

func TestInvoice_Validate(t *testing.T) {
	ctx := context.Background()

	inv := NewInvoice(id.New(), id.New(), TermsCredit)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(10), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, inv.Validate(ctx))
	assert.True(t, inv.Total.Equal(types.MustMoney("50.00")))

	empty := NewInvoice(id.New(), id.New(), TermsCash)
	assert.Error(t, empty.Validate(ctx))

	badTerms := NewInvoice(id.New(), id.New(), Terms("installments"))
	badTerms.AddItem(id.New(), types.NewQuantityFromInt64(1), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	assert.Error(t, badTerms.Validate(ctx))

	// header total drifting beyond tolerance from the line sum is a data error
	drifted := NewInvoice(id.New(), id.New(), TermsCredit)
	drifted.AddItem(id.New(), types.NewQuantityFromInt64(1), types.MustMoney("5.00"), types.ZeroMoney(), types.ZeroMoney())
	drifted.Total = types.MustMoney("6.00")
	err := drifted.Validate(ctx)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestInvoice_PaymentLifecycle(t *testing.T) {
	inv := NewInvoice(id.New(), id.New(), TermsCredit)
	inv.AddItem(id.New(), types.NewQuantityFromInt64(10), types.MustMoney("10.00"), types.ZeroMoney(), types.ZeroMoney())

	assert.True(t, inv.Outstanding().Equal(types.MustMoney("100.00")))

	inv.ApplyPayment(types.MustMoney("30.00"))
	assert.Equal(t, PaymentPartial, inv.PaymentStatus)
	assert.True(t, inv.Outstanding().Equal(types.MustMoney("70.00")))

	inv.ApplyPayment(types.MustMoney("70.00"))
	assert.Equal(t, PaymentPaid, inv.PaymentStatus)
	assert.True(t, inv.Outstanding().IsZero())

	inv.RestorePayment(types.MustMoney("70.00"))
	assert.Equal(t, PaymentPartial, inv.PaymentStatus)

	// restoring more than was paid clamps at zero
	inv.RestorePayment(types.MustMoney("99.00"))
	assert.True(t, inv.PaidAmount.IsZero())
	assert.Equal(t, PaymentUnpaid, inv.PaymentStatus)
}

func TestInvoice_SettlementCode(t *testing.T) {
	inv := NewInvoice(id.New(), id.New(), TermsCash)
	inv.BindPosting(PostingRefs{Accounts: testAccounts()})
	assert.Equal(t, "1010", inv.SettlementCode())

	inv.SettlementAccountCode = "1020"
	assert.Equal(t, "1020", inv.SettlementCode())
}

func TestBalanceWithRounding(t *testing.T) {
	balanced := []journal.LineInput{
		{AccountCode: "1300", Debit: types.MustMoney("10.00")},
		{AccountCode: "2100", Credit: types.MustMoney("10.00")},
	}
	out, err := BalanceWithRounding(balanced, "5900")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	// one-cent debit residual gets credited to the rounding account
	short := []journal.LineInput{
		{AccountCode: "1300", Debit: types.MustMoney("10.01")},
		{AccountCode: "2100", Credit: types.MustMoney("10.00")},
	}
	out, err = BalanceWithRounding(short, "5900")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "5900", out[2].AccountCode)
	assert.True(t, out[2].Credit.Equal(types.MustMoney("0.01")))

	// credit-side residual lands on the debit side
	over := []journal.LineInput{
		{AccountCode: "1300", Debit: types.MustMoney("10.00")},
		{AccountCode: "2100", Credit: types.MustMoney("10.01")},
	}
	out, err = BalanceWithRounding(over, "5900")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[2].Debit.Equal(types.MustMoney("0.01")))

	// a real imbalance is never absorbed
	broken := []journal.LineInput{
		{AccountCode: "1300", Debit: types.MustMoney("10.00")},
		{AccountCode: "2100", Credit: types.MustMoney("12.00")},
	}
	_, err = BalanceWithRounding(broken, "5900")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func testAccounts() config.Accounts {
	return config.Accounts{
		DefaultCash: "1010",
		DefaultBank: "1020",
	}
}
