package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/payments"
)

func TestAdvance_InstallmentSchedule(t *testing.T) {
	adv := payments.NewAdvance(id.New(), "R. Halvorsen", types.MustMoney("1000.00"), 3, time.Now().UTC())

	// 1000 / 3 rounds half-even to 333.33
	assert.True(t, adv.InstallmentAmount.Equal(types.MustMoney("333.33")))
	assert.True(t, adv.DueAmount().Equal(types.MustMoney("333.33")))

	// the final installment absorbs the rounding residual
	adv.PaidInstallments = 2
	adv.RemainingAmount = types.MustMoney("333.34")
	assert.True(t, adv.DueAmount().Equal(types.MustMoney("333.34")))
}

func TestAdvance_DeductedInMonth(t *testing.T) {
	adv := payments.NewAdvance(id.New(), "R. Halvorsen", types.MustMoney("300.00"), 3, time.Now().UTC())
	assert.False(t, adv.DeductedInMonth(time.Now().UTC()))

	month := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	adv.LastDeductionMonth = &month
	assert.True(t, adv.DeductedInMonth(time.Date(2026, time.March, 19, 0, 0, 0, 0, time.UTC)))
	assert.False(t, adv.DeductedInMonth(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGrant_PostsAndIsIdempotent(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	adv := payments.NewAdvance(id.New(), "R. Halvorsen", types.MustMoney("300.00"), 3, time.Now().UTC())
	require.NoError(t, h.Advances.Grant(ctx, adv))
	require.NotNil(t, adv.EntryNumber)

	// cash went out, receivable went up
	receivable, err := h.Accounts.Resolve(ctx, "1400")
	require.NoError(t, err)
	bal, err := h.Accounts.GetBalance(ctx, receivable.ID)
	require.NoError(t, err)
	assert.True(t, bal.DebitTotal.Equal(types.MustMoney("300.00")))

	// the replay posts nothing and creates no second advance
	require.NoError(t, h.Advances.Grant(ctx, adv))
	bal, err = h.Accounts.GetBalance(ctx, receivable.ID)
	require.NoError(t, err)
	assert.True(t, bal.DebitTotal.Equal(types.MustMoney("300.00")))

	created := 0
	for _, rec := range h.Store.Audit.ByAction(audit.ActionCreate) {
		if rec.EntityType == "payroll_advance" {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestNextDeduction_FIFOAndMonthGuard(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	employee := id.New()
	month := time.Now().UTC()

	older := payments.NewAdvance(employee, "R. Halvorsen", types.MustMoney("300.00"), 3, time.Now().UTC().AddDate(0, -2, 0))
	newer := payments.NewAdvance(employee, "R. Halvorsen", types.MustMoney("600.00"), 6, time.Now().UTC().AddDate(0, -1, 0))
	require.NoError(t, h.Advances.Grant(ctx, older))
	require.NoError(t, h.Advances.Grant(ctx, newer))

	// oldest open advance comes first
	d, err := h.Advances.NextDeduction(ctx, employee, month)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, older.ID, d.AdvanceID)
	assert.True(t, d.Amount.Equal(types.MustMoney("100.00")))

	require.NoError(t, h.Advances.Deduct(ctx, d.AdvanceID, month, d.Amount))

	// the older advance is exhausted for this month; the newer one steps in
	d, err = h.Advances.NextDeduction(ctx, employee, month)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, newer.ID, d.AdvanceID)
	assert.True(t, d.Amount.Equal(types.MustMoney("100.00")))

	// no open advances means no deduction, not an error
	d, err = h.Advances.NextDeduction(ctx, id.New(), month)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestDeduct_GuardsAndCompletion(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	employee := id.New()
	month := time.Now().UTC()

	adv := payments.NewAdvance(employee, "R. Halvorsen", types.MustMoney("200.00"), 2, time.Now().UTC())
	require.NoError(t, h.Advances.Grant(ctx, adv))

	// a stale amount is a concurrency failure, not a partial deduction
	err := h.Advances.Deduct(ctx, adv.ID, month, types.MustMoney("55.00"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))

	require.NoError(t, h.Advances.Deduct(ctx, adv.ID, month, types.MustMoney("100.00")))

	// one installment per month
	err = h.Advances.Deduct(ctx, adv.ID, month, types.MustMoney("100.00"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))

	nextMonth := month.AddDate(0, 1, 0)
	require.NoError(t, h.Advances.Deduct(ctx, adv.ID, nextMonth, types.MustMoney("100.00")))

	got, err := h.Advances.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.AdvanceCompleted, got.Status)
	assert.True(t, got.RemainingAmount.IsZero())

	// a completed advance takes no further deductions
	err = h.Advances.Deduct(ctx, adv.ID, nextMonth.AddDate(0, 1, 0), types.MustMoney("100.00"))
	require.Error(t, err)
}

func TestRestore_ReopensAdvance(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	month := time.Now().UTC()

	adv := payments.NewAdvance(id.New(), "R. Halvorsen", types.MustMoney("100.00"), 1, time.Now().UTC())
	require.NoError(t, h.Advances.Grant(ctx, adv))
	require.NoError(t, h.Advances.Deduct(ctx, adv.ID, month, types.MustMoney("100.00")))

	got, err := h.Advances.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	require.Equal(t, payments.AdvanceCompleted, got.Status)

	require.NoError(t, h.Advances.Restore(ctx, adv.ID, types.MustMoney("100.00")))

	got, err = h.Advances.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.AdvanceOpen, got.Status)
	assert.True(t, got.RemainingAmount.Equal(types.MustMoney("100.00")))
	assert.Nil(t, got.LastDeductionMonth)

	// nothing left to restore
	err = h.Advances.Restore(ctx, adv.ID, types.MustMoney("100.00"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}
