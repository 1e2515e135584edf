package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/payments"
)

func TestRun_MonthNormalization(t *testing.T) {
	run := payroll.NewRun(time.Date(2026, time.March, 19, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), run.Month)
}

func TestRun_LineArithmetic(t *testing.T) {
	run := payroll.NewRun(time.Now().UTC())
	run.AddLine(id.New(), "R. Halvorsen",
		types.MustMoney("3000.00"), types.MustMoney("250.00"),
		types.MustMoney("480.00"), types.MustMoney("120.00"))

	require.Len(t, run.Lines, 1)
	l := run.Lines[0]
	assert.True(t, l.Gross.Equal(types.MustMoney("3250.00")))
	assert.True(t, l.Net.Equal(types.MustMoney("2650.00")))

	run.SetAdvanceDeduction(1, id.New(), types.MustMoney("150.00"))
	l = run.Lines[0]
	assert.True(t, l.Net.Equal(types.MustMoney("2500.00")))
	assert.True(t, run.AdvanceTotal.Equal(types.MustMoney("150.00")))
	assert.True(t, run.NetTotal.Equal(types.MustMoney("2500.00")))
}

func TestRun_Validate(t *testing.T) {
	ctx := context.Background()

	empty := payroll.NewRun(time.Now().UTC())
	assert.Error(t, empty.Validate(ctx))

	ok := payroll.NewRun(time.Now().UTC())
	ok.AddLine(id.New(), "A", types.MustMoney("1000.00"), types.ZeroMoney(), types.MustMoney("100.00"), types.ZeroMoney())
	require.NoError(t, ok.Validate(ctx))

	// deductions exceeding gross drive net negative
	sunk := payroll.NewRun(time.Now().UTC())
	sunk.AddLine(id.New(), "B", types.MustMoney("1000.00"), types.ZeroMoney(), types.MustMoney("1100.00"), types.ZeroMoney())
	err := sunk.Validate(ctx)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	noEmployee := payroll.NewRun(time.Now().UTC())
	noEmployee.AddLine(id.Nil(), "C", types.MustMoney("1000.00"), types.ZeroMoney(), types.ZeroMoney(), types.ZeroMoney())
	assert.Error(t, noEmployee.Validate(ctx))
}

func TestConfirm_PostsAndDeductsAdvances(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	employee := id.New()

	adv := payments.NewAdvance(employee, "R. Halvorsen", types.MustMoney("300.00"), 3, time.Now().UTC().AddDate(0, -1, 0))
	require.NoError(t, h.Advances.Grant(ctx, adv))

	run := payroll.NewRun(time.Now().UTC())
	run.AddLine(employee, "R. Halvorsen",
		types.MustMoney("3000.00"), types.ZeroMoney(),
		types.MustMoney("480.00"), types.MustMoney("120.00"))
	require.NoError(t, h.Payroll.PopulateAdvances(ctx, run))

	l := run.Lines[0]
	require.NotNil(t, l.AdvanceID)
	assert.True(t, l.AdvanceDeduction.Equal(types.MustMoney("100.00")))
	assert.True(t, l.Net.Equal(types.MustMoney("2300.00")))

	require.NoError(t, h.Payroll.Create(ctx, run))
	res, err := h.Payroll.Confirm(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	entry, err := h.Journal.GetByNumber(ctx, res.EntryNumber)
	require.NoError(t, err)

	totals := map[string][2]string{}
	for _, line := range entry.Lines {
		acc, err := h.Accounts.GetByID(ctx, line.AccountID)
		require.NoError(t, err)
		totals[acc.Code] = [2]string{line.Debit.String(), line.Credit.String()}
	}
	assert.Equal(t, "3000.00", totals["5200"][0])
	assert.Equal(t, "480.00", totals["2300"][1])
	assert.Equal(t, "120.00", totals["2310"][1])
	assert.Equal(t, "100.00", totals["1400"][1])
	assert.Equal(t, "2300.00", totals["1020"][1])

	got, err := h.Advances.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PaidInstallments)
	assert.True(t, got.RemainingAmount.Equal(types.MustMoney("200.00")))

	// a second confirm replays the original entry
	res2, err := h.Payroll.Confirm(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, res2.Replayed)
	assert.Equal(t, res.EntryNumber, res2.EntryNumber)
}

func TestCreate_RejectsSecondConfirmedMonth(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	run := payroll.NewRun(time.Now().UTC())
	run.AddLine(id.New(), "A", types.MustMoney("1000.00"), types.ZeroMoney(), types.MustMoney("100.00"), types.ZeroMoney())
	require.NoError(t, h.Payroll.Create(ctx, run))
	_, err := h.Payroll.Confirm(ctx, run.ID)
	require.NoError(t, err)

	second := payroll.NewRun(time.Now().UTC())
	second.AddLine(id.New(), "B", types.MustMoney("1000.00"), types.ZeroMoney(), types.MustMoney("100.00"), types.ZeroMoney())
	err = h.Payroll.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestReverse_RestoresAdvances(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	employee := id.New()

	adv := payments.NewAdvance(employee, "R. Halvorsen", types.MustMoney("100.00"), 1, time.Now().UTC().AddDate(0, -1, 0))
	require.NoError(t, h.Advances.Grant(ctx, adv))

	run := payroll.NewRun(time.Now().UTC())
	run.AddLine(employee, "R. Halvorsen",
		types.MustMoney("2000.00"), types.ZeroMoney(),
		types.MustMoney("300.00"), types.ZeroMoney())
	require.NoError(t, h.Payroll.PopulateAdvances(ctx, run))
	require.NoError(t, h.Payroll.Create(ctx, run))

	_, err := h.Payroll.Confirm(ctx, run.ID)
	require.NoError(t, err)

	got, err := h.Advances.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	require.Equal(t, payments.AdvanceCompleted, got.Status)

	rev, err := h.Payroll.Reverse(ctx, run.ID, "corrections")
	require.NoError(t, err)
	assert.NotZero(t, rev.ReversalEntryNumber)

	got, err = h.Advances.GetByID(ctx, adv.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.AdvanceOpen, got.Status)
	assert.True(t, got.RemainingAmount.Equal(types.MustMoney("100.00")))
}

func TestCancel_DraftOnly(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	run := payroll.NewRun(time.Now().UTC())
	run.AddLine(id.New(), "A", types.MustMoney("1000.00"), types.ZeroMoney(), types.ZeroMoney(), types.ZeroMoney())
	require.NoError(t, h.Payroll.Create(ctx, run))

	require.NoError(t, h.Payroll.Cancel(ctx, run.ID))

	got, err := h.Payroll.GetByID(ctx, run.ID)
	require.NoError(t, err)
	err = got.CanConfirm()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}
