package periods_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/journal"
)

func TestOpen_RejectsDuplicateName(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	start := time.Now().UTC().AddDate(2, 0, 0)
	_, err := h.Periods.Open(ctx, "TEST", start, start.AddDate(0, 3, 0))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestOpen_RejectsOverlap(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	// the harness period covers today, so a range around today overlaps
	now := time.Now().UTC()
	_, err := h.Periods.Open(ctx, "OVERLAP", now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))

	// a disjoint range is fine
	start := now.AddDate(2, 0, 0)
	p, err := h.Periods.Open(ctx, "FUTURE", start, start.AddDate(0, 3, 0))
	require.NoError(t, err)
	assert.True(t, p.IsOpen())
}

func TestOpen_ValidatesDates(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	now := time.Now().UTC().AddDate(2, 0, 0)
	_, err := h.Periods.Open(ctx, "BACKWARDS", now, now.AddDate(0, -1, 0))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = h.Periods.Open(ctx, "", now, now.AddDate(0, 1, 0))
	require.Error(t, err)
}

func TestResolveOpenForDate(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	p, err := h.Periods.ResolveOpenForDate(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "TEST", p.Name)

	// no period covers a date far in the future
	_, err = h.Periods.ResolveOpenForDate(ctx, time.Now().UTC().AddDate(5, 0, 0))
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, h.Periods.Close(ctx, "TEST"))

	_, err = h.Periods.ResolveOpenForDate(ctx, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed))
}

func TestClose_BlocksOnDraftEntries(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	draft := journal.NewEntry(time.Now().UTC(), "pending", journal.SourceRef{})
	draft.Lines = []journal.Line{
		{Debit: types.MustMoney("10.00")},
		{Credit: types.MustMoney("10.00")},
	}
	require.NoError(t, h.Store.Journal.Create(ctx, draft))

	err := h.Periods.Close(ctx, "TEST")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestClose_BlocksWhileLedgersDisagree(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	// corrupt a partner's materialised balance behind the journal's back
	p := h.RegisterPartner(ctx, "CUS-001", "Atlas Publishing House", "customer")
	require.NoError(t, h.Store.Partners.ApplyToBalance(ctx, p.ID, types.MustMoney("99.00")))

	err := h.Periods.Close(ctx, "TEST")
	require.Error(t, err)
}

func TestClose_ThenPostingRejected(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	entry, err := h.Journal.Compose(ctx, journal.ComposeInput{
		Date: time.Now().UTC(),
		Lines: []journal.LineInput{
			{AccountCode: "1010", Debit: types.MustMoney("50.00")},
			{AccountCode: "4100", Credit: types.MustMoney("50.00")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, h.Periods.Close(ctx, "TEST"))

	_, _, err = h.Journal.Post(ctx, entry)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed))

	// closing a closed period is rejected
	err = h.Periods.Close(ctx, "TEST")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed))
}

func TestReopen(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	// reopening an open period is rejected
	err := h.Periods.Reopen(ctx, "TEST")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))

	require.NoError(t, h.Periods.Close(ctx, "TEST"))
	require.NoError(t, h.Periods.Reopen(ctx, "TEST"))

	_, err = h.Periods.ResolveOpenForDate(ctx, time.Now().UTC())
	require.NoError(t, err)

	// open, close, and reopen all leave audit records
	assert.NotEmpty(t, h.Store.Audit.ByAction(audit.ActionCreate))
	assert.NotEmpty(t, h.Store.Audit.ByAction(audit.ActionUpdate))

	err = h.Periods.Reopen(ctx, "MISSING")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
