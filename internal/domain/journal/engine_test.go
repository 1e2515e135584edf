package journal_test

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
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
)

func composeSimple(t *testing.T, h *domaintest.Harness, source journal.SourceRef) *journal.Entry {
	t.Helper()
	entry, err := h.Journal.Compose(context.Background(), journal.ComposeInput{
		Date:        time.Now().UTC(),
		Description: "cash sale",
		Source:      source,
		Lines: []journal.LineInput{
			{AccountCode: "1010", Debit: types.MustMoney("50.00")},
			{AccountCode: "4100", Credit: types.MustMoney("50.00")},
		},
	})
	require.NoError(t, err)
	return entry
}

func TestCompose_ResolvesAccounts(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	entry := composeSimple(t, h, journal.SourceRef{})
	require.Len(t, entry.Lines, 2)

	cash, err := h.Accounts.Resolve(ctx, "1010")
	require.NoError(t, err)
	assert.Equal(t, cash.ID, entry.Lines[0].AccountID)
	assert.Equal(t, journal.EntryDraft, entry.Status)
	assert.Zero(t, entry.Number)
}

func TestCompose_RejectsNonLeafAccount(t *testing.T) {
	h := domaintest.NewHarness()

	_, err := h.Journal.Compose(context.Background(), journal.ComposeInput{
		Date: time.Now().UTC(),
		Lines: []journal.LineInput{
			{AccountCode: "1000", Debit: types.MustMoney("50.00")},
			{AccountCode: "4100", Credit: types.MustMoney("50.00")},
		},
	})
	require.Error(t, err)
}

func TestCompose_ControlReferenceRules(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	p := h.RegisterPartner(ctx, "CUS-001", "Atlas Publishing House", partners.KindCustomer)
	control, err := h.Accounts.GetByID(ctx, p.ControlAccountID)
	require.NoError(t, err)

	ref := &journal.PartnerRef{ID: p.ID, Kind: p.Kind}

	// control line with a matching partner reference passes
	_, err = h.Journal.Compose(ctx, journal.ComposeInput{
		Date: time.Now().UTC(),
		Lines: []journal.LineInput{
			{AccountCode: control.Code, Debit: types.MustMoney("100.00"), Partner: ref},
			{AccountCode: "4100", Credit: types.MustMoney("100.00")},
		},
	})
	require.NoError(t, err)

	// control line without any reference is rejected
	_, err = h.Journal.Compose(ctx, journal.ComposeInput{
		Date: time.Now().UTC(),
		Lines: []journal.LineInput{
			{AccountCode: control.Code, Debit: types.MustMoney("100.00")},
			{AccountCode: "4100", Credit: types.MustMoney("100.00")},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))

	// non-control line must not carry a subsidiary reference
	_, err = h.Journal.Compose(ctx, journal.ComposeInput{
		Date: time.Now().UTC(),
		Lines: []journal.LineInput{
			{AccountCode: control.Code, Debit: types.MustMoney("100.00"), Partner: ref},
			{AccountCode: "4100", Credit: types.MustMoney("100.00"), Partner: ref},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestPost_AppliesBalancesAndNumbersGaplessly(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	first, replayed, err := h.Journal.Post(ctx, composeSimple(t, h, journal.SourceRef{}))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, journal.EntryPosted, first.Status)
	require.NotNil(t, first.PostedAt)

	second, _, err := h.Journal.Post(ctx, composeSimple(t, h, journal.SourceRef{}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Number)

	cash, err := h.Accounts.Resolve(ctx, "1010")
	require.NoError(t, err)
	bal, err := h.Store.Accounts.GetBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, bal.DebitTotal.Equal(types.MustMoney("100.00")), "got %s", bal.DebitTotal)
	assert.True(t, bal.CreditTotal.IsZero())

	assert.Len(t, h.Store.Audit.ByAction(audit.ActionPost), 2)
}

func TestPost_SourceReplay(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	source := journal.SourceRef{Kind: "purchase_invoice", ID: id.New(), Number: "PI-1"}

	first, replayed, err := h.Journal.Post(ctx, composeSimple(t, h, source))
	require.NoError(t, err)
	require.False(t, replayed)

	again, replayed, err := h.Journal.Post(ctx, composeSimple(t, h, source))
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.Number, again.Number)

	// the replay did not double the balances
	cash, err := h.Accounts.Resolve(ctx, "1010")
	require.NoError(t, err)
	bal, err := h.Store.Accounts.GetBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, bal.DebitTotal.Equal(types.MustMoney("50.00")))
}

func TestPost_RejectsDateWithoutOpenPeriod(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	entry, err := h.Journal.Compose(ctx, journal.ComposeInput{
		Date: time.Now().UTC().AddDate(3, 0, 0),
		Lines: []journal.LineInput{
			{AccountCode: "1010", Debit: types.MustMoney("50.00")},
			{AccountCode: "4100", Credit: types.MustMoney("50.00")},
		},
	})
	require.NoError(t, err)

	_, _, err = h.Journal.Post(ctx, entry)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReverse_RestoresBalances(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	p := h.RegisterPartner(ctx, "CUS-001", "Atlas Publishing House", partners.KindCustomer)
	control, err := h.Accounts.GetByID(ctx, p.ControlAccountID)
	require.NoError(t, err)

	entry, err := h.Journal.Compose(ctx, journal.ComposeInput{
		Date:        time.Now().UTC(),
		Description: "credit sale",
		Lines: []journal.LineInput{
			{AccountCode: control.Code, Debit: types.MustMoney("120.00"), Partner: &journal.PartnerRef{ID: p.ID, Kind: p.Kind}},
			{AccountCode: "4100", Credit: types.MustMoney("120.00")},
		},
	})
	require.NoError(t, err)

	posted, _, err := h.Journal.Post(ctx, entry)
	require.NoError(t, err)

	p, err = h.Partners.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(types.MustMoney("120.00")), "got %s", p.Balance)

	reversal, err := h.Journal.Reverse(ctx, posted.ID, "wrong amount")
	require.NoError(t, err)
	assert.Equal(t, posted.Number+1, reversal.Number)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, posted.ID, *reversal.ReversalOf)
	assert.Equal(t, journal.EntryReversed, reversal.Status)

	// debit/credit swapped line for line
	assert.True(t, reversal.Lines[0].Credit.Equal(types.MustMoney("120.00")))
	assert.True(t, reversal.Lines[1].Debit.Equal(types.MustMoney("120.00")))

	p, err = h.Partners.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.Balance.IsZero(), "got %s", p.Balance)

	orig, err := h.Journal.GetByNumber(ctx, posted.Number)
	require.NoError(t, err)
	assert.Equal(t, journal.EntryReversed, orig.Status)

	// a reversed entry cannot be reversed again
	_, err = h.Journal.Reverse(ctx, posted.ID, "again")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))

	assert.Len(t, h.Store.Audit.ByAction(audit.ActionReverse), 1)
}

func TestPost_RejectsNonDraft(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()

	posted, _, err := h.Journal.Post(ctx, composeSimple(t, h, journal.SourceRef{}))
	require.NoError(t, err)

	_, _, err = h.Journal.Post(ctx, posted)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvariantViolation))
}

func TestEntry_Validate(t *testing.T) {
	ctx := context.Background()
	accountID := id.New()

	line := func(debit, credit string) journal.Line {
		return journal.Line{
			ID:        id.New(),
			AccountID: accountID,
			Debit:     types.MustMoney(debit),
			Credit:    types.MustMoney(credit),
		}
	}

	valid := journal.NewEntry(time.Now().UTC(), "ok", journal.SourceRef{})
	valid.Lines = []journal.Line{line("10.00", "0"), line("0", "10.00")}
	require.NoError(t, valid.Validate(ctx))

	oneLine := journal.NewEntry(time.Now().UTC(), "", journal.SourceRef{})
	oneLine.Lines = []journal.Line{line("10.00", "0")}
	assert.Error(t, oneLine.Validate(ctx))

	bothSides := journal.NewEntry(time.Now().UTC(), "", journal.SourceRef{})
	bothSides.Lines = []journal.Line{line("10.00", "10.00"), line("0", "10.00")}
	assert.Error(t, bothSides.Validate(ctx))

	neitherSide := journal.NewEntry(time.Now().UTC(), "", journal.SourceRef{})
	neitherSide.Lines = []journal.Line{line("0", "0"), line("0", "10.00")}
	assert.Error(t, neitherSide.Validate(ctx))

	unbalanced := journal.NewEntry(time.Now().UTC(), "", journal.SourceRef{})
	unbalanced.Lines = []journal.Line{line("10.00", "0"), line("0", "12.00")}
	assert.Error(t, unbalanced.Validate(ctx))

	// one cent of rounding drift is tolerated
	nearlyBalanced := journal.NewEntry(time.Now().UTC(), "", journal.SourceRef{})
	nearlyBalanced.Lines = []journal.Line{line("10.01", "0"), line("0", "10.00")}
	require.NoError(t, nearlyBalanced.Validate(ctx))

	noDate := journal.NewEntry(time.Time{}, "", journal.SourceRef{})
	noDate.Lines = []journal.Line{line("10.00", "0"), line("0", "10.00")}
	assert.Error(t, noDate.Validate(ctx))

	bothRefs := journal.NewEntry(time.Now().UTC(), "", journal.SourceRef{})
	l := line("10.00", "0")
	l.Partner = &journal.PartnerRef{ID: id.New(), Kind: partners.KindCustomer}
	l.Inventory = &journal.InventoryRef{ProductID: id.New(), WarehouseID: id.New()}
	bothRefs.Lines = []journal.Line{l, line("0", "10.00")}
	assert.Error(t, bothRefs.Validate(ctx))
}
