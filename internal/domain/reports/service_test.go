package reports_test

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
	"pressledger/internal/domain/domaintest"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/reports"
)

func post(t *testing.T, h *domaintest.Harness, date time.Time, debitCode, creditCode, amount string) {
	t.Helper()
	ctx := context.Background()

	entry, err := h.Journal.Compose(ctx, journal.ComposeInput{
		Date: date,
		Lines: []journal.LineInput{
			{AccountCode: debitCode, Debit: types.MustMoney(amount)},
			{AccountCode: creditCode, Credit: types.MustMoney(amount)},
		},
	})
	require.NoError(t, err)
	_, _, err = h.Journal.Post(ctx, entry)
	require.NoError(t, err)
}

func TestTrialBalance(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	now := time.Now().UTC()

	post(t, h, now, "1010", "4100", "100.00")
	post(t, h, now, "5200", "1020", "40.00")

	tb, err := h.Reports.TrialBalance(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.True(t, tb.TotalDebit.Equal(types.MustMoney("140.00")), "got %s", tb.TotalDebit)
	assert.True(t, tb.TotalCredit.Equal(types.MustMoney("140.00")))

	byCode := map[string]reports.TrialBalanceRow{}
	for _, r := range tb.Rows {
		byCode[r.Code] = r
	}
	assert.True(t, byCode["1010"].Net().Equal(types.MustMoney("100.00")))
	assert.True(t, byCode["4100"].Net().Equal(types.MustMoney("-100.00")))

	// entries after the report date are invisible
	early, err := h.Reports.TrialBalance(ctx, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Empty(t, early.Rows)
}

func TestAccountBalance_AggregatesSubtree(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	now := time.Now().UTC()

	post(t, h, now, "1010", "4100", "100.00")
	post(t, h, now, "1020", "4100", "50.00")

	leaf, err := h.Reports.AccountBalance(ctx, "1010", now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, leaf.Net.Equal(types.MustMoney("100.00")))

	// 1000 rolls up every asset leaf under it
	root, err := h.Reports.AccountBalance(ctx, "1000", now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, root.Net.Equal(types.MustMoney("150.00")), "got %s", root.Net)

	_, err = h.Reports.AccountBalance(ctx, "0000", now)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestStockBalance_ValuesAtAverage(t *testing.T) {
	h := domaintest.NewHarness()
	ctx := context.Background()
	product, other := id.New(), id.New()
	warehouse := id.New()

	for i, in := range []struct {
		p    id.ID
		qty  int64
		cost string
	}{
		{product, 10, "4.00"},
		{product, 10, "6.00"},
		{other, 3, "2.00"},
	} {
		_, err := h.Ledger.Apply(ctx, []inventory.MovementSpec{{
			ProductID:   in.p,
			WarehouseID: warehouse,
			Kind:        entity.MovementIn,
			Quantity:    types.NewQuantityFromInt64(in.qty),
			UnitCost:    types.MustMoney(in.cost),
			Document:    entity.DocumentRef{Kind: "purchase_invoice", ID: id.New(), Number: "SEED"},
			Reference:   "SEED/" + string(rune('1'+i)),
			Period:      time.Now().UTC(),
			CreatedBy:   "tester",
		}})
		require.NoError(t, err)
	}

	all, err := h.Reports.StockBalance(ctx, reports.StockBalanceFilter{})
	require.NoError(t, err)
	require.Len(t, all.Rows, 2)
	assert.True(t, all.TotalValue.Equal(types.MustMoney("106.00")), "got %s", all.TotalValue)

	one, err := h.Reports.StockBalance(ctx, reports.StockBalanceFilter{ProductID: &product})
	require.NoError(t, err)
	require.Len(t, one.Rows, 1)
	assert.True(t, one.Rows[0].WeightedAvgCost.Equal(types.MustMoney("5.00")))
	assert.True(t, one.TotalValue.Equal(types.MustMoney("100.00")))
}
