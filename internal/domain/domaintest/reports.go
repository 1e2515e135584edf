package domaintest

import (
	"context"
	"sort"
	"time"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/reports"
)

// ReportRepo implements reports.Repository over the shared store. Totals are
// recomputed from the stored journal entries on every call, so the views
// always agree with what was posted.
type ReportRepo struct {
	s *Store
}

func (r *ReportRepo) TrialBalanceRows(ctx context.Context, asOf time.Time) ([]reports.TrialBalanceRow, error) {
	type totals struct {
		debit  types.Money
		credit types.Money
	}
	byAccount := make(map[id.ID]*totals)

	for _, e := range r.s.Journal.byID {
		if e.Status == journal.EntryDraft || e.Date.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			t, ok := byAccount[l.AccountID]
			if !ok {
				t = &totals{debit: types.ZeroMoney(), credit: types.ZeroMoney()}
				byAccount[l.AccountID] = t
			}
			t.debit = t.debit.Add(l.Debit)
			t.credit = t.credit.Add(l.Credit)
		}
	}

	var rows []reports.TrialBalanceRow
	for accountID, t := range byAccount {
		a, ok := r.s.Accounts.byID[accountID]
		if !ok {
			continue
		}
		rows = append(rows, reports.TrialBalanceRow{
			AccountID: accountID,
			Code:      a.Code,
			Name:      a.Name,
			Type:      a.Type,
			Debit:     t.debit,
			Credit:    t.credit,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows, nil
}

func (r *ReportRepo) AccountTotals(ctx context.Context, accountID id.ID, asOf time.Time) (types.Money, types.Money, error) {
	debit := types.ZeroMoney()
	credit := types.ZeroMoney()
	for _, e := range r.s.Journal.byID {
		if e.Status == journal.EntryDraft || e.Date.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				debit = debit.Add(l.Debit)
				credit = credit.Add(l.Credit)
			}
		}
	}
	return debit, credit, nil
}

func (r *ReportRepo) StockBalanceRows(ctx context.Context, f reports.StockBalanceFilter) ([]reports.StockBalanceRow, error) {
	items, err := r.s.Inventory.ListItems(ctx, f.WarehouseID, f.ExcludeZero)
	if err != nil {
		return nil, err
	}

	var rows []reports.StockBalanceRow
	for _, item := range items {
		if f.ProductID != nil && item.ProductID != *f.ProductID {
			continue
		}
		rows = append(rows, reports.StockBalanceRow{
			ProductID:       item.ProductID,
			WarehouseID:     item.WarehouseID,
			Quantity:        item.Quantity,
			WeightedAvgCost: item.WeightedAvgCost,
			Value:           types.RoundMoney(item.WeightedAvgCost.Mul(item.Quantity.Decimal())),
		})
	}

	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			return nil, nil
		}
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

var _ reports.Repository = (*ReportRepo)(nil)
