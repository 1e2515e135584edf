// Package report_repo provides the PostgreSQL read side for the report
// views. Aggregations run over posted journal lines; reversed entries stay
// included because their reversal entries net them out.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/reports"
	"pressledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// TrialBalanceRows sums posted debits and credits per account over entries
// dated up to asOf. Accounts without activity are omitted.
func (r *ReportRepo) TrialBalanceRows(ctx context.Context, asOf time.Time) ([]reports.TrialBalanceRow, error) {
	sql := `
		SELECT
			a.id AS account_id,
			a.code,
			a.name,
			a.type,
			COALESCE(SUM(l.debit), 0) AS debit,
			COALESCE(SUM(l.credit), 0) AS credit
		FROM jrn_lines l
		JOIN jrn_entries e ON e.id = l.entry_id
		JOIN acc_accounts a ON a.id = l.account_id
		WHERE e.status IN ('posted', 'reversed')
		  AND e.date <= $1
		GROUP BY a.id, a.code, a.name, a.type
		ORDER BY a.code
	`

	var rows []reports.TrialBalanceRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, asOf); err != nil {
		return nil, fmt.Errorf("trial balance rows: %w", err)
	}

	return rows, nil
}

// AccountTotals sums one account's posted debits and credits up to asOf.
func (r *ReportRepo) AccountTotals(ctx context.Context, accountID id.ID, asOf time.Time) (types.Money, types.Money, error) {
	sql := `
		SELECT
			COALESCE(SUM(l.debit), 0) AS debit,
			COALESCE(SUM(l.credit), 0) AS credit
		FROM jrn_lines l
		JOIN jrn_entries e ON e.id = l.entry_id
		WHERE e.status IN ('posted', 'reversed')
		  AND e.date <= $1
		  AND l.account_id = $2
	`

	var debit, credit types.Money
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, asOf, accountID).Scan(&debit, &credit)
	if err != nil {
		return types.ZeroMoney(), types.ZeroMoney(), fmt.Errorf("account totals: %w", err)
	}

	return debit, credit, nil
}

// stockRow flattens an inventory position; quantity is the scaled BIGINT.
type stockRow struct {
	ProductID       id.ID       `db:"product_id"`
	WarehouseID     id.ID       `db:"warehouse_id"`
	Quantity        int64       `db:"quantity"`
	WeightedAvgCost types.Money `db:"weighted_avg_cost"`
}

// StockBalanceRows reads inventory positions. Value is quantity times
// weighted average cost, rounded half-even.
func (r *ReportRepo) StockBalanceRows(ctx context.Context, f reports.StockBalanceFilter) ([]reports.StockBalanceRow, error) {
	q := r.builder.
		Select("product_id", "warehouse_id", "quantity", "weighted_avg_cost").
		From("inv_items")

	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}

	q = q.OrderBy("product_id", "warehouse_id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var raw []stockRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &raw, sql, args...); err != nil {
		return nil, fmt.Errorf("stock balance rows: %w", err)
	}

	rows := make([]reports.StockBalanceRow, 0, len(raw))
	for _, sr := range raw {
		qty := types.NewQuantityFromInt64Scaled(sr.Quantity)
		rows = append(rows, reports.StockBalanceRow{
			ProductID:       sr.ProductID,
			WarehouseID:     sr.WarehouseID,
			Quantity:        qty,
			WeightedAvgCost: sr.WeightedAvgCost,
			Value:           types.RoundMoney(sr.WeightedAvgCost.Mul(qty.Decimal())),
		})
	}

	return rows, nil
}

var _ reports.Repository = (*ReportRepo)(nil)
