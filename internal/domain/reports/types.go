// Package reports provides the read views: trial balance, account balances
// as of a date, and stock valuation.
package reports

import (
	"time"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/accounts"
)

// TrialBalanceRow is one account's posted totals up to the report date.
type TrialBalanceRow struct {
	AccountID id.ID                `db:"account_id" json:"accountId"`
	Code      string               `db:"code" json:"code"`
	Name      string               `db:"name" json:"name"`
	Type      accounts.AccountType `db:"type" json:"type"`

	Debit  types.Money `db:"debit" json:"debit"`
	Credit types.Money `db:"credit" json:"credit"`
}

// Net returns debit minus credit.
func (r TrialBalanceRow) Net() types.Money {
	return r.Debit.Sub(r.Credit)
}

// TrialBalance lists every account with posted activity up to AsOf.
// Balanced is the accounting equation check: total debits equal credits.
type TrialBalance struct {
	AsOf time.Time         `json:"asOf"`
	Rows []TrialBalanceRow `json:"rows"`

	TotalDebit  types.Money `json:"totalDebit"`
	TotalCredit types.Money `json:"totalCredit"`
	Balanced    bool        `json:"balanced"`
}

// AccountBalance is one account's position as of a date.
type AccountBalance struct {
	AccountID id.ID     `json:"accountId"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	AsOf      time.Time `json:"asOf"`

	Debit  types.Money `json:"debit"`
	Credit types.Money `json:"credit"`
	Net    types.Money `json:"net"`
}

// StockBalanceRow is one (product, warehouse) position with its valuation
// at weighted average cost.
type StockBalanceRow struct {
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	WeightedAvgCost types.Money    `db:"weighted_avg_cost" json:"weightedAvgCost"`
	Value           types.Money    `db:"value" json:"value"`
}

// StockBalanceFilter scopes the stock valuation report.
type StockBalanceFilter struct {
	WarehouseID *id.ID
	ProductID   *id.ID
	ExcludeZero bool
	Limit       int
	Offset      int
}

// StockBalance is the stock valuation report.
type StockBalance struct {
	Rows []StockBalanceRow `json:"rows"`

	TotalValue types.Money `json:"totalValue"`
}
