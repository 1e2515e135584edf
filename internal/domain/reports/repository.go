package reports

import (
	"context"
	"time"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// Repository defines report data access. Implementations aggregate posted
// journal lines and inventory items; reversed entries stay included because
// their reversals net them out.
type Repository interface {
	// TrialBalanceRows sums posted debits and credits per account over
	// entries dated up to asOf.
	TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error)

	// AccountTotals sums one account's posted debits and credits up to asOf.
	AccountTotals(ctx context.Context, accountID id.ID, asOf time.Time) (debit, credit types.Money, err error)

	// StockBalanceRows reads inventory positions with valuation.
	StockBalanceRows(ctx context.Context, f StockBalanceFilter) ([]StockBalanceRow, error)
}
