package reports

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/accounts"
)

// Service generates the read views.
type Service struct {
	repo     Repository
	accounts *accounts.Service
}

// NewService creates the reports service.
func NewService(repo Repository, accountsSvc *accounts.Service) *Service {
	return &Service{repo: repo, accounts: accountsSvc}
}

// TrialBalance returns per-account posted totals up to asOf with the
// accounting equation check.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (*TrialBalance, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rows, err := s.repo.TrialBalanceRows(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("trial balance rows: %w", err)
	}

	tb := &TrialBalance{
		AsOf:        asOf,
		Rows:        rows,
		TotalDebit:  types.ZeroMoney(),
		TotalCredit: types.ZeroMoney(),
	}
	for _, r := range rows {
		tb.TotalDebit = tb.TotalDebit.Add(r.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(r.Credit)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb, nil
}

// AccountBalance returns one account's position as of a date, resolved by
// code. Parent accounts report the aggregate of their subtree.
func (s *Service) AccountBalance(ctx context.Context, code string, asOf time.Time) (*AccountBalance, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	account, err := s.accounts.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	debit, credit, err := s.subtreeTotals(ctx, account, asOf)
	if err != nil {
		return nil, err
	}

	return &AccountBalance{
		AccountID: account.ID,
		Code:      account.Code,
		Name:      account.Name,
		AsOf:      asOf,
		Debit:     debit,
		Credit:    credit,
		Net:       debit.Sub(credit),
	}, nil
}

// subtreeTotals sums the account's own posted totals plus its descendants'.
func (s *Service) subtreeTotals(ctx context.Context, account *accounts.Account, asOf time.Time) (types.Money, types.Money, error) {
	debit, credit, err := s.repo.AccountTotals(ctx, account.ID, asOf)
	if err != nil {
		return types.ZeroMoney(), types.ZeroMoney(), fmt.Errorf("account totals %s: %w", account.Code, err)
	}

	children, err := s.accounts.Children(ctx, account.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return debit, credit, nil
		}
		return types.ZeroMoney(), types.ZeroMoney(), err
	}
	for _, child := range children {
		d, c, err := s.subtreeTotals(ctx, child, asOf)
		if err != nil {
			return types.ZeroMoney(), types.ZeroMoney(), err
		}
		debit = debit.Add(d)
		credit = credit.Add(c)
	}
	return debit, credit, nil
}

// StockBalance returns inventory positions valued at weighted average cost.
func (s *Service) StockBalance(ctx context.Context, f StockBalanceFilter) (*StockBalance, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}

	rows, err := s.repo.StockBalanceRows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("stock balance rows: %w", err)
	}

	report := &StockBalance{Rows: rows, TotalValue: types.ZeroMoney()}
	for _, r := range rows {
		report.TotalValue = report.TotalValue.Add(r.Value)
	}
	return report, nil
}
