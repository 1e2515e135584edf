package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/infrastructure/storage/postgres"
)

const (
	accountsTable        = "acc_accounts"
	accountBalancesTable = "acc_balances"
)

// AccountRepo implements accounts.Repository over acc_accounts and the
// materialised acc_balances table.
type AccountRepo struct {
	*BaseCatalogRepo[*accounts.Account]
	txManager *postgres.TxManager
}

// NewAccountRepo creates a new account repository.
func NewAccountRepo(txManager *postgres.TxManager) *AccountRepo {
	return &AccountRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			accountsTable,
			postgres.ExtractDBColumns[accounts.Account](),
			func() *accounts.Account { return &accounts.Account{} },
		),
		txManager: txManager,
	}
}

// Children returns direct children of the parent account ordered by code.
func (r *AccountRepo) Children(ctx context.Context, parentID id.ID) ([]*accounts.Account, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(accountsTable).
		Where(squirrel.Eq{"parent_id": parentID}).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var children []*accounts.Account
	if err := pgxscan.Select(ctx, r.Querier(ctx), &children, sql, args...); err != nil {
		return nil, fmt.Errorf("select children: %w", err)
	}

	return children, nil
}

// HasChildren reports whether the account has any child accounts.
func (r *AccountRepo) HasChildren(ctx context.Context, accountID id.ID) (bool, error) {
	q := r.Builder().
		Select("1").
		From(accountsTable).
		Where(squirrel.Eq{"parent_id": accountID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has children: %w", err)
	}

	return true, nil
}

// HasPostedLines reports whether any journal line references the account.
// Lines exist only on posted (or posted-then-reversed) entries, so a bare
// existence check on jrn_lines suffices.
func (r *AccountRepo) HasPostedLines(ctx context.Context, accountID id.ID) (bool, error) {
	q := r.Builder().
		Select("1").
		From("jrn_lines").
		Where(squirrel.Eq{"account_id": accountID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has posted lines: %w", err)
	}

	return true, nil
}

// GetBalance returns the materialised totals; a missing row reads as zero.
func (r *AccountRepo) GetBalance(ctx context.Context, accountID id.ID) (accounts.Balance, error) {
	q := r.Builder().
		Select("account_id", "debit_total", "credit_total").
		From(accountBalancesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return accounts.Balance{}, fmt.Errorf("build query: %w", err)
	}

	var balance accounts.Balance
	if err := pgxscan.Get(ctx, r.Querier(ctx), &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return zeroBalance(accountID), nil
		}
		return accounts.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// GetBalanceForUpdate returns the totals with a row lock, inserting a zero
// row first so the lock always has a target.
func (r *AccountRepo) GetBalanceForUpdate(ctx context.Context, accountID id.ID) (accounts.Balance, error) {
	querier := r.Querier(ctx)

	insertSQL := `
		INSERT INTO acc_balances (account_id, debit_total, credit_total)
		VALUES ($1, 0, 0)
		ON CONFLICT (account_id) DO NOTHING
	`
	if _, err := querier.Exec(ctx, insertSQL, accountID); err != nil {
		return accounts.Balance{}, fmt.Errorf("ensure balance row: %w", err)
	}

	selectSQL := `
		SELECT account_id, debit_total, credit_total
		FROM acc_balances
		WHERE account_id = $1
		FOR UPDATE
	`
	var balance accounts.Balance
	if err := pgxscan.Get(ctx, querier, &balance, selectSQL, accountID); err != nil {
		return accounts.Balance{}, fmt.Errorf("get balance for update: %w", err)
	}

	return balance, nil
}

// ApplyToBalance adds debit/credit amounts to the materialised totals.
func (r *AccountRepo) ApplyToBalance(ctx context.Context, accountID id.ID, debit, credit types.Money) error {
	sql := `
		INSERT INTO acc_balances (account_id, debit_total, credit_total)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE
		SET debit_total  = acc_balances.debit_total  + EXCLUDED.debit_total,
		    credit_total = acc_balances.credit_total + EXCLUDED.credit_total
	`
	if _, err := r.Querier(ctx).Exec(ctx, sql, accountID, debit, credit); err != nil {
		return fmt.Errorf("apply to balance: %w", err)
	}
	return nil
}

// GetTree returns the whole chart ordered by code. Codes encode the tree
// (children extend the parent code), so code order is tree order.
func (r *AccountRepo) GetTree(ctx context.Context) ([]*accounts.Account, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(accountsTable).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var tree []*accounts.Account
	if err := pgxscan.Select(ctx, r.Querier(ctx), &tree, sql, args...); err != nil {
		return nil, fmt.Errorf("select tree: %w", err)
	}

	return tree, nil
}

func zeroBalance(accountID id.ID) accounts.Balance {
	return accounts.Balance{
		AccountID:   accountID,
		DebitTotal:  types.ZeroMoney(),
		CreditTotal: types.ZeroMoney(),
	}
}

var _ accounts.Repository = (*AccountRepo)(nil)
