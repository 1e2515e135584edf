package accounts

import (
	"context"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
)

// Repository defines persistence for the chart of accounts.
type Repository interface {
	domain.CatalogRepository[*Account]

	// Children returns direct children of the parent account.
	Children(ctx context.Context, parentID id.ID) ([]*Account, error)

	// HasChildren reports whether the account has any child accounts.
	HasChildren(ctx context.Context, accountID id.ID) (bool, error)

	// HasPostedLines reports whether any posted journal line references
	// the account.
	HasPostedLines(ctx context.Context, accountID id.ID) (bool, error)

	// GetBalance returns the materialised running totals for the account.
	// A missing row reads as zero.
	GetBalance(ctx context.Context, accountID id.ID) (Balance, error)

	// GetBalanceForUpdate returns the totals with a row lock, creating a
	// zero row if absent. Used by the journal engine during posting.
	GetBalanceForUpdate(ctx context.Context, accountID id.ID) (Balance, error)

	// ApplyToBalance adds debit/credit amounts to the materialised totals.
	ApplyToBalance(ctx context.Context, accountID id.ID, debit, credit types.Money) error

	// GetTree returns the whole chart ordered by code.
	GetTree(ctx context.Context) ([]*Account, error)
}
