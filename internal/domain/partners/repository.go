package partners

import (
	"context"
	"time"

	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
)

// Repository defines persistence for partners.
type Repository interface {
	domain.CatalogRepository[*Partner]

	// GetByKindAndCode retrieves a partner by (kind, code).
	GetByKindAndCode(ctx context.Context, kind Kind, code string) (*Partner, error)

	// GetForUpdate retrieves a partner with a row lock. The journal engine
	// holds this lock while moving the materialised balance.
	GetForUpdate(ctx context.Context, id id.ID) (*Partner, error)

	// GetByControlAccount finds the partner owning the control account.
	GetByControlAccount(ctx context.Context, accountID id.ID) (*Partner, error)

	// ApplyToBalance adds delta to the materialised balance.
	ApplyToBalance(ctx context.Context, id id.ID, delta types.Money) error

	// SumPostedLines computes Σ(debit−credit) over posted journal lines
	// tagged with the partner. Reconciliation compares this to the
	// materialised balance.
	SumPostedLines(ctx context.Context, id id.ID) (debit, credit types.Money, err error)

	// StatementLines returns posted lines for the partner in [from, to]
	// ordered by date then entry number, without running balances.
	StatementLines(ctx context.Context, id id.ID, from, to time.Time) ([]StatementLine, error)

	// OpeningBalance computes the partner balance as of just before `from`.
	OpeningBalance(ctx context.Context, id id.ID, from time.Time) (types.Money, error)

	// ListByKind returns partners of one kind.
	ListByKind(ctx context.Context, kind Kind) ([]*Partner, error)
}
