package journal

import (
	"context"
	"time"

	"pressledger/internal/core/id"
)

// Repository defines persistence for journal entries and lines.
type Repository interface {
	// Create inserts the entry header and its lines in one shot. Lines go
	// over the COPY protocol. Draft entries persist with a NULL number.
	Create(ctx context.Context, e *Entry) error

	// GetByID retrieves an entry with lines.
	GetByID(ctx context.Context, id id.ID) (*Entry, error)

	// GetByIDForUpdate retrieves an entry with a row lock on the header.
	// Reversal holds this lock so concurrent reversals serialise.
	GetByIDForUpdate(ctx context.Context, id id.ID) (*Entry, error)

	// GetByNumber retrieves a posted entry by its number.
	GetByNumber(ctx context.Context, number int64) (*Entry, error)

	// GetBySource retrieves the entry posted for (source_kind, source_id).
	// Backed by a unique index; this is the idempotency check.
	GetBySource(ctx context.Context, kind string, sourceID id.ID) (*Entry, error)

	// UpdateStatus persists a status transition (and reversal link).
	UpdateStatus(ctx context.Context, e *Entry) error

	// ListByDateRange returns posted entries dated within [from, to].
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*Entry, error)
}
