package periods

import (
	"context"
	"time"

	"pressledger/internal/core/id"
)

// Repository defines persistence for accounting periods.
type Repository interface {
	// Create inserts a new period.
	Create(ctx context.Context, p *Period) error

	// GetByID retrieves a period by ID.
	GetByID(ctx context.Context, id id.ID) (*Period, error)

	// GetByName retrieves a period by name.
	GetByName(ctx context.Context, name string) (*Period, error)

	// Update persists status changes (with optimistic locking).
	Update(ctx context.Context, p *Period) error

	// FindForDate returns the period containing the date, if any.
	FindForDate(ctx context.Context, date time.Time) (*Period, error)

	// FindForDateForUpdate locks and returns the period containing the
	// date. Posting paths hold this lock until commit so a concurrent
	// close cannot slip between the check and the insert.
	FindForDateForUpdate(ctx context.Context, date time.Time) (*Period, error)

	// FindOverlapping returns any period overlapping [start, end].
	FindOverlapping(ctx context.Context, start, end time.Time) (*Period, error)

	// CountDraftEntriesInRange counts draft journal entries dated within
	// the range. Used by Close.
	CountDraftEntriesInRange(ctx context.Context, start, end time.Time) (int64, error)

	// List returns all periods ordered by start date.
	List(ctx context.Context) ([]*Period, error)
}
