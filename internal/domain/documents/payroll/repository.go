package payroll

import (
	"context"
	"time"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
)

// Repository defines persistence for payroll runs.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, runID id.ID) (*Run, error)
	GetByNumber(ctx context.Context, number string) (*Run, error)
	Update(ctx context.Context, run *Run) error
	Delete(ctx context.Context, runID id.ID) error

	// GetForUpdate locks the header row against concurrent confirm/reverse.
	GetForUpdate(ctx context.Context, runID id.ID) (*Run, error)

	GetLines(ctx context.Context, runID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, runID id.ID, lines []Line) error

	// ExistsConfirmedForMonth reports whether a confirmed run already
	// covers the month. One payroll run per month.
	ExistsConfirmedForMonth(ctx context.Context, month time.Time) (bool, error)

	List(ctx context.Context, f ListFilter) (domain.ListResult[*Run], error)
}

// ListFilter for payroll run queries.
type ListFilter struct {
	domain.ListFilter

	Status    *entity.DocumentStatus
	MonthFrom *time.Time
	MonthTo   *time.Time
}

// AdvanceDeduction is one installment selected by the advance book.
type AdvanceDeduction struct {
	AdvanceID id.ID
	Amount    types.Money
}

// AdvanceDeductor is the slice of the payroll-advance book the run needs.
// Implemented by the payments package.
type AdvanceDeductor interface {
	// NextDeduction selects the employee's oldest open advance that has not
	// been deducted in the given month, returning min(installment,
	// remaining), or nil when nothing is due.
	NextDeduction(ctx context.Context, employeeID id.ID, month time.Time) (*AdvanceDeduction, error)

	// Deduct applies one installment for the month. Rejects a second
	// deduction in the same month or an amount that no longer matches.
	Deduct(ctx context.Context, advanceID id.ID, month time.Time, amount types.Money) error

	// Restore undoes a deduction when the payroll run is reversed.
	Restore(ctx context.Context, advanceID id.ID, amount types.Money) error
}
