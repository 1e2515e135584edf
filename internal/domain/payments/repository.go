package payments

import (
	"context"
	"time"

	"pressledger/internal/core/id"
	"pressledger/internal/domain"
)

// Repository defines persistence for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)

	// GetForUpdate locks the payment row against concurrent void calls.
	GetForUpdate(ctx context.Context, paymentID id.ID) (*Payment, error)

	Update(ctx context.Context, p *Payment) error

	// ListByInvoice returns all payments recorded against an invoice.
	ListByInvoice(ctx context.Context, invoiceKind string, invoiceID id.ID) ([]*Payment, error)

	List(ctx context.Context, f ListFilter) (domain.ListResult[*Payment], error)
}

// AdvanceRepository defines persistence for payroll advances.
type AdvanceRepository interface {
	Create(ctx context.Context, a *Advance) error
	GetByID(ctx context.Context, advanceID id.ID) (*Advance, error)

	// GetForUpdate locks the advance row; installment math runs under it.
	GetForUpdate(ctx context.Context, advanceID id.ID) (*Advance, error)

	Update(ctx context.Context, a *Advance) error

	// ListOpenByEmployee returns the employee's open advances ordered by
	// request date (FIFO).
	ListOpenByEmployee(ctx context.Context, employeeID id.ID) ([]*Advance, error)

	List(ctx context.Context, f AdvanceListFilter) (domain.ListResult[*Advance], error)
}

// ListFilter for payment queries.
type ListFilter struct {
	domain.ListFilter

	InvoiceKind *string
	Status      *Status
	Method      *Method
	DateFrom    *time.Time
	DateTo      *time.Time
}

// AdvanceListFilter for advance queries.
type AdvanceListFilter struct {
	domain.ListFilter

	EmployeeID *id.ID
	Status     *AdvanceStatus
}
