package payments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// AdvanceStatus is the advance lifecycle.
type AdvanceStatus string

const (
	AdvanceOpen      AdvanceStatus = "open"
	AdvanceCompleted AdvanceStatus = "completed"
)

// AdvanceSourceKind tags advance disbursement journal entries.
const AdvanceSourceKind = "payroll_advance"

// Advance is a payroll advance repaid in monthly installments deducted from
// pay. Invariant: paid installment sum + remaining = total; the final
// installment absorbs any rounding residual so completion zeroes remaining.
type Advance struct {
	entity.BaseDocument

	EmployeeID   id.ID  `db:"employee_id" json:"employeeId"`
	EmployeeName string `db:"employee_name" json:"employeeName"`

	TotalAmount       types.Money `db:"total_amount" json:"totalAmount"`
	InstallmentsCount int         `db:"installments_count" json:"installmentsCount"`

	// InstallmentAmount = total / count, rounded half-even
	InstallmentAmount types.Money `db:"installment_amount" json:"installmentAmount"`

	PaidInstallments int         `db:"paid_installments" json:"paidInstallments"`
	RemainingAmount  types.Money `db:"remaining_amount" json:"remainingAmount"`

	Status      AdvanceStatus `db:"status" json:"status"`
	RequestDate time.Time     `db:"request_date" json:"requestDate"`

	// LastDeductionMonth guards the one-installment-per-month rule
	LastDeductionMonth *time.Time `db:"last_deduction_month" json:"lastDeductionMonth,omitempty"`

	EntryNumber *int64 `db:"entry_number" json:"entryNumber,omitempty"`
}

// NewAdvance creates an open advance with the installment amount derived
// from the total and count.
func NewAdvance(employeeID id.ID, employeeName string, total types.Money, installments int, requestDate time.Time) *Advance {
	installment := types.ZeroMoney()
	if installments > 0 {
		installment = types.RoundMoney(total.Div(decimal.NewFromInt(int64(installments))))
	}
	return &Advance{
		BaseDocument:      entity.NewBaseDocument(),
		EmployeeID:        employeeID,
		EmployeeName:      employeeName,
		TotalAmount:       total,
		InstallmentsCount: installments,
		InstallmentAmount: installment,
		RemainingAmount:   total,
		Status:            AdvanceOpen,
		RequestDate:       requestDate,
	}
}

// Validate implements entity.Validatable.
func (a *Advance) Validate(ctx context.Context) error {
	if id.IsNil(a.EmployeeID) {
		return apperror.NewValidation("employee is required").
			WithDetail("field", "employeeId")
	}
	if !a.TotalAmount.IsPositive() {
		return apperror.NewValidation("advance total must be positive").
			WithDetail("total", a.TotalAmount.String())
	}
	if a.InstallmentsCount <= 0 {
		return apperror.NewValidation("installments count must be positive").
			WithDetail("count", a.InstallmentsCount)
	}
	if a.RequestDate.IsZero() {
		return apperror.NewValidation("request date is required").
			WithDetail("field", "requestDate")
	}
	return nil
}

// DueAmount returns the next installment: the plain installment amount, or
// the full remainder on the final installment.
func (a *Advance) DueAmount() types.Money {
	if a.PaidInstallments+1 >= a.InstallmentsCount {
		return a.RemainingAmount
	}
	if a.RemainingAmount.LessThan(a.InstallmentAmount) {
		return a.RemainingAmount
	}
	return a.InstallmentAmount
}

// DeductedInMonth reports whether an installment was already taken for the
// given payroll month.
func (a *Advance) DeductedInMonth(month time.Time) bool {
	return a.LastDeductionMonth != nil &&
		a.LastDeductionMonth.Year() == month.Year() &&
		a.LastDeductionMonth.Month() == month.Month()
}

