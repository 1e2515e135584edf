// Package payroll provides the payroll run document: one line per employee
// with gross salary, overtime, tax and insurance withholding, and at most
// one payroll-advance installment deduction, netting to the bank account.
package payroll

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/posting"
)

// NumberPrefix for generated document numbers.
const NumberPrefix = "PAY"

// Line is one employee's pay for the month.
// Gross = base + overtime; Net = gross - tax - insurance - advance deduction.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	EmployeeID   id.ID  `db:"employee_id" json:"employeeId"`
	EmployeeName string `db:"employee_name" json:"employeeName"`

	BaseSalary types.Money `db:"base_salary" json:"baseSalary"`
	Overtime   types.Money `db:"overtime" json:"overtime"`
	Gross      types.Money `db:"gross" json:"gross"`

	Tax       types.Money `db:"tax" json:"tax"`
	Insurance types.Money `db:"insurance" json:"insurance"`

	// AdvanceID and AdvanceDeduction are filled by the advance book:
	// at most one installment per advance per payroll month, FIFO.
	AdvanceID        *id.ID      `db:"advance_id" json:"advanceId,omitempty"`
	AdvanceDeduction types.Money `db:"advance_deduction" json:"advanceDeduction"`

	Net types.Money `db:"net" json:"net"`
}

func (l *Line) recalc() {
	l.Gross = types.RoundMoney(l.BaseSalary.Add(l.Overtime))
	l.Net = types.RoundMoney(l.Gross.Sub(l.Tax).Sub(l.Insurance).Sub(l.AdvanceDeduction))
}

// Run is a monthly payroll run document.
type Run struct {
	entity.Document

	// Month is the payroll month (first day, UTC)
	Month time.Time `db:"month" json:"month"`

	// BankAccountCode overrides the configured default bank account
	BankAccountCode string `db:"bank_account_code" json:"bankAccountCode,omitempty"`

	// Totals (recalculated from lines)
	GrossTotal     types.Money `db:"gross_total" json:"grossTotal"`
	TaxTotal       types.Money `db:"tax_total" json:"taxTotal"`
	InsuranceTotal types.Money `db:"insurance_total" json:"insuranceTotal"`
	AdvanceTotal   types.Money `db:"advance_total" json:"advanceTotal"`
	NetTotal       types.Money `db:"net_total" json:"netTotal"`

	// Table part
	Lines []Line `db:"-" json:"lines"`

	// Bound by the service before confirmation; never persisted.
	accounts        config.Accounts
	applyAdvances   func(ctx context.Context) error
	restoreAdvances func(ctx context.Context) error
}

// NewRun creates a draft payroll run for the given month.
func NewRun(month time.Time) *Run {
	return &Run{
		Document: entity.NewDocument(),
		Month:    time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddLine appends an employee line and recalculates totals.
func (r *Run) AddLine(employeeID id.ID, name string, base, overtime, tax, insurance types.Money) {
	l := Line{
		LineID:       id.New(),
		LineNo:       len(r.Lines) + 1,
		EmployeeID:   employeeID,
		EmployeeName: name,
		BaseSalary:   base,
		Overtime:     overtime,
		Tax:          tax,
		Insurance:    insurance,
	}
	l.recalc()
	r.Lines = append(r.Lines, l)
	r.RecalculateTotals()
}

// SetAdvanceDeduction records the installment deducted for a line.
func (r *Run) SetAdvanceDeduction(lineNo int, advanceID id.ID, amount types.Money) {
	for i := range r.Lines {
		if r.Lines[i].LineNo == lineNo {
			r.Lines[i].AdvanceID = &advanceID
			r.Lines[i].AdvanceDeduction = amount
			r.Lines[i].recalc()
			break
		}
	}
	r.RecalculateTotals()
}

// RecalculateTotals refreshes header totals from the lines.
func (r *Run) RecalculateTotals() {
	r.GrossTotal = types.ZeroMoney()
	r.TaxTotal = types.ZeroMoney()
	r.InsuranceTotal = types.ZeroMoney()
	r.AdvanceTotal = types.ZeroMoney()
	r.NetTotal = types.ZeroMoney()

	for _, l := range r.Lines {
		r.GrossTotal = r.GrossTotal.Add(l.Gross)
		r.TaxTotal = r.TaxTotal.Add(l.Tax)
		r.InsuranceTotal = r.InsuranceTotal.Add(l.Insurance)
		r.AdvanceTotal = r.AdvanceTotal.Add(l.AdvanceDeduction)
		r.NetTotal = r.NetTotal.Add(l.Net)
	}
}

// Validate implements entity.Validatable.
func (r *Run) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if r.Month.IsZero() {
		return apperror.NewValidation("payroll month is required").
			WithDetail("field", "month")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one employee line is required").
			WithDetail("field", "lines")
	}
	for _, l := range r.Lines {
		if id.IsNil(l.EmployeeID) {
			return apperror.NewValidation("employee is required").
				WithDetail("lineNo", l.LineNo)
		}
		if !l.Gross.IsPositive() {
			return apperror.NewValidation("gross pay must be positive").
				WithDetail("lineNo", l.LineNo)
		}
		if l.Tax.IsNegative() || l.Insurance.IsNegative() || l.AdvanceDeduction.IsNegative() {
			return apperror.NewValidation("deductions must not be negative").
				WithDetail("lineNo", l.LineNo)
		}
		if l.Net.IsNegative() {
			return apperror.NewValidation("net pay must not be negative").
				WithDetail("lineNo", l.LineNo).
				WithDetail("net", l.Net.String())
		}
	}
	return nil
}

// GetID returns the document ID.
func (r *Run) GetID() id.ID { return r.ID }

// GetNumber returns the document number.
func (r *Run) GetNumber() string { return r.Number }

// GetDate returns the business date.
func (r *Run) GetDate() time.Time { return r.Date }

// DocumentKind implements posting.Postable.
func (r *Run) DocumentKind() string { return documents.KindPayrollRun }

// CanConfirm reports whether the run is a confirmable draft.
func (r *Run) CanConfirm() error {
	if r.Status != entity.StatusDraft {
		return apperror.NewInvariantViolation("only draft documents can be confirmed").
			WithDetail("document_id", r.ID.String()).
			WithDetail("status", string(r.Status))
	}
	return nil
}

// MovementSpecs implements posting.Postable. Payroll moves no stock.
func (r *Run) MovementSpecs(ctx context.Context) ([]inventory.MovementSpec, error) {
	return nil, nil
}

// BankCode returns the bank account code the net pay leaves from.
func (r *Run) BankCode() string {
	if r.BankAccountCode != "" {
		return r.BankAccountCode
	}
	return r.accounts.DefaultBank
}

// JournalDraft maps the run to one aggregate entry: Dr salary expense for
// total gross; Cr tax payable, insurance payable, advances receivable, and
// bank for the withholdings and net pay.
func (r *Run) JournalDraft(ctx context.Context, applied []entity.StockMovement) (journal.ComposeInput, error) {
	lines := []journal.LineInput{{
		AccountCode: r.accounts.SalaryExpense,
		Debit:       r.GrossTotal,
	}}

	credit := func(code string, amount types.Money) {
		if amount.IsPositive() {
			lines = append(lines, journal.LineInput{AccountCode: code, Credit: amount})
		}
	}
	credit(r.accounts.TaxPayable, r.TaxTotal)
	credit(r.accounts.InsurancePayable, r.InsuranceTotal)
	credit(r.accounts.AdvanceReceivable, r.AdvanceTotal)
	credit(r.BankCode(), r.NetTotal)

	lines, err := documents.BalanceWithRounding(lines, r.accounts.RoundingDifference)
	if err != nil {
		return journal.ComposeInput{}, err
	}

	return journal.ComposeInput{
		Date:        r.Date,
		Description: fmt.Sprintf("Payroll run %s (%s)", r.Number, r.Month.Format("2006-01")),
		Source:      journal.SourceRef{Kind: documents.KindPayrollRun, ID: r.ID, Number: r.Number},
		CreatedBy:   r.CreatedBy,
		Lines:       lines,
	}, nil
}

// ApplyConfirmEffects deducts the bound advance installments.
func (r *Run) ApplyConfirmEffects(ctx context.Context) error {
	if r.applyAdvances == nil {
		return nil
	}
	return r.applyAdvances(ctx)
}

// ApplyReverseEffects restores the deducted installments.
func (r *Run) ApplyReverseEffects(ctx context.Context) error {
	if r.restoreAdvances == nil {
		return nil
	}
	return r.restoreAdvances(ctx)
}

var _ posting.Postable = (*Run)(nil)
var _ posting.SideEffector = (*Run)(nil)
