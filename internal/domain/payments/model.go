// Package payments provides payment allocation against invoices and the
// payroll advance book.
package payments

import (
	"context"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// Method is how a payment moves.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheck        Method = "check"
)

// Status is the payment lifecycle.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoided Status = "voided"
)

// NumberPrefix for generated payment numbers.
const NumberPrefix = "PMT"

// SourceKind tags payment journal entries; posting is idempotent on
// (SourceKind, payment ID).
const SourceKind = "payment"

// Payment settles part of one invoice. Direction follows the invoice: money
// out against purchase invoices, money in against sale invoices.
type Payment struct {
	entity.BaseDocument

	Number string `db:"number" json:"number"`

	// Invoice reference
	InvoiceKind string `db:"invoice_kind" json:"invoiceKind"`
	InvoiceID   id.ID  `db:"invoice_id" json:"invoiceId"`

	Amount types.Money `db:"amount" json:"amount"`
	Date   time.Time   `db:"date" json:"date"`
	Method Method      `db:"method" json:"method"`

	// AccountCode is the cash/bank account the money moves through
	AccountCode string `db:"account_code" json:"accountCode"`

	// Reference is an optional external reference (check number, transfer id)
	Reference string `db:"reference" json:"reference,omitempty"`

	Status      Status `db:"status" json:"status"`
	EntryNumber *int64 `db:"entry_number" json:"entryNumber,omitempty"`
}

// New creates a draft payment against an invoice.
func New(invoiceKind string, invoiceID id.ID, amount types.Money, date time.Time, method Method) *Payment {
	return &Payment{
		BaseDocument: entity.NewBaseDocument(),
		InvoiceKind:  invoiceKind,
		InvoiceID:    invoiceID,
		Amount:       amount,
		Date:         date,
		Method:       method,
		Status:       StatusDraft,
	}
}

// Validate implements entity.Validatable.
func (p *Payment) Validate(ctx context.Context) error {
	if p.InvoiceKind == "" || id.IsNil(p.InvoiceID) {
		return apperror.NewValidation("invoice reference is required").
			WithDetail("field", "invoice")
	}
	if !p.Amount.IsPositive() {
		return apperror.NewValidation("payment amount must be positive").
			WithDetail("amount", p.Amount.String())
	}
	if p.Date.IsZero() {
		return apperror.NewValidation("payment date is required").
			WithDetail("field", "date")
	}
	switch p.Method {
	case MethodCash, MethodBankTransfer, MethodCheck:
	default:
		return apperror.NewValidation("unknown payment method").
			WithDetail("method", string(p.Method))
	}
	return nil
}

// IsPosted reports whether the payment has a posted entry.
func (p *Payment) IsPosted() bool {
	return p.Status == StatusPosted
}
