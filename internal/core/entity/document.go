package entity

import (
	"context"
	"time"

	"pressledger/internal/core/apperror"
)

// DocumentStatus is the lifecycle state of a business document.
type DocumentStatus string

const (
	// StatusDraft - editable, has no ledger effects
	StatusDraft DocumentStatus = "draft"
	// StatusConfirmed - posted to the ledgers via its journal entry
	StatusConfirmed DocumentStatus = "confirmed"
	// StatusCancelled - abandoned before confirmation
	StatusCancelled DocumentStatus = "cancelled"
	// StatusReversed - confirmed then retracted by a reversing entry
	StatusReversed DocumentStatus = "reversed"
)

// Document is the base type for business documents (invoices, returns,
// payroll runs). A document references its journal entry by number once
// confirmed; the entry references the document back by (kind, id). There is
// no direct pointer from entry internals to document internals.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within kind)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Status tracks the document lifecycle
	Status DocumentStatus `db:"status" json:"status"`

	// EntryNumber is the journal entry created on confirmation (nil while draft)
	EntryNumber *int64 `db:"entry_number" json:"entryNumber,omitempty"`

	// Note is an optional user comment
	Note string `db:"note" json:"note,omitempty"`
}

// NewDocument creates a new draft Document with generated ID.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
		Status:       StatusDraft,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// CanModify checks if the document can be modified.
// Confirmed documents require reversal; deletion of posted state is forbidden.
func (d *Document) CanModify() error {
	if d.Status != StatusDraft {
		return apperror.NewDocumentPosted(d.ID.String()).
			WithDetail("status", string(d.Status))
	}
	return nil
}

// CanCancel checks if the document can be cancelled (draft only).
func (d *Document) CanCancel() error {
	if d.Status != StatusDraft {
		return apperror.NewInvariantViolation("only draft documents can be cancelled").
			WithDetail("document_id", d.ID.String()).
			WithDetail("status", string(d.Status))
	}
	return nil
}

// MarkConfirmed records the posting reference and flips the status.
func (d *Document) MarkConfirmed(entryNumber int64) {
	d.Status = StatusConfirmed
	d.EntryNumber = &entryNumber
	d.Touch()
}

// MarkReversed flips a confirmed document to reversed.
func (d *Document) MarkReversed() {
	d.Status = StatusReversed
	d.Touch()
}

// MarkCancelled flips a draft document to cancelled.
func (d *Document) MarkCancelled() {
	d.Status = StatusCancelled
	d.Touch()
}

// IsConfirmed returns true if the document has a posted entry.
func (d *Document) IsConfirmed() bool {
	return d.Status == StatusConfirmed
}
