// Package journal provides the double-entry journal engine.
package journal

import (
	"context"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/partners"
)

// EntryStatus is the lifecycle state of a journal entry.
type EntryStatus string

const (
	EntryDraft    EntryStatus = "draft"
	EntryPosted   EntryStatus = "posted"
	EntryReversed EntryStatus = "reversed"
)

// SourceRef links an entry back to the business document it posts.
// A zero SourceRef marks a manual entry.
type SourceRef struct {
	Kind   string `db:"source_kind" json:"sourceKind,omitempty"`
	ID     id.ID  `db:"source_id" json:"sourceId,omitempty"`
	Number string `db:"source_number" json:"sourceNumber,omitempty"`
}

// IsZero reports whether the entry is manual.
func (r SourceRef) IsZero() bool {
	return r.Kind == "" && id.IsNil(r.ID)
}

// PartnerRef tags a line posting to a partner control account.
type PartnerRef struct {
	ID   id.ID         `json:"id"`
	Kind partners.Kind `json:"kind"`
}

// InventoryRef tags a line posting to the inventory control account.
type InventoryRef struct {
	ProductID   id.ID `json:"productId"`
	WarehouseID id.ID `json:"warehouseId"`
}

// Line is one side of a posting. Exactly one of Debit/Credit is non-zero.
type Line struct {
	ID      id.ID `db:"id" json:"id"`
	EntryID id.ID `db:"entry_id" json:"entryId"`
	LineNo  int   `db:"line_no" json:"lineNo"`

	AccountID id.ID `db:"account_id" json:"accountId"`

	Debit  types.Money `db:"debit" json:"debit"`
	Credit types.Money `db:"credit" json:"credit"`

	// Partner is set when the line posts to a partner control account
	Partner *PartnerRef `json:"partner,omitempty"`

	// Inventory is set when the line posts to the inventory control account
	Inventory *InventoryRef `json:"inventory,omitempty"`
}

// IsDebit reports whether the line carries the debit side.
func (l *Line) IsDebit() bool {
	return l.Debit.IsPositive()
}

// Amount returns the non-zero side.
func (l *Line) Amount() types.Money {
	if l.IsDebit() {
		return l.Debit
	}
	return l.Credit
}

// Entry is one balanced journal entry. Posted entries are immutable; the
// only retraction mechanism is a linked reversal entry.
type Entry struct {
	entity.BaseDocument

	// Number is assigned at posting, strictly monotonic, gapless (0 while draft)
	Number int64 `db:"number" json:"number"`

	Date        time.Time `db:"date" json:"date"`
	Description string    `db:"description" json:"description"`

	Source SourceRef `json:"source"`

	Status EntryStatus `db:"status" json:"status"`

	// ReversalOf links a reversing entry to the entry it retracts
	ReversalOf *id.ID `db:"reversal_of" json:"reversalOf,omitempty"`

	PostedAt *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// NewEntry creates a draft entry.
func NewEntry(date time.Time, description string, source SourceRef) *Entry {
	return &Entry{
		BaseDocument: entity.NewBaseDocument(),
		Date:         date,
		Description:  description,
		Source:       source,
		Status:       EntryDraft,
	}
}

// TotalDebit sums the debit side.
func (e *Entry) TotalDebit() types.Money {
	total := types.ZeroMoney()
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side.
func (e *Entry) TotalCredit() types.Money {
	total := types.ZeroMoney()
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// Validate checks the shape invariants that need no database access:
// at least two lines, every line strictly one-sided, debits equal credits
// within the rounding tolerance, and a strictly positive total.
func (e *Entry) Validate(ctx context.Context) error {
	if e.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	if len(e.Lines) < 2 {
		return apperror.NewValidation("entry requires at least two lines").
			WithDetail("line_count", len(e.Lines))
	}

	for i, l := range e.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return apperror.NewValidation("line amounts must not be negative").
				WithDetail("line_no", i+1)
		}
		debitSet := l.Debit.IsPositive()
		creditSet := l.Credit.IsPositive()
		if debitSet == creditSet {
			return apperror.NewInvariantViolation("line must carry exactly one of debit or credit").
				WithDetail("line_no", i+1).
				WithDetail("debit", l.Debit.String()).
				WithDetail("credit", l.Credit.String())
		}
		if l.Partner != nil && l.Inventory != nil {
			return apperror.NewValidation("line cannot reference both a partner and inventory").
				WithDetail("line_no", i+1)
		}
	}

	totalDebit := e.TotalDebit()
	totalCredit := e.TotalCredit()
	if !types.WithinTolerance(totalDebit, totalCredit) {
		return apperror.NewInvariantViolation("entry does not balance").
			WithDetail("total_debit", totalDebit.String()).
			WithDetail("total_credit", totalCredit.String())
	}
	if !totalDebit.IsPositive() {
		return apperror.NewInvariantViolation("entry total must be positive")
	}

	return nil
}

// IsPosted reports whether the entry affects balances.
func (e *Entry) IsPosted() bool {
	return e.Status == EntryPosted
}
