// Package posting integrates documents with the inventory ledger and the
// journal engine. Confirming a document is all-or-nothing: movements, the
// journal entry, balance updates, and the document status commit together.
package posting

import (
	"context"
	"time"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
)

// Postable is implemented by documents the engine can confirm and reverse.
type Postable interface {
	entity.Validatable

	// GetID returns the document ID.
	GetID() id.ID

	// DocumentKind returns the stable kind string used in source
	// references ("purchase_invoice", "payroll_run", ...).
	DocumentKind() string

	// GetNumber returns the document number.
	GetNumber() string

	// GetDate returns the business date.
	GetDate() time.Time

	// CanConfirm reports whether the document is a confirmable draft.
	CanConfirm() error

	// IsConfirmed reports whether the document already posted.
	IsConfirmed() bool

	// MovementSpecs returns the stock movements the document causes, in
	// application order (OUT before IN for transfers). Documents without
	// stock effects return nil.
	MovementSpecs(ctx context.Context) ([]inventory.MovementSpec, error)

	// JournalDraft builds the entry for the document. Applied movements
	// carry the captured unit costs the draft needs for COGS lines.
	JournalDraft(ctx context.Context, applied []entity.StockMovement) (journal.ComposeInput, error)

	// MarkConfirmed records the entry number and flips status.
	MarkConfirmed(entryNumber int64)

	// MarkReversed flips a confirmed document to reversed.
	MarkReversed()
}

// SideEffector is implemented by documents with extra in-transaction effects
// beyond stock and the entry (payroll advance installments). Effects run
// inside the confirming or reversing transaction, never on replay.
type SideEffector interface {
	ApplyConfirmEffects(ctx context.Context) error
	ApplyReverseEffects(ctx context.Context) error
}

// Result reports the outcome of a confirmation.
type Result struct {
	EntryNumber int64                  `json:"entryNumber"`
	Movements   []entity.StockMovement `json:"movements,omitempty"`

	// Replayed is true when the document was already confirmed and the
	// prior entry is returned as a no-op.
	Replayed bool `json:"replayed"`
}

// Reversal reports the outcome of a document reversal.
type Reversal struct {
	ReversalEntryNumber int64                  `json:"reversalEntryNumber"`
	Movements           []entity.StockMovement `json:"movements,omitempty"`
}
