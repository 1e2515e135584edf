package posting

import (
	"context"
	"fmt"

	"pressledger/internal/core/actor"
	"pressledger/internal/core/apperror"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
	"pressledger/pkg/logger"
)

// DocumentStore is the slice of document persistence the engine needs:
// re-reading the header under a row lock and saving the status flip. Each
// document service adapts its repository into one of these.
type DocumentStore interface {
	// RefreshForUpdate re-reads the document header with FOR UPDATE into
	// the given document, serialising concurrent confirm/reverse calls.
	RefreshForUpdate(ctx context.Context, doc Postable) error

	// Save persists the document's status, entry number, and version.
	Save(ctx context.Context, doc Postable) error
}

// Engine confirms and reverses documents. One confirmation is one
// transaction: stock movements, the journal entry, materialised balances,
// and the document status commit or roll back together.
type Engine struct {
	ledger    *inventory.Ledger
	journal   *journal.Engine
	audit     audit.Recorder
	txManager tx.Manager
}

// NewEngine creates a new posting engine.
func NewEngine(ledger *inventory.Ledger, journalEngine *journal.Engine, auditRec audit.Recorder, txManager tx.Manager) *Engine {
	return &Engine{
		ledger:    ledger,
		journal:   journalEngine,
		audit:     auditRec,
		txManager: txManager,
	}
}

// Confirm posts a draft document: applies its stock movements, composes and
// posts its journal entry, and flips the document to confirmed.
//
// Idempotent: confirming an already-confirmed document returns the original
// result with Replayed=true. Any other non-draft status is rejected.
func (e *Engine) Confirm(ctx context.Context, store DocumentStore, doc Postable) (*Result, error) {
	var result *Result

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := store.RefreshForUpdate(ctx, doc); err != nil {
			return fmt.Errorf("lock document: %w", err)
		}

		if doc.IsConfirmed() {
			replay, err := e.replayResult(ctx, doc)
			if err != nil {
				return err
			}
			result = replay
			return nil
		}
		if err := doc.CanConfirm(); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		specs, err := doc.MovementSpecs(ctx)
		if err != nil {
			return err
		}
		applied, err := e.ledger.Apply(ctx, specs)
		if err != nil {
			return err
		}

		draft, err := doc.JournalDraft(ctx, applied)
		if err != nil {
			return err
		}
		entry, err := e.journal.Compose(ctx, draft)
		if err != nil {
			return err
		}
		entry, replayed, err := e.journal.Post(ctx, entry)
		if err != nil {
			return err
		}
		if replayed {
			// An entry exists for this source but the document reads as
			// draft; the two stores disagree.
			return apperror.NewInvariantViolation("draft document already has a posted entry").
				WithDetail("document", doc.GetNumber()).
				WithDetail("entry_number", entry.Number)
		}

		doc.MarkConfirmed(entry.Number)
		if err := store.Save(ctx, doc); err != nil {
			return fmt.Errorf("save document: %w", err)
		}

		if se, ok := doc.(SideEffector); ok {
			if err := se.ApplyConfirmEffects(ctx); err != nil {
				return err
			}
		}

		if err := e.audit.Record(ctx, audit.Record{
			EntityType: doc.DocumentKind(),
			EntityID:   doc.GetID(),
			Action:     audit.ActionConfirm,
			Changes: map[string]any{
				"number":       doc.GetNumber(),
				"entry_number": entry.Number,
			},
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		result = &Result{
			EntryNumber: entry.Number,
			Movements:   applied,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		logger.Info(ctx, "document confirmation replayed",
			"kind", doc.DocumentKind(),
			"number", doc.GetNumber(),
			"entry_number", result.EntryNumber)
	} else {
		logger.Info(ctx, "document confirmed",
			"kind", doc.DocumentKind(),
			"number", doc.GetNumber(),
			"entry_number", result.EntryNumber)
	}

	return result, nil
}

// replayResult rebuilds the Confirm result for an already-confirmed document.
func (e *Engine) replayResult(ctx context.Context, doc Postable) (*Result, error) {
	entry, err := e.journal.GetBySource(ctx, doc.DocumentKind(), doc.GetID())
	if err != nil {
		return nil, fmt.Errorf("load posted entry: %w", err)
	}
	return &Result{
		EntryNumber: entry.Number,
		Replayed:    true,
	}, nil
}

// Reverse retracts a confirmed document: reverses its journal entry, writes
// compensating inverse stock movements, and flips the document to reversed.
// All in one transaction; the document row lock serialises with Confirm.
func (e *Engine) Reverse(ctx context.Context, store DocumentStore, doc Postable, reason string) (*Reversal, error) {
	var result *Reversal

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := store.RefreshForUpdate(ctx, doc); err != nil {
			return fmt.Errorf("lock document: %w", err)
		}

		if !doc.IsConfirmed() {
			return apperror.NewInvariantViolation("only confirmed documents can be reversed").
				WithDetail("document", doc.GetNumber())
		}

		entry, err := e.journal.GetBySource(ctx, doc.DocumentKind(), doc.GetID())
		if err != nil {
			return fmt.Errorf("load posted entry: %w", err)
		}

		reversal, err := e.journal.Reverse(ctx, entry.ID, reason)
		if err != nil {
			return err
		}

		movements, err := e.ledger.ReverseDocument(ctx, doc.DocumentKind(), doc.GetID(), actor.FromContext(ctx).ID)
		if err != nil {
			return err
		}

		doc.MarkReversed()
		if err := store.Save(ctx, doc); err != nil {
			return fmt.Errorf("save document: %w", err)
		}

		if se, ok := doc.(SideEffector); ok {
			if err := se.ApplyReverseEffects(ctx); err != nil {
				return err
			}
		}

		if err := e.audit.Record(ctx, audit.Record{
			EntityType: doc.DocumentKind(),
			EntityID:   doc.GetID(),
			Action:     audit.ActionReverse,
			Changes: map[string]any{
				"number":          doc.GetNumber(),
				"reversal_number": reversal.Number,
				"reason":          reason,
			},
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		result = &Reversal{
			ReversalEntryNumber: reversal.Number,
			Movements:           movements,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document reversed",
		"kind", doc.DocumentKind(),
		"number", doc.GetNumber(),
		"reversal_number", result.ReversalEntryNumber)

	return result, nil
}
