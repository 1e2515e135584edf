package journal

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/periods"
	"pressledger/pkg/logger"
	"pressledger/pkg/numerator"
)

// entryNumberKey is the sys_sequences key for journal entry numbers.
const entryNumberKey = "journal_entry"

// LineInput is one line of a draft entry addressed by account code.
type LineInput struct {
	AccountCode string
	Debit       types.Money
	Credit      types.Money
	Partner     *PartnerRef
	Inventory   *InventoryRef
}

// ComposeInput describes a draft entry to be composed.
type ComposeInput struct {
	Date        time.Time
	Description string
	Source      SourceRef
	CreatedBy   string
	Lines       []LineInput
}

// Engine creates, posts, and reverses balanced journal entries. It is the
// only writer of account and partner materialised balances.
type Engine struct {
	repo      Repository
	accounts  *accounts.Service
	partners  partners.Repository
	periods   *periods.Service
	numerator *numerator.Service
	audit     audit.Recorder
	txManager tx.Manager
}

// NewEngine creates a new journal engine.
func NewEngine(
	repo Repository,
	accountsSvc *accounts.Service,
	partnersRepo partners.Repository,
	periodsSvc *periods.Service,
	num *numerator.Service,
	auditRec audit.Recorder,
	txManager tx.Manager,
) *Engine {
	return &Engine{
		repo:      repo,
		accounts:  accountsSvc,
		partners:  partnersRepo,
		periods:   periodsSvc,
		numerator: num,
		audit:     auditRec,
		txManager: txManager,
	}
}

// Compose builds a validated draft entry from account codes. The draft is
// not persisted; Post persists and applies it atomically.
func (e *Engine) Compose(ctx context.Context, input ComposeInput) (*Entry, error) {
	entry := NewEntry(input.Date, input.Description, input.Source)
	entry.CreatedBy = input.CreatedBy
	entry.UpdatedBy = input.CreatedBy

	for i, li := range input.Lines {
		acc, err := e.accounts.Resolve(ctx, li.AccountCode)
		if err != nil {
			return nil, err
		}
		if err := e.checkLineAccount(ctx, acc, li.Partner, li.Inventory, i+1); err != nil {
			return nil, err
		}

		entry.Lines = append(entry.Lines, Line{
			ID:        id.New(),
			EntryID:   entry.ID,
			LineNo:    i + 1,
			AccountID: acc.ID,
			Debit:     types.RoundMoney(li.Debit),
			Credit:    types.RoundMoney(li.Credit),
			Partner:   li.Partner,
			Inventory: li.Inventory,
		})
	}

	if err := entry.Validate(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

// checkLineAccount enforces the per-line account rules: posting allowed
// (leaf, active) and control references matching the account's control flag.
func (e *Engine) checkLineAccount(ctx context.Context, acc *accounts.Account, partner *PartnerRef, inv *InventoryRef, lineNo int) error {
	if err := e.accounts.IsPostingAllowed(ctx, acc); err != nil {
		return err
	}

	if acc.IsControl {
		if partner == nil && inv == nil {
			return apperror.NewInvariantViolation("control account line requires a partner or inventory reference").
				WithDetail("line_no", lineNo).
				WithDetail("account", acc.Code)
		}
	} else if partner != nil || inv != nil {
		return apperror.NewInvariantViolation("non-control account line must not carry a subsidiary reference").
			WithDetail("line_no", lineNo).
			WithDetail("account", acc.Code)
	}

	return nil
}

// Post persists a draft entry and applies its balance effects in one
// transaction. Idempotent on the source reference: posting the same source
// twice returns the original entry with replayed=true.
//
// The entry number is drawn from sys_sequences inside the transaction, so a
// rollback releases the number together with the rows: numbers stay gapless.
func (e *Engine) Post(ctx context.Context, entry *Entry) (*Entry, bool, error) {
	if entry.Status != EntryDraft {
		return nil, false, apperror.NewInvariantViolation("only draft entries can be posted").
			WithDetail("status", string(entry.Status))
	}
	if err := entry.Validate(ctx); err != nil {
		return nil, false, err
	}

	var (
		result   *Entry
		replayed bool
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if !entry.Source.IsZero() {
			existing, err := e.repo.GetBySource(ctx, entry.Source.Kind, entry.Source.ID)
			if err != nil && !apperror.IsNotFound(err) {
				return err
			}
			if existing != nil {
				result = existing
				replayed = true
				return nil
			}
		}

		// Lock the period row; a concurrent close waits for this commit.
		if _, err := e.periods.ResolveOpenForDateForUpdate(ctx, entry.Date); err != nil {
			return err
		}

		number, err := e.numerator.NextRaw(ctx, entryNumberKey)
		if err != nil {
			return fmt.Errorf("assign entry number: %w", err)
		}

		now := time.Now().UTC()
		entry.Number = number
		entry.Status = EntryPosted
		entry.PostedAt = &now

		if err := e.repo.Create(ctx, entry); err != nil {
			return fmt.Errorf("create entry: %w", err)
		}

		if err := e.applyBalances(ctx, entry); err != nil {
			return err
		}

		if err := e.audit.Record(ctx, audit.Record{
			EntityType: "journal_entry",
			EntityID:   entry.ID,
			Action:     audit.ActionPost,
			Changes: map[string]any{
				"number":       entry.Number,
				"source":       entry.Source,
				"total_debit":  entry.TotalDebit().String(),
				"total_credit": entry.TotalCredit().String(),
			},
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		result = entry
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if replayed {
		logger.Info(ctx, "entry posting replayed",
			"number", result.Number,
			"source_kind", entry.Source.Kind,
			"source_id", entry.Source.ID)
	} else {
		logger.Info(ctx, "entry posted",
			"number", result.Number,
			"date", result.Date.Format("2006-01-02"))
	}

	return result, replayed, nil
}

// Reverse creates a linked entry with debit/credit swapped and marks both
// entries reversed. Reversing an already-reversed entry is rejected.
func (e *Engine) Reverse(ctx context.Context, entryID id.ID, reason string) (*Entry, error) {
	var reversal *Entry

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		orig, err := e.repo.GetByIDForUpdate(ctx, entryID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("journal_entry", entryID.String())
			}
			return err
		}

		if orig.Status != EntryPosted {
			return apperror.NewInvariantViolation("only posted entries can be reversed").
				WithDetail("number", orig.Number).
				WithDetail("status", string(orig.Status))
		}

		// The reversal lands in the original's period; a closed period
		// freezes reversal along with posting.
		if _, err := e.periods.ResolveOpenForDateForUpdate(ctx, orig.Date); err != nil {
			return err
		}

		desc := fmt.Sprintf("Reversal of entry %d", orig.Number)
		if reason != "" {
			desc = fmt.Sprintf("%s: %s", desc, reason)
		}

		reversal = NewEntry(orig.Date, desc, SourceRef{})
		reversal.ReversalOf = &orig.ID
		for _, l := range orig.Lines {
			reversal.Lines = append(reversal.Lines, Line{
				ID:        id.New(),
				EntryID:   reversal.ID,
				LineNo:    l.LineNo,
				AccountID: l.AccountID,
				Debit:     l.Credit,
				Credit:    l.Debit,
				Partner:   l.Partner,
				Inventory: l.Inventory,
			})
		}

		number, err := e.numerator.NextRaw(ctx, entryNumberKey)
		if err != nil {
			return fmt.Errorf("assign entry number: %w", err)
		}

		now := time.Now().UTC()
		reversal.Number = number
		reversal.Status = EntryReversed
		reversal.PostedAt = &now

		if err := e.repo.Create(ctx, reversal); err != nil {
			return fmt.Errorf("create reversal: %w", err)
		}

		// The swapped lines carry the inverse balance effect.
		if err := e.applyBalances(ctx, reversal); err != nil {
			return err
		}

		orig.Status = EntryReversed
		orig.Touch()
		if err := e.repo.UpdateStatus(ctx, orig); err != nil {
			return fmt.Errorf("update original: %w", err)
		}

		return e.audit.Record(ctx, audit.Record{
			EntityType: "journal_entry",
			EntityID:   orig.ID,
			Action:     audit.ActionReverse,
			Changes: map[string]any{
				"number":          orig.Number,
				"reversal_number": reversal.Number,
				"reason":          reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "entry reversed",
		"entry_id", entryID,
		"reversal_number", reversal.Number)

	return reversal, nil
}

// applyBalances moves the materialised account and partner balances for every
// line of the entry. Reversal entries affect balances the same way.
func (e *Engine) applyBalances(ctx context.Context, entry *Entry) error {
	for _, l := range entry.Lines {
		if err := e.accounts.ApplyPosting(ctx, l.AccountID, l.Debit, l.Credit); err != nil {
			return fmt.Errorf("apply account balance (line %d): %w", l.LineNo, err)
		}

		if l.Partner != nil {
			p, err := e.partners.GetForUpdate(ctx, l.Partner.ID)
			if err != nil {
				if apperror.IsNotFound(err) {
					return apperror.NewNotFound("partner", l.Partner.ID.String())
				}
				return err
			}
			if p.ControlAccountID != l.AccountID {
				return apperror.NewInvariantViolation("line account is not the partner's control account").
					WithDetail("line_no", l.LineNo).
					WithDetail("partner", p.Code)
			}

			delta := p.SignedDelta(l.Debit, l.Credit)
			if err := e.partners.ApplyToBalance(ctx, p.ID, delta); err != nil {
				return fmt.Errorf("apply partner balance: %w", err)
			}
		}
	}

	return nil
}

// GetByNumber returns a posted entry by number.
func (e *Engine) GetByNumber(ctx context.Context, number int64) (*Entry, error) {
	entry, err := e.repo.GetByNumber(ctx, number)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("journal_entry", number)
		}
		return nil, err
	}
	return entry, nil
}

// GetBySource returns the entry posted for a source document, if any.
func (e *Engine) GetBySource(ctx context.Context, kind string, sourceID id.ID) (*Entry, error) {
	return e.repo.GetBySource(ctx, kind, sourceID)
}
