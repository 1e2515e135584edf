package payments

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/domain/journal"
	"pressledger/pkg/logger"
)

// AdvanceBook manages payroll advances: granting the cash out, selecting
// FIFO installments for payroll runs, and applying or restoring deductions.
type AdvanceBook struct {
	repo      AdvanceRepository
	journal   *journal.Engine
	audit     audit.Recorder
	txManager tx.Manager
	cfg       config.Config
}

// NewAdvanceBook creates the advance book.
func NewAdvanceBook(
	repo AdvanceRepository,
	journalEngine *journal.Engine,
	auditRec audit.Recorder,
	txManager tx.Manager,
	cfg config.Config,
) *AdvanceBook {
	return &AdvanceBook{
		repo:      repo,
		journal:   journalEngine,
		audit:     auditRec,
		txManager: txManager,
		cfg:       cfg,
	}
}

// Grant disburses an advance: posts Dr advances receivable / Cr cash for the
// total and opens the installment schedule. Idempotent on the advance id.
func (b *AdvanceBook) Grant(ctx context.Context, adv *Advance) error {
	if err := adv.Validate(ctx); err != nil {
		return err
	}

	return b.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		entry, err := b.journal.Compose(ctx, journal.ComposeInput{
			Date:        adv.RequestDate,
			Description: fmt.Sprintf("Payroll advance for %s", adv.EmployeeName),
			Source:      journal.SourceRef{Kind: AdvanceSourceKind, ID: adv.ID},
			CreatedBy:   adv.CreatedBy,
			Lines: []journal.LineInput{
				{AccountCode: b.cfg.Accounts.AdvanceReceivable, Debit: adv.TotalAmount},
				{AccountCode: b.cfg.Accounts.DefaultCash, Credit: adv.TotalAmount},
			},
		})
		if err != nil {
			return err
		}
		entry, replayed, err := b.journal.Post(ctx, entry)
		if err != nil {
			return err
		}
		if replayed {
			logger.Info(ctx, "advance grant replayed", "advance_id", adv.ID)
			return nil
		}

		adv.EntryNumber = &entry.Number
		if err := b.repo.Create(ctx, adv); err != nil {
			return fmt.Errorf("create advance: %w", err)
		}

		return b.audit.Record(ctx, audit.Record{
			EntityType: "payroll_advance",
			EntityID:   adv.ID,
			Action:     audit.ActionCreate,
			Changes: map[string]any{
				"employee_id":  adv.EmployeeID.String(),
				"total":        adv.TotalAmount.String(),
				"installments": adv.InstallmentsCount,
				"entry_number": entry.Number,
			},
		})
	})
}

// NextDeduction implements payroll.AdvanceDeductor: the employee's oldest
// open advance not yet deducted in the month, at its due amount.
func (b *AdvanceBook) NextDeduction(ctx context.Context, employeeID id.ID, month time.Time) (*payroll.AdvanceDeduction, error) {
	open, err := b.repo.ListOpenByEmployee(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list open advances: %w", err)
	}

	for _, adv := range open {
		if adv.DeductedInMonth(month) {
			continue
		}
		due := adv.DueAmount()
		if !due.IsPositive() {
			continue
		}
		return &payroll.AdvanceDeduction{AdvanceID: adv.ID, Amount: due}, nil
	}
	return nil, nil
}

// Deduct implements payroll.AdvanceDeductor. Applies one installment under
// the advance row lock; a second deduction in the same month or a stale
// amount is rejected, failing the payroll confirmation.
func (b *AdvanceBook) Deduct(ctx context.Context, advanceID id.ID, month time.Time, amount types.Money) error {
	adv, err := b.repo.GetForUpdate(ctx, advanceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("payroll_advance", advanceID.String())
		}
		return err
	}

	if adv.Status != AdvanceOpen {
		return apperror.NewInvariantViolation("advance is not open").
			WithDetail("advance_id", adv.ID.String()).
			WithDetail("status", string(adv.Status))
	}
	if adv.DeductedInMonth(month) {
		return apperror.NewInvariantViolation("advance already deducted this month").
			WithDetail("advance_id", adv.ID.String()).
			WithDetail("month", month.Format("2006-01"))
	}
	if !amount.Equal(adv.DueAmount()) {
		return apperror.NewConcurrentModification("payroll_advance", adv.ID.String())
	}

	adv.PaidInstallments++
	adv.RemainingAmount = types.RoundMoney(adv.RemainingAmount.Sub(amount))
	deductionMonth := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	adv.LastDeductionMonth = &deductionMonth
	if !adv.RemainingAmount.IsPositive() {
		adv.RemainingAmount = types.ZeroMoney()
		adv.Status = AdvanceCompleted
	}
	adv.Touch()

	if err := b.repo.Update(ctx, adv); err != nil {
		return fmt.Errorf("update advance: %w", err)
	}

	return b.audit.Record(ctx, audit.Record{
		EntityType: "payroll_advance",
		EntityID:   adv.ID,
		Action:     audit.ActionUpdate,
		Changes: map[string]any{
			"deducted":          amount.String(),
			"month":             month.Format("2006-01"),
			"paid_installments": adv.PaidInstallments,
			"remaining":         adv.RemainingAmount.String(),
		},
	})
}

// Restore implements payroll.AdvanceDeductor: undoes one deduction when a
// payroll run is reversed, reopening a completed advance.
func (b *AdvanceBook) Restore(ctx context.Context, advanceID id.ID, amount types.Money) error {
	adv, err := b.repo.GetForUpdate(ctx, advanceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("payroll_advance", advanceID.String())
		}
		return err
	}

	if adv.PaidInstallments <= 0 {
		return apperror.NewInvariantViolation("advance has no deductions to restore").
			WithDetail("advance_id", adv.ID.String())
	}

	adv.PaidInstallments--
	adv.RemainingAmount = types.RoundMoney(adv.RemainingAmount.Add(amount))
	adv.LastDeductionMonth = nil
	adv.Status = AdvanceOpen
	adv.Touch()

	if err := b.repo.Update(ctx, adv); err != nil {
		return fmt.Errorf("update advance: %w", err)
	}

	return b.audit.Record(ctx, audit.Record{
		EntityType: "payroll_advance",
		EntityID:   adv.ID,
		Action:     audit.ActionUpdate,
		Changes: map[string]any{
			"restored":          amount.String(),
			"paid_installments": adv.PaidInstallments,
			"remaining":         adv.RemainingAmount.String(),
		},
	})
}

// GetByID returns an advance.
func (b *AdvanceBook) GetByID(ctx context.Context, advanceID id.ID) (*Advance, error) {
	adv, err := b.repo.GetByID(ctx, advanceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("payroll_advance", advanceID.String())
		}
		return nil, err
	}
	return adv, nil
}

// List returns advances matching the filter.
func (b *AdvanceBook) List(ctx context.Context, f AdvanceListFilter) (domain.ListResult[*Advance], error) {
	return b.repo.List(ctx, f)
}

var _ payroll.AdvanceDeductor = (*AdvanceBook)(nil)
