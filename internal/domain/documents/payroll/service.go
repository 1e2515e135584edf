package payroll

import (
	"context"
	"fmt"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/core/types"
	"pressledger/internal/domain"
	"pressledger/internal/domain/posting"
	"pressledger/pkg/logger"
	"pressledger/pkg/numerator"
)

// Service provides payroll run operations.
type Service struct {
	repo      Repository
	engine    *posting.Engine
	advances  AdvanceDeductor
	numerator *numerator.Service
	txManager tx.Manager
	cfg       config.Config
	hooks     *domain.HookRegistry[*Run]
}

// NewService creates the payroll service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	advances AdvanceDeductor,
	num *numerator.Service,
	txManager tx.Manager,
	cfg config.Config,
) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		advances:  advances,
		numerator: num,
		txManager: txManager,
		cfg:       cfg,
		hooks:     domain.NewHookRegistry[*Run](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Run] {
	return s.hooks
}

// PopulateAdvances fills in one FIFO advance installment per employee line.
// Called on drafts; the selections are re-checked when the run confirms.
func (s *Service) PopulateAdvances(ctx context.Context, run *Run) error {
	if err := run.CanModify(); err != nil {
		return err
	}
	for i := range run.Lines {
		l := &run.Lines[i]
		ded, err := s.advances.NextDeduction(ctx, l.EmployeeID, run.Month)
		if err != nil {
			return fmt.Errorf("select advance (line %d): %w", l.LineNo, err)
		}
		if ded == nil {
			l.AdvanceID = nil
			l.AdvanceDeduction = types.ZeroMoney()
			l.recalc()
			continue
		}
		advanceID := ded.AdvanceID
		l.AdvanceID = &advanceID
		l.AdvanceDeduction = ded.Amount
		l.recalc()
	}
	run.RecalculateTotals()
	return nil
}

// Create persists a new draft run, assigning a number if absent. At most one
// confirmed run may exist per month; drafts for a covered month are rejected
// up front.
func (s *Service) Create(ctx context.Context, run *Run) error {
	if err := s.hooks.RunBeforeCreate(ctx, run); err != nil {
		return err
	}
	if err := run.Validate(ctx); err != nil {
		return err
	}

	exists, err := s.repo.ExistsConfirmedForMonth(ctx, run.Month)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewDuplicate("payroll_run", "month", run.Month.Format("2006-01"))
	}

	if run.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx,
			numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: numerator.StrategyStrict},
			run.Month)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		run.Number = number
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, run); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		return s.repo.SaveLines(ctx, run.ID, run.Lines)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterCreate(ctx, run); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "payroll run created",
		"id", run.ID,
		"number", run.Number,
		"month", run.Month.Format("2006-01"))
	return nil
}

// GetByID returns the run with its lines.
func (s *Service) GetByID(ctx context.Context, runID id.ID) (*Run, error) {
	run, err := s.repo.GetByID(ctx, runID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("payroll_run", runID.String())
		}
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	run.Lines = lines
	return run, nil
}

// Update replaces a draft run and its lines.
func (s *Service) Update(ctx context.Context, run *Run) error {
	if err := s.hooks.RunBeforeUpdate(ctx, run); err != nil {
		return err
	}
	if err := run.CanModify(); err != nil {
		return err
	}
	if err := run.Validate(ctx); err != nil {
		return err
	}

	run.Touch()

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, run); err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		return s.repo.SaveLines(ctx, run.ID, run.Lines)
	})
}

// Cancel abandons a draft run.
func (s *Service) Cancel(ctx context.Context, runID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		run, err := s.repo.GetForUpdate(ctx, runID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("payroll_run", runID.String())
			}
			return err
		}
		if err := run.CanCancel(); err != nil {
			return err
		}
		run.MarkCancelled()
		return s.repo.Update(ctx, run)
	})
}

// Confirm posts the run: salary expense entry plus one advance installment
// deduction per bound line, all in one transaction.
func (s *Service) Confirm(ctx context.Context, runID id.ID) (*posting.Result, error) {
	run, err := s.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.bind(run)
	return s.engine.Confirm(ctx, runStore{svc: s}, run)
}

// Reverse retracts a confirmed run and restores its advance deductions.
func (s *Service) Reverse(ctx context.Context, runID id.ID, reason string) (*posting.Reversal, error) {
	run, err := s.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.bind(run)
	return s.engine.Reverse(ctx, runStore{svc: s}, run, reason)
}

// List returns runs matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) (domain.ListResult[*Run], error) {
	return s.repo.List(ctx, f)
}

// bind attaches the account bindings and advance effects to the run.
func (s *Service) bind(run *Run) {
	run.accounts = s.cfg.Accounts
	run.applyAdvances = func(ctx context.Context) error {
		for _, l := range run.Lines {
			if l.AdvanceID == nil || !l.AdvanceDeduction.IsPositive() {
				continue
			}
			if err := s.advances.Deduct(ctx, *l.AdvanceID, run.Month, l.AdvanceDeduction); err != nil {
				return fmt.Errorf("deduct advance (line %d): %w", l.LineNo, err)
			}
		}
		return nil
	}
	run.restoreAdvances = func(ctx context.Context) error {
		for _, l := range run.Lines {
			if l.AdvanceID == nil || !l.AdvanceDeduction.IsPositive() {
				continue
			}
			if err := s.advances.Restore(ctx, *l.AdvanceID, l.AdvanceDeduction); err != nil {
				return fmt.Errorf("restore advance (line %d): %w", l.LineNo, err)
			}
		}
		return nil
	}
}

// runStore adapts the repository for the posting engine.
type runStore struct {
	svc *Service
}

func (st runStore) RefreshForUpdate(ctx context.Context, doc posting.Postable) error {
	run, ok := doc.(*Run)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("unexpected document type %T", doc))
	}

	fresh, err := st.svc.repo.GetForUpdate(ctx, run.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("payroll_run", run.ID.String())
		}
		return err
	}
	lines, err := st.svc.repo.GetLines(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("get lines: %w", err)
	}

	accounts, apply, restore := run.accounts, run.applyAdvances, run.restoreAdvances
	*run = *fresh
	run.Lines = lines
	run.accounts, run.applyAdvances, run.restoreAdvances = accounts, apply, restore
	return nil
}

func (st runStore) Save(ctx context.Context, doc posting.Postable) error {
	run, ok := doc.(*Run)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("unexpected document type %T", doc))
	}
	return st.svc.repo.Update(ctx, run)
}
