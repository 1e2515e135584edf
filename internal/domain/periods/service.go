package periods

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain/audit"
	"pressledger/pkg/logger"
)

// ConsistencyChecker verifies sub-ledgers against their control accounts.
// The period service calls it before allowing a close.
type ConsistencyChecker interface {
	AssertConsistent(ctx context.Context) error
}

// Service manages accounting periods.
type Service struct {
	repo      Repository
	txManager tx.Manager
	checker   ConsistencyChecker // optional
	audit     audit.Recorder
}

// NewService creates a new period service.
func NewService(repo Repository, txManager tx.Manager, checker ConsistencyChecker, auditRec audit.Recorder) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		checker:   checker,
		audit:     auditRec,
	}
}

// Open creates a new open period. Overlapping an existing period is rejected.
func (s *Service) Open(ctx context.Context, name string, start, end time.Time) (*Period, error) {
	p := NewPeriod(name, start, end)
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.GetByName(ctx, name); err == nil && existing != nil {
			return apperror.NewDuplicate("period", "name", name)
		} else if err != nil && !apperror.IsNotFound(err) {
			return err
		}

		overlap, err := s.repo.FindOverlapping(ctx, p.StartDate, p.EndDate)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if overlap != nil {
			return apperror.NewInvariantViolation("period overlaps an existing period").
				WithDetail("existing", overlap.Name)
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create period: %w", err)
		}

		return s.audit.Record(ctx, audit.Record{
			EntityType: "period",
			EntityID:   p.ID,
			Action:     audit.ActionCreate,
			Changes: map[string]any{
				"name":  p.Name,
				"start": p.StartDate.Format("2006-01-02"),
				"end":   p.EndDate.Format("2006-01-02"),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "period opened", "name", name)
	return p, nil
}

// ResolveOpenForDate returns the open period containing the date, or
// PERIOD_CLOSED when the containing period is closed, NOT_FOUND when no
// period covers the date.
func (s *Service) ResolveOpenForDate(ctx context.Context, date time.Time) (*Period, error) {
	p, err := s.repo.FindForDate(ctx, date)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("period", date.Format("2006-01-02"))
		}
		return nil, err
	}
	if !p.IsOpen() {
		return nil, apperror.NewPeriodClosed(p.Name)
	}
	return p, nil
}

// ResolveOpenForDateForUpdate behaves like ResolveOpenForDate but takes a row
// lock on the period. Must be called inside a transaction; the lock blocks a
// concurrent Close until the posting commits.
func (s *Service) ResolveOpenForDateForUpdate(ctx context.Context, date time.Time) (*Period, error) {
	p, err := s.repo.FindForDateForUpdate(ctx, date)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("period", date.Format("2006-01-02"))
		}
		return nil, err
	}
	if !p.IsOpen() {
		return nil, apperror.NewPeriodClosed(p.Name)
	}
	return p, nil
}

// Close freezes the period. Fails while draft entries dated inside exist or
// while a sub-ledger disagrees with its control account.
func (s *Service) Close(ctx context.Context, name string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByName(ctx, name)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("period", name)
			}
			return err
		}
		if !p.IsOpen() {
			return apperror.NewPeriodClosed(p.Name)
		}

		drafts, err := s.repo.CountDraftEntriesInRange(ctx, p.StartDate, p.EndDate)
		if err != nil {
			return fmt.Errorf("count drafts: %w", err)
		}
		if drafts > 0 {
			return apperror.NewInvariantViolation("draft entries exist inside the period").
				WithDetail("period", p.Name).
				WithDetail("draft_count", drafts)
		}

		if s.checker != nil {
			if err := s.checker.AssertConsistent(ctx); err != nil {
				return err
			}
		}

		p.Status = StatusClosed
		p.Touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}

		if err := s.audit.Record(ctx, audit.Record{
			EntityType: "period",
			EntityID:   p.ID,
			Action:     audit.ActionUpdate,
			Changes:    map[string]any{"status": audit.Change(string(StatusOpen), string(StatusClosed))},
		}); err != nil {
			return err
		}

		logger.Info(ctx, "period closed", "name", name)
		return nil
	})
}

// Reopen reverts a closed period to open. This is an administrative action
// and always leaves an audit record.
func (s *Service) Reopen(ctx context.Context, name string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByName(ctx, name)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("period", name)
			}
			return err
		}
		if p.IsOpen() {
			return apperror.NewInvariantViolation("period is already open").
				WithDetail("period", p.Name)
		}

		p.Status = StatusOpen
		p.Touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}

		if err := s.audit.Record(ctx, audit.Record{
			EntityType: "period",
			EntityID:   p.ID,
			Action:     audit.ActionUpdate,
			Changes:    map[string]any{"status": audit.Change(string(StatusClosed), string(StatusOpen))},
		}); err != nil {
			return err
		}

		logger.Warn(ctx, "period reopened", "name", name)
		return nil
	})
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]*Period, error) {
	return s.repo.List(ctx)
}
