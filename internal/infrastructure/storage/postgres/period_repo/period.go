// Package period_repo provides the PostgreSQL implementation of the
// accounting period repository.
package period_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/domain/periods"
	"pressledger/internal/infrastructure/storage/postgres"
)

const periodsTable = "acc_periods"

var periodCols = []string{"id", "version", "name", "start_date", "end_date", "status"}

// PeriodRepo implements periods.Repository over acc_periods.
type PeriodRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewPeriodRepo creates a new period repository.
func NewPeriodRepo(txManager *postgres.TxManager) *PeriodRepo {
	return &PeriodRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new period.
func (r *PeriodRepo) Create(ctx context.Context, p *periods.Period) error {
	q := r.builder.Insert(periodsTable).
		Columns(periodCols...).
		Values(p.ID, p.Version, p.Name, p.StartDate, p.EndDate, p.Status)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert period: %w", err)
	}

	return nil
}

// GetByID retrieves a period by ID.
func (r *PeriodRepo) GetByID(ctx context.Context, periodID id.ID) (*periods.Period, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": periodID}).Limit(1)
	return r.getOne(ctx, q, periodID.String())
}

// GetByName retrieves a period by name.
func (r *PeriodRepo) GetByName(ctx context.Context, name string) (*periods.Period, error) {
	q := r.baseSelect().Where(squirrel.Eq{"name": name}).Limit(1)
	return r.getOne(ctx, q, name)
}

// Update persists status changes with optimistic locking. Callers Touch
// before Update, so the row must still hold the pre-increment version.
func (r *PeriodRepo) Update(ctx context.Context, p *periods.Period) error {
	q := r.builder.Update(periodsTable).
		Set("name", p.Name).
		Set("start_date", p.StartDate).
		Set("end_date", p.EndDate).
		Set("status", p.Status).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Eq{"version": p.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(periodsTable, p.ID)
	}

	return nil
}

// FindForDate returns the period containing the date, if any. Comparison is
// by calendar day inclusive on both ends.
func (r *PeriodRepo) FindForDate(ctx context.Context, date time.Time) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.LtOrEq{"start_date": date}).
		Where(squirrel.GtOrEq{"end_date": date}).
		Limit(1)

	return r.getOne(ctx, q, date.Format("2006-01-02"))
}

// FindForDateForUpdate locks and returns the period containing the date.
// Posting paths hold this lock until commit so a concurrent close cannot
// slip between the check and the insert.
func (r *PeriodRepo) FindForDateForUpdate(ctx context.Context, date time.Time) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.LtOrEq{"start_date": date}).
		Where(squirrel.GtOrEq{"end_date": date}).
		Suffix("FOR UPDATE").
		Limit(1)

	return r.getOne(ctx, q, date.Format("2006-01-02"))
}

// FindOverlapping returns any period overlapping [start, end].
func (r *PeriodRepo) FindOverlapping(ctx context.Context, start, end time.Time) (*periods.Period, error) {
	q := r.baseSelect().
		Where(squirrel.LtOrEq{"start_date": end}).
		Where(squirrel.GtOrEq{"end_date": start}).
		Limit(1)

	return r.getOne(ctx, q, fmt.Sprintf("%s..%s", start.Format("2006-01-02"), end.Format("2006-01-02")))
}

// CountDraftEntriesInRange counts draft journal entries dated within the
// range. Close refuses while any exist.
func (r *PeriodRepo) CountDraftEntriesInRange(ctx context.Context, start, end time.Time) (int64, error) {
	sql := `
		SELECT COUNT(*)
		FROM jrn_entries
		WHERE status = 'draft'
		  AND date >= $1 AND date <= $2
	`

	var count int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count draft entries: %w", err)
	}

	return count, nil
}

// List returns all periods ordered by start date.
func (r *PeriodRepo) List(ctx context.Context) ([]*periods.Period, error) {
	q := r.baseSelect().OrderBy("start_date")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*periods.Period
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select periods: %w", err)
	}

	return items, nil
}

func (r *PeriodRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(periodCols...).From(periodsTable)
}

func (r *PeriodRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*periods.Period, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p periods.Period
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(periodsTable, key)
		}
		return nil, fmt.Errorf("get period: %w", err)
	}

	return &p, nil
}

var _ periods.Repository = (*PeriodRepo)(nil)
