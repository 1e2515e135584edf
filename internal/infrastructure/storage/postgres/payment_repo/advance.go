package payment_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/domain"
	"pressledger/internal/domain/payments"
	"pressledger/internal/infrastructure/storage/postgres"
)

const advancesTable = "pay_advances"

// AdvanceRepo implements payments.AdvanceRepository over pay_advances.
type AdvanceRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewAdvanceRepo creates a new advance repository.
func NewAdvanceRepo(txManager *postgres.TxManager) *AdvanceRepo {
	return &AdvanceRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[payments.Advance](),
	}
}

func (r *AdvanceRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts an advance.
func (r *AdvanceRepo) Create(ctx context.Context, a *payments.Advance) error {
	data := postgres.StructToMap(a)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(advancesTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert advance: %w", err)
	}

	return nil
}

// GetByID retrieves an advance by ID.
func (r *AdvanceRepo) GetByID(ctx context.Context, advanceID id.ID) (*payments.Advance, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": advanceID})
	return r.getOne(ctx, q, advanceID.String())
}

// GetForUpdate locks the advance row; installment math runs under it.
func (r *AdvanceRepo) GetForUpdate(ctx context.Context, advanceID id.ID) (*payments.Advance, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": advanceID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, advanceID.String())
}

// Update updates an advance with optimistic locking. Callers Touch before
// Update, so the row must still hold the pre-increment version.
func (r *AdvanceRepo) Update(ctx context.Context, a *payments.Advance) error {
	data := postgres.StructToMap(a)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" || col == "created_by" {
			continue
		}
		if col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Update(advancesTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": a.ID}).
		Where(squirrel.Eq{"version": a.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update advance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(advancesTable, a.ID)
	}

	return nil
}

// ListOpenByEmployee returns the employee's open advances, oldest request
// first. Payroll deducts in this order.
func (r *AdvanceRepo) ListOpenByEmployee(ctx context.Context, employeeID id.ID) ([]*payments.Advance, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"employee_id": employeeID}).
		Where(squirrel.Eq{"status": payments.AdvanceOpen}).
		OrderBy("request_date", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*payments.Advance
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select open advances: %w", err)
	}

	return items, nil
}

// List retrieves advances with filtering and pagination.
func (r *AdvanceRepo) List(ctx context.Context, f payments.AdvanceListFilter) (domain.ListResult[*payments.Advance], error) {
	result := domain.ListResult[*payments.Advance]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q := r.baseSelect()

	if f.Search != "" {
		q = q.Where(squirrel.ILike{"employee_name": "%" + f.Search + "%"})
	}
	if f.EmployeeID != nil {
		q = q.Where(squirrel.Eq{"employee_id": *f.EmployeeID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("request_date DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list advances: %w", err)
	}

	return result, nil
}

func (r *AdvanceRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.selectCols...).From(advancesTable)
}

func (r *AdvanceRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*payments.Advance, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a payments.Advance
	if err := pgxscan.Get(ctx, r.querier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(advancesTable, key)
		}
		return nil, fmt.Errorf("get advance: %w", err)
	}

	return &a, nil
}

var _ payments.AdvanceRepository = (*AdvanceRepo)(nil)
