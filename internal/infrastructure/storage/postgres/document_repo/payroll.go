package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/domain"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/infrastructure/storage/postgres"
)

const (
	payrollRunsTable  = "doc_payroll_runs"
	payrollLinesTable = "doc_payroll_lines"
)

var payrollLineCols = []string{
	"run_id", "line_id", "line_no", "employee_id", "employee_name",
	"base_salary", "overtime", "gross", "tax", "insurance",
	"advance_id", "advance_deduction", "net",
}

// PayrollRepo implements payroll.Repository over doc_payroll_runs and
// doc_payroll_lines.
type PayrollRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewPayrollRepo creates a new payroll repository.
func NewPayrollRepo(txManager *postgres.TxManager) *PayrollRepo {
	return &PayrollRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[payroll.Run](),
	}
}

func (r *PayrollRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the run header.
func (r *PayrollRepo) Create(ctx context.Context, run *payroll.Run) error {
	data := postgres.StructToMap(run)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(payrollRunsTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payroll run: %w", err)
	}

	return nil
}

// GetByID retrieves a run header by ID.
func (r *PayrollRepo) GetByID(ctx context.Context, runID id.ID) (*payroll.Run, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": runID})
	return r.getOne(ctx, q, runID.String())
}

// GetByNumber retrieves a run header by number.
func (r *PayrollRepo) GetByNumber(ctx context.Context, number string) (*payroll.Run, error) {
	q := r.baseSelect().Where(squirrel.Eq{"number": number})
	return r.getOne(ctx, q, number)
}

// GetForUpdate retrieves a run header with a row lock.
func (r *PayrollRepo) GetForUpdate(ctx context.Context, runID id.ID) (*payroll.Run, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": runID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, runID.String())
}

// Update updates the run header with optimistic locking.
func (r *PayrollRepo) Update(ctx context.Context, run *payroll.Run) error {
	data := postgres.StructToMap(run)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" || col == "created_by" {
			continue
		}
		if col == "version" || col == "updated_at" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	// Callers Touch before Update, so the row must still hold the
	// pre-increment version.
	q := r.builder.Update(payrollRunsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": run.ID}).
		Where(squirrel.Eq{"version": run.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update payroll run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(payrollRunsTable, run.ID)
	}

	return nil
}

// Delete removes a run and its lines. The service layer only calls this for
// drafts.
func (r *PayrollRepo) Delete(ctx context.Context, runID id.ID) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx,
		`DELETE FROM doc_payroll_lines WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	result, err := querier.Exec(ctx,
		`DELETE FROM doc_payroll_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("delete payroll run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(payrollRunsTable, runID.String())
	}

	return nil
}

// GetLines loads the run's lines ordered by line number.
func (r *PayrollRepo) GetLines(ctx context.Context, runID id.ID) ([]payroll.Line, error) {
	q := r.builder.Select(
		"line_id", "line_no", "employee_id", "employee_name",
		"base_salary", "overtime", "gross", "tax", "insurance",
		"advance_id", "advance_deduction", "net",
	).From(payrollLinesTable).
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []payroll.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the run's lines.
func (r *PayrollRepo) SaveLines(ctx context.Context, runID id.ID, lines []payroll.Line) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx,
		`DELETE FROM doc_payroll_lines WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.builder.Insert(payrollLinesTable).Columns(payrollLineCols...)
	for _, l := range lines {
		q = q.Values(runID, l.LineID, l.LineNo, l.EmployeeID, l.EmployeeName,
			l.BaseSalary, l.Overtime, l.Gross, l.Tax, l.Insurance,
			l.AdvanceID, l.AdvanceDeduction, l.Net)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// ExistsConfirmedForMonth reports whether a confirmed run already covers the
// month. One payroll run per month.
func (r *PayrollRepo) ExistsConfirmedForMonth(ctx context.Context, month time.Time) (bool, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	sql := `
		SELECT 1 FROM doc_payroll_runs
		WHERE month = $1 AND status = 'confirmed'
		LIMIT 1
	`

	var one int
	err := r.querier(ctx).QueryRow(ctx, sql, first).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists confirmed for month: %w", err)
	}

	return true, nil
}

// List retrieves runs with filtering and pagination. Lines are not loaded.
func (r *PayrollRepo) List(ctx context.Context, f payroll.ListFilter) (domain.ListResult[*payroll.Run], error) {
	result := domain.ListResult[*payroll.Run]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q := r.baseSelect()

	if f.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + f.Search + "%"})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.MonthFrom != nil {
		q = q.Where(squirrel.GtOrEq{"month": *f.MonthFrom})
	}
	if f.MonthTo != nil {
		q = q.Where(squirrel.LtOrEq{"month": *f.MonthTo})
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

	q = q.OrderBy("month DESC")
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
		return result, fmt.Errorf("list payroll runs: %w", err)
	}

	return result, nil
}

func (r *PayrollRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.selectCols...).From(payrollRunsTable)
}

func (r *PayrollRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*payroll.Run, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var run payroll.Run
	if err := pgxscan.Get(ctx, r.querier(ctx), &run, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(payrollRunsTable, key)
		}
		return nil, fmt.Errorf("get payroll run: %w", err)
	}

	return &run, nil
}

var _ payroll.Repository = (*PayrollRepo)(nil)
