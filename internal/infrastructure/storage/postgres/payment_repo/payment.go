// Package payment_repo provides PostgreSQL implementations for payments and
// payroll advances.
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

const paymentsTable = "doc_payments"

// PaymentRepo implements payments.Repository over doc_payments.
type PaymentRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[payments.Payment](),
	}
}

func (r *PaymentRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a payment.
func (r *PaymentRepo) Create(ctx context.Context, p *payments.Payment) error {
	data := postgres.StructToMap(p)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(paymentsTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payments.Payment, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": paymentID})
	return r.getOne(ctx, q, paymentID.String())
}

// GetForUpdate locks the payment row against concurrent void calls.
func (r *PaymentRepo) GetForUpdate(ctx context.Context, paymentID id.ID) (*payments.Payment, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": paymentID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, paymentID.String())
}

// Update updates a payment with optimistic locking.
func (r *PaymentRepo) Update(ctx context.Context, p *payments.Payment) error {
	data := postgres.StructToMap(p)

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

	q := r.builder.Update(paymentsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Eq{"version": p.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(paymentsTable, p.ID)
	}

	return nil
}

// ListByInvoice returns all payments recorded against an invoice, oldest
// first.
func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceKind string, invoiceID id.ID) ([]*payments.Payment, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"invoice_kind": invoiceKind}).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("date", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*payments.Payment
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select by invoice: %w", err)
	}

	return items, nil
}

// List retrieves payments with filtering and pagination.
func (r *PaymentRepo) List(ctx context.Context, f payments.ListFilter) (domain.ListResult[*payments.Payment], error) {
	result := domain.ListResult[*payments.Payment]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q := r.baseSelect()

	if f.Search != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": "%" + f.Search + "%"},
			squirrel.ILike{"reference": "%" + f.Search + "%"},
		})
	}
	if f.InvoiceKind != nil {
		q = q.Where(squirrel.Eq{"invoice_kind": *f.InvoiceKind})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.Method != nil {
		q = q.Where(squirrel.Eq{"method": *f.Method})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *f.DateTo})
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

	q = q.OrderBy("date DESC", "number DESC")
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
		return result, fmt.Errorf("list payments: %w", err)
	}

	return result, nil
}

func (r *PaymentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.selectCols...).From(paymentsTable)
}

func (r *PaymentRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*payments.Payment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p payments.Payment
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(paymentsTable, key)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return &p, nil
}

var _ payments.Repository = (*PaymentRepo)(nil)
