// Package document_repo provides PostgreSQL implementations for the document
// repositories. Invoice-like documents share one header table (doc_documents,
// discriminated by kind) and one items table (doc_items).
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/domain"
	"pressledger/internal/domain/documents"
	"pressledger/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "doc_documents"
	itemsTable     = "doc_items"
)

var itemCols = []string{
	"document_id", "line_id", "line_no", "product_id",
	"quantity", "unit_price", "discount", "tax", "total", "unit_cost",
}

// InvoiceRepo is the shared repository for invoice-like documents. The type
// parameter selects the document kind; every query carries the kind
// discriminator.
type InvoiceRepo[T documents.InvoiceDocument] struct {
	txManager  *postgres.TxManager
	kind       string
	selectCols []string
	newFn      func() T
}

// NewInvoiceRepo creates a repository for one invoice kind.
func NewInvoiceRepo[T documents.InvoiceDocument](
	txManager *postgres.TxManager,
	kind string,
	newFn func() T,
) *InvoiceRepo[T] {
	return &InvoiceRepo[T]{
		txManager:  txManager,
		kind:       kind,
		selectCols: postgres.ExtractDBColumns[T](),
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *InvoiceRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *InvoiceRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the document header. Items are saved separately through
// SaveItems so header and lines share the caller's transaction.
func (r *InvoiceRepo[T]) Create(ctx context.Context, doc T) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	filteredData := make(map[string]any, len(r.selectCols)+1)
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}
	filteredData["kind"] = r.kind

	q := r.Builder().
		Insert(documentsTable).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.kind, err)
	}

	return nil
}

// Update updates the document header with optimistic locking.
func (r *InvoiceRepo[T]) Update(ctx context.Context, doc T) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	docID, ok := data["id"]
	if !ok {
		return fmt.Errorf("document has no 'id' field")
	}
	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("document has no 'version' field or it is not an int")
	}

	// Exclude immutable fields
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" || col == "created_by" {
			continue
		}
		if col == "version" || col == "updated_at" {
			continue // version/updated_at are managed by repo
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	// Callers Touch before Update, so the row must still hold the
	// pre-increment version.
	q := r.Builder().
		Update(documentsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"kind": r.kind}).
		Where(squirrel.Eq{"version": version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.kind, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.kind, docID)
	}

	return nil
}

// Delete removes a document and its items. The service layer only calls this
// for drafts.
func (r *InvoiceRepo[T]) Delete(ctx context.Context, docID id.ID) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx,
		`DELETE FROM doc_items WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	result, err := querier.Exec(ctx,
		`DELETE FROM doc_documents WHERE id = $1 AND kind = $2`, docID, r.kind)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.kind, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.kind, docID.String())
	}

	return nil
}

func (r *InvoiceRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(documentsTable).
		Where(squirrel.Eq{"kind": r.kind})
}

// GetByID retrieves a document header by ID.
func (r *InvoiceRepo[T]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": docID})
	return r.getOne(ctx, q, docID.String())
}

// GetByNumber retrieves a document header by number.
func (r *InvoiceRepo[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	q := r.baseSelect().Where(squirrel.Eq{"number": number})
	return r.getOne(ctx, q, number)
}

// GetForUpdate retrieves a document header with a row lock.
func (r *InvoiceRepo[T]) GetForUpdate(ctx context.Context, docID id.ID) (T, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, docID.String())
}

func (r *InvoiceRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	doc := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return doc, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return doc, apperror.NewNotFound(r.kind, key)
		}
		return doc, fmt.Errorf("get %s: %w", r.kind, err)
	}

	return doc, nil
}

// GetItems loads the document's items ordered by line number.
func (r *InvoiceRepo[T]) GetItems(ctx context.Context, docID id.ID) ([]documents.Item, error) {
	q := r.Builder().
		Select("line_id", "line_no", "product_id",
			"quantity", "unit_price", "discount", "tax", "total", "unit_cost").
		From(itemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var items []documents.Item
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	return items, nil
}

// SaveItems replaces the document's items.
func (r *InvoiceRepo[T]) SaveItems(ctx context.Context, docID id.ID, items []documents.Item) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx,
		`DELETE FROM doc_items WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.Builder().Insert(itemsTable).Columns(itemCols...)
	for _, it := range items {
		q = q.Values(docID, it.LineID, it.LineNo, it.ProductID,
			it.Quantity, it.UnitPrice, it.Discount, it.Tax, it.Total, it.UnitCost)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build items insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}

	return nil
}

// List retrieves documents with filtering and pagination. Items are not
// loaded; list views show headers only.
func (r *InvoiceRepo[T]) List(ctx context.Context, f documents.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	q := r.baseSelect()

	if f.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + f.Search + "%"})
	}
	if len(f.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": f.IDs})
	}
	if f.PartnerID != nil {
		q = q.Where(squirrel.Eq{"partner_id": *f.PartnerID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.PaymentStatus != nil {
		q = q.Where(squirrel.Eq{"payment_status": *f.PaymentStatus})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *f.DateTo})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

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
		return result, fmt.Errorf("list %s: %w", r.kind, err)
	}

	return result, nil
}

func (r *InvoiceRepo[T]) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "date DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}
