// Package journal_repo provides the PostgreSQL implementation of the journal
// repository: jrn_entries headers plus jrn_lines written over COPY.
package journal_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
	"pressledger/internal/infrastructure/storage/postgres"
)

const (
	entriesTable = "jrn_entries"
	linesTable   = "jrn_lines"
)

var entryCols = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"number", "date", "description",
	"source_kind", "source_id", "source_number",
	"status", "reversal_of", "posted_at",
}

var lineCols = []string{
	"id", "entry_id", "line_no", "account_id", "debit", "credit",
	"partner_id", "partner_kind", "product_id", "warehouse_id",
}

// JournalRepo implements journal.Repository.
type JournalRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewJournalRepo creates a new journal repository.
func NewJournalRepo(txManager *postgres.TxManager) *JournalRepo {
	return &JournalRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// entryRow flattens the header for scanning; the nullable source columns map
// onto the SourceRef value.
type entryRow struct {
	ID        id.ID     `db:"id"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	CreatedBy string    `db:"created_by"`
	UpdatedBy string    `db:"updated_by"`

	Number      *int64    `db:"number"`
	Date        time.Time `db:"date"`
	Description string    `db:"description"`

	SourceKind   *string `db:"source_kind"`
	SourceID     *id.ID  `db:"source_id"`
	SourceNumber *string `db:"source_number"`

	Status     journal.EntryStatus `db:"status"`
	ReversalOf *id.ID              `db:"reversal_of"`
	PostedAt   *time.Time          `db:"posted_at"`
}

func (row *entryRow) toEntry() *journal.Entry {
	e := &journal.Entry{
		Date:        row.Date,
		Description: row.Description,
		Status:      row.Status,
		ReversalOf:  row.ReversalOf,
		PostedAt:    row.PostedAt,
	}
	e.ID = row.ID
	e.Version = row.Version
	e.CreatedAt = row.CreatedAt
	e.UpdatedAt = row.UpdatedAt
	e.CreatedBy = row.CreatedBy
	e.UpdatedBy = row.UpdatedBy

	if row.Number != nil {
		e.Number = *row.Number
	}
	if row.SourceKind != nil {
		e.Source.Kind = *row.SourceKind
	}
	if row.SourceID != nil {
		e.Source.ID = *row.SourceID
	}
	if row.SourceNumber != nil {
		e.Source.Number = *row.SourceNumber
	}
	return e
}

// lineRow flattens a journal line; the nullable reference columns map onto
// PartnerRef/InventoryRef values.
type lineRow struct {
	ID        id.ID       `db:"id"`
	EntryID   id.ID       `db:"entry_id"`
	LineNo    int         `db:"line_no"`
	AccountID id.ID       `db:"account_id"`
	Debit     types.Money `db:"debit"`
	Credit    types.Money `db:"credit"`

	PartnerID   *id.ID  `db:"partner_id"`
	PartnerKind *string `db:"partner_kind"`
	ProductID   *id.ID  `db:"product_id"`
	WarehouseID *id.ID  `db:"warehouse_id"`
}

func (row *lineRow) toLine() journal.Line {
	l := journal.Line{
		ID:        row.ID,
		EntryID:   row.EntryID,
		LineNo:    row.LineNo,
		AccountID: row.AccountID,
		Debit:     row.Debit,
		Credit:    row.Credit,
	}
	if row.PartnerID != nil {
		ref := &journal.PartnerRef{ID: *row.PartnerID}
		if row.PartnerKind != nil {
			ref.Kind = partners.Kind(*row.PartnerKind)
		}
		l.Partner = ref
	}
	if row.ProductID != nil && row.WarehouseID != nil {
		l.Inventory = &journal.InventoryRef{
			ProductID:   *row.ProductID,
			WarehouseID: *row.WarehouseID,
		}
	}
	return l
}

// Create inserts the entry header and its lines in one shot. Lines go over
// the COPY protocol when inside a transaction; the journal engine always
// calls this inside one.
func (r *JournalRepo) Create(ctx context.Context, e *journal.Entry) error {
	var number *int64
	if e.Number != 0 {
		number = &e.Number
	}
	var sourceKind, sourceNumber *string
	var sourceID *id.ID
	if !e.Source.IsZero() {
		sourceKind = &e.Source.Kind
		sourceID = &e.Source.ID
		if e.Source.Number != "" {
			sourceNumber = &e.Source.Number
		}
	}

	q := r.builder.Insert(entriesTable).
		Columns(entryCols...).
		Values(
			e.ID, e.Version, e.CreatedAt, e.UpdatedAt, e.CreatedBy, e.UpdatedBy,
			number, e.Date, e.Description,
			sourceKind, sourceID, sourceNumber,
			e.Status, e.ReversalOf, e.PostedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	return r.insertLines(ctx, e)
}

func (r *JournalRepo) insertLines(ctx context.Context, e *journal.Entry) error {
	if len(e.Lines) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(e.Lines))
	for _, l := range e.Lines {
		var partnerID, productID, warehouseID *id.ID
		var partnerKind *string
		if l.Partner != nil {
			partnerID = &l.Partner.ID
			kind := string(l.Partner.Kind)
			partnerKind = &kind
		}
		if l.Inventory != nil {
			productID = &l.Inventory.ProductID
			warehouseID = &l.Inventory.WarehouseID
		}
		rows = append(rows, []any{
			l.ID, l.EntryID, l.LineNo, l.AccountID, l.Debit, l.Credit,
			partnerID, partnerKind, productID, warehouseID,
		})
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		if _, err := inserter.CopyFromSlice(ctx, linesTable, lineCols, rows); err != nil {
			return fmt.Errorf("copy lines: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(linesTable).Columns(lineCols...)
	for _, row := range rows {
		q = q.Values(row...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// GetByID retrieves an entry with lines.
func (r *JournalRepo) GetByID(ctx context.Context, entryID id.ID) (*journal.Entry, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": entryID})
	return r.getOne(ctx, q, entryID.String())
}

// GetByIDForUpdate retrieves an entry with a row lock on the header.
func (r *JournalRepo) GetByIDForUpdate(ctx context.Context, entryID id.ID) (*journal.Entry, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": entryID}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, entryID.String())
}

// GetByNumber retrieves a posted entry by its number.
func (r *JournalRepo) GetByNumber(ctx context.Context, number int64) (*journal.Entry, error) {
	q := r.baseSelect().Where(squirrel.Eq{"number": number})
	return r.getOne(ctx, q, fmt.Sprintf("%d", number))
}

// GetBySource retrieves the entry posted for (source_kind, source_id).
// Backed by a unique index; this is the posting idempotency check.
func (r *JournalRepo) GetBySource(ctx context.Context, kind string, sourceID id.ID) (*journal.Entry, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"source_kind": kind}).
		Where(squirrel.Eq{"source_id": sourceID})

	return r.getOne(ctx, q, fmt.Sprintf("%s/%s", kind, sourceID))
}

// UpdateStatus persists a status transition with optimistic locking.
func (r *JournalRepo) UpdateStatus(ctx context.Context, e *journal.Entry) error {
	q := r.builder.Update(entriesTable).
		Set("status", e.Status).
		Set("reversal_of", e.ReversalOf).
		Set("updated_at", e.UpdatedAt).
		Set("updated_by", e.UpdatedBy).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.ID}).
		Where(squirrel.Eq{"version": e.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(entriesTable, e.ID)
	}

	return nil
}

// ListByDateRange returns posted and reversed entries dated within [from, to]
// ordered by number, lines included.
func (r *JournalRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]*journal.Entry, error) {
	q := r.baseSelect().
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		Where(squirrel.NotEq{"status": journal.EntryDraft}).
		OrderBy("number")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*entryRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	entries := make([]*journal.Entry, 0, len(rows))
	for _, row := range rows {
		e := row.toEntry()
		if err := r.loadLines(ctx, e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func (r *JournalRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(entryCols...).From(entriesTable)
}

func (r *JournalRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*journal.Entry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row entryRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entriesTable, key)
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}

	e := row.toEntry()
	if err := r.loadLines(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func (r *JournalRepo) loadLines(ctx context.Context, e *journal.Entry) error {
	q := r.builder.Select(lineCols...).
		From(linesTable).
		Where(squirrel.Eq{"entry_id": e.ID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}

	var rows []*lineRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select lines: %w", err)
	}

	e.Lines = make([]journal.Line, 0, len(rows))
	for _, row := range rows {
		e.Lines = append(e.Lines, row.toLine())
	}

	return nil
}

var _ journal.Repository = (*JournalRepo)(nil)
