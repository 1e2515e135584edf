// Package inventory_repo provides the PostgreSQL implementation of the
// inventory repository: materialised inv_items balances plus the append-only
// inv_movements ledger.
package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/infrastructure/storage/postgres"
)

const (
	itemsTable     = "inv_items"
	movementsTable = "inv_movements"
)

var movementCols = []string{
	"line_id", "product_id", "warehouse_id",
	"kind", "quantity", "quantity_before", "quantity_after", "unit_cost",
	"doc_kind", "doc_id", "doc_number", "doc_line_id",
	"reference", "period", "created_at", "created_by",
}

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewInventoryRepo creates a new inventory repository.
func NewInventoryRepo(txManager *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetItem returns the balance row for (product, warehouse). A missing row
// reads as a zero item.
func (r *InventoryRepo) GetItem(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id",
		"quantity", "weighted_avg_cost", "last_movement_at", "updated_at",
	).From(itemsTable).
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return entity.InventoryItem{}, fmt.Errorf("build query: %w", err)
	}

	var item entity.InventoryItem
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return zeroItem(productID, warehouseID), nil
		}
		return entity.InventoryItem{}, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// GetItemForUpdate returns the balance row with a row lock, inserting a zero
// row first so there is always a row to lock. Serialises concurrent writers
// to the same (product, warehouse).
func (r *InventoryRepo) GetItemForUpdate(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error) {
	querier := r.txManager.GetQuerier(ctx)

	insertSQL := `
		INSERT INTO inv_items (product_id, warehouse_id, quantity, weighted_avg_cost, last_movement_at, updated_at)
		VALUES ($1, $2, 0, 0, NOW(), NOW())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING
	`
	if _, err := querier.Exec(ctx, insertSQL, productID, warehouseID); err != nil {
		return entity.InventoryItem{}, fmt.Errorf("ensure item row: %w", err)
	}

	selectSQL := `
		SELECT product_id, warehouse_id, quantity, weighted_avg_cost, last_movement_at, updated_at
		FROM inv_items
		WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE
	`
	var item entity.InventoryItem
	if err := pgxscan.Get(ctx, querier, &item, selectSQL, productID, warehouseID); err != nil {
		return entity.InventoryItem{}, fmt.Errorf("get item for update: %w", err)
	}

	return item, nil
}

// UpdateItem persists quantity and weighted average cost.
func (r *InventoryRepo) UpdateItem(ctx context.Context, item entity.InventoryItem) error {
	q := r.builder.Update(itemsTable).
		Set("quantity", item.Quantity).
		Set("weighted_avg_cost", item.WeightedAvgCost).
		Set("last_movement_at", item.LastMovementAt).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{
			"product_id":   item.ProductID,
			"warehouse_id": item.WarehouseID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	return nil
}

// CreateMovements batch inserts movements. Uses COPY when inside a
// transaction, which the ledger always is.
func (r *InventoryRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		var docLineID *id.ID
		if !id.IsNil(m.Document.LineID) {
			lineID := m.Document.LineID
			docLineID = &lineID
		}
		rows = append(rows, []any{
			m.LineID, m.ProductID, m.WarehouseID,
			m.Kind, m.Quantity, m.QuantityBefore, m.QuantityAfter, m.UnitCost,
			m.Document.Kind, m.Document.ID, m.Document.Number, docLineID,
			m.Reference, m.Period, m.CreatedAt, m.CreatedBy,
		})
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementCols, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementCols...)
	for _, row := range rows {
		q = q.Values(row...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

// GetMovementsByDocument returns all movements recorded for a document in
// insertion order.
func (r *InventoryRepo) GetMovementsByDocument(ctx context.Context, docKind string, docID id.ID) ([]entity.StockMovement, error) {
	q := r.movementSelect().
		Where(squirrel.Eq{"doc_kind": docKind}).
		Where(squirrel.Eq{"doc_id": docID}).
		OrderBy("created_at", "reference")

	return r.selectMovements(ctx, q)
}

// MovementHistory returns movements for a product, newest first.
func (r *InventoryRepo) MovementHistory(ctx context.Context, productID id.ID, f inventory.MovementFilter) ([]entity.StockMovement, error) {
	q := r.movementSelect().
		Where(squirrel.Eq{"product_id": productID})

	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *f.Kind})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *f.ToDate})
	}

	q = q.OrderBy("period DESC", "created_at DESC")

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	return r.selectMovements(ctx, q)
}

// ListItems returns balance rows, optionally scoped to one warehouse.
func (r *InventoryRepo) ListItems(ctx context.Context, warehouseID *id.ID, excludeZero bool) ([]entity.InventoryItem, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id",
		"quantity", "weighted_avg_cost", "last_movement_at", "updated_at",
	).From(itemsTable)

	if warehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *warehouseID})
	}
	if excludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}

	q = q.OrderBy("warehouse_id", "product_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []entity.InventoryItem
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	return items, nil
}

// Turnover sums receipts and issues for the filter range. Adjustments carry
// their own sign and land on the receipt side.
func (r *InventoryRepo) Turnover(ctx context.Context, f inventory.TurnoverFilter) (inventory.Turnover, error) {
	var result inventory.Turnover

	args := []any{f.FromDate, f.ToDate}
	conditions := "period >= $1 AND period < $2"
	argIndex := 3

	if f.WarehouseID != nil {
		conditions += fmt.Sprintf(" AND warehouse_id = $%d", argIndex)
		args = append(args, *f.WarehouseID)
		result.WarehouseID = *f.WarehouseID
		argIndex++
	}
	if f.ProductID != nil {
		conditions += fmt.Sprintf(" AND product_id = $%d", argIndex)
		args = append(args, *f.ProductID)
		result.ProductID = *f.ProductID
		argIndex++
	}

	sql := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN kind IN ('in', 'transfer_in', 'return_in') THEN quantity
			              WHEN kind = 'adjustment' THEN quantity ELSE 0 END), 0) AS receipt,
			COALESCE(SUM(CASE WHEN kind IN ('out', 'transfer_out', 'return_out') THEN quantity ELSE 0 END), 0) AS issue
		FROM inv_movements
		WHERE %s
	`, conditions)

	querier := r.txManager.GetQuerier(ctx)
	var receiptScaled, issueScaled int64
	err := querier.QueryRow(ctx, sql, args...).Scan(&receiptScaled, &issueScaled)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate turnover: %w", err)
	}
	result.Receipt = types.NewQuantityFromInt64Scaled(receiptScaled)
	result.Issue = types.NewQuantityFromInt64Scaled(issueScaled)

	openingArgs := []any{f.FromDate}
	openingConditions := "period < $1"
	argIndex = 2

	if f.WarehouseID != nil {
		openingConditions += fmt.Sprintf(" AND warehouse_id = $%d", argIndex)
		openingArgs = append(openingArgs, *f.WarehouseID)
		argIndex++
	}
	if f.ProductID != nil {
		openingConditions += fmt.Sprintf(" AND product_id = $%d", argIndex)
		openingArgs = append(openingArgs, *f.ProductID)
	}

	openingSQL := fmt.Sprintf(`
		SELECT COALESCE(SUM(
			CASE WHEN kind IN ('in', 'transfer_in', 'return_in') THEN quantity
			     WHEN kind = 'adjustment' THEN quantity
			     ELSE -quantity
			END), 0)
		FROM inv_movements
		WHERE %s
	`, openingConditions)

	var openingScaled int64
	err = querier.QueryRow(ctx, openingSQL, openingArgs...).Scan(&openingScaled)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate opening balance: %w", err)
	}
	result.OpeningBalance = types.NewQuantityFromInt64Scaled(openingScaled)
	result.ClosingBalance = result.OpeningBalance + result.Receipt - result.Issue

	return result, nil
}

func (r *InventoryRepo) movementSelect() squirrel.SelectBuilder {
	return r.builder.Select(movementCols...).From(movementsTable)
}

// movementRow flattens the document reference columns.
type movementRow struct {
	LineID      id.ID `db:"line_id"`
	ProductID   id.ID `db:"product_id"`
	WarehouseID id.ID `db:"warehouse_id"`

	Kind           entity.MovementKind `db:"kind"`
	Quantity       types.Quantity      `db:"quantity"`
	QuantityBefore types.Quantity      `db:"quantity_before"`
	QuantityAfter  types.Quantity      `db:"quantity_after"`
	UnitCost       types.Money         `db:"unit_cost"`

	DocKind   string `db:"doc_kind"`
	DocID     id.ID  `db:"doc_id"`
	DocNumber string `db:"doc_number"`
	DocLineID *id.ID `db:"doc_line_id"`

	Reference string    `db:"reference"`
	Period    time.Time `db:"period"`
	CreatedAt time.Time `db:"created_at"`
	CreatedBy string    `db:"created_by"`
}

func (row *movementRow) toMovement() entity.StockMovement {
	m := entity.StockMovement{
		LineID:         row.LineID,
		ProductID:      row.ProductID,
		WarehouseID:    row.WarehouseID,
		Kind:           row.Kind,
		Quantity:       row.Quantity,
		QuantityBefore: row.QuantityBefore,
		QuantityAfter:  row.QuantityAfter,
		UnitCost:       row.UnitCost,
		Document: entity.DocumentRef{
			Kind:   row.DocKind,
			ID:     row.DocID,
			Number: row.DocNumber,
		},
		Reference: row.Reference,
		Period:    row.Period,
		CreatedAt: row.CreatedAt,
		CreatedBy: row.CreatedBy,
	}
	if row.DocLineID != nil {
		m.Document.LineID = *row.DocLineID
	}
	return m
}

func (r *InventoryRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]entity.StockMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*movementRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	movements := make([]entity.StockMovement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, row.toMovement())
	}

	return movements, nil
}

func zeroItem(productID, warehouseID id.ID) entity.InventoryItem {
	return entity.InventoryItem{
		ProductID:       productID,
		WarehouseID:     warehouseID,
		WeightedAvgCost: types.ZeroMoney(),
	}
}

var _ inventory.Repository = (*InventoryRepo)(nil)
