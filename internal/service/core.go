// Package service exposes the accounting core as one facade. Callers go
// through Core for every mutating operation and read view; nothing outside
// this package talks to the domain services directly.
package service

import (
	"context"
	"time"

	"pressledger/internal/core/actor"
	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/tx"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/audit"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/documents/purchase_return"
	"pressledger/internal/domain/documents/sale_invoice"
	"pressledger/internal/domain/documents/sale_return"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/payments"
	"pressledger/internal/domain/periods"
	"pressledger/internal/domain/posting"
	"pressledger/internal/domain/reports"
)

// Deps wires the facade. Every field is required.
type Deps struct {
	Accounts *accounts.Service
	Partners *partners.Service
	Periods  *periods.Service
	Journal  *journal.Engine
	Ledger   *inventory.Ledger
	Payments *payments.Service
	Advances *payments.AdvanceBook
	Reports  *reports.Service

	PurchaseInvoices *purchase_invoice.Service
	SaleInvoices     *sale_invoice.Service
	PurchaseReturns  *purchase_return.Service
	SaleReturns      *sale_return.Service
	Payroll          *payroll.Service

	Audit     audit.Recorder
	TxManager tx.Manager
}

// Core is the external interface of the accounting core.
type Core struct {
	deps Deps
}

// NewCore creates the facade.
func NewCore(deps Deps) *Core {
	return &Core{deps: deps}
}

// ConfirmDocument posts a draft document of any kind. Idempotent: confirming
// an already-confirmed document returns the prior result with Replayed set.
func (c *Core) ConfirmDocument(ctx context.Context, kind string, docID id.ID) (*posting.Result, error) {
	switch kind {
	case documents.KindPurchaseInvoice:
		return c.deps.PurchaseInvoices.Confirm(ctx, docID)
	case documents.KindSaleInvoice:
		return c.deps.SaleInvoices.Confirm(ctx, docID)
	case documents.KindPurchaseReturn:
		return c.deps.PurchaseReturns.Confirm(ctx, docID)
	case documents.KindSaleReturn:
		return c.deps.SaleReturns.Confirm(ctx, docID)
	case documents.KindPayrollRun:
		return c.deps.Payroll.Confirm(ctx, docID)
	default:
		return nil, apperror.NewValidation("unknown document kind").WithDetail("kind", kind)
	}
}

// VoidDocument reverses a confirmed document: the journal entry is reversed
// and compensating stock movements are written, all in one transaction.
func (c *Core) VoidDocument(ctx context.Context, kind string, docID id.ID, reason string) (*posting.Reversal, error) {
	switch kind {
	case documents.KindPurchaseInvoice:
		return c.deps.PurchaseInvoices.Reverse(ctx, docID, reason)
	case documents.KindSaleInvoice:
		return c.deps.SaleInvoices.Reverse(ctx, docID, reason)
	case documents.KindPurchaseReturn:
		return c.deps.PurchaseReturns.Reverse(ctx, docID, reason)
	case documents.KindSaleReturn:
		return c.deps.SaleReturns.Reverse(ctx, docID, reason)
	case documents.KindPayrollRun:
		return c.deps.Payroll.Reverse(ctx, docID, reason)
	default:
		return nil, apperror.NewValidation("unknown document kind").WithDetail("kind", kind)
	}
}

// RecordPayment allocates a payment to an invoice. The bool reports an
// idempotent replay: the payment existed and its original state is returned.
func (c *Core) RecordPayment(ctx context.Context, in payments.RecordInput) (*payments.Payment, bool, error) {
	return c.deps.Payments.Record(ctx, in)
}

// VoidPayment reverses a posted payment's entry and restores the invoice's
// paid amount. Returns the reversal entry.
func (c *Core) VoidPayment(ctx context.Context, paymentID id.ID, reason string) (*journal.Entry, error) {
	return c.deps.Payments.Void(ctx, paymentID, reason)
}

// TransferStockInput moves quantity between warehouses.
type TransferStockInput struct {
	ProductID       id.ID
	FromWarehouseID id.ID
	ToWarehouseID   id.ID
	Quantity        types.Quantity
	Date            time.Time
	Reference       string
}

// TransferStock moves stock between warehouses in one transaction. The OUT
// movement captures the source's average cost and the IN movement carries it
// into the destination's average.
func (c *Core) TransferStock(ctx context.Context, in TransferStockInput) ([]entity.StockMovement, error) {
	if in.FromWarehouseID == in.ToWarehouseID {
		return nil, apperror.NewValidation("source and destination warehouses must differ")
	}
	if in.Reference == "" {
		return nil, apperror.NewValidation("transfer reference is required")
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	if _, err := c.deps.Periods.ResolveOpenForDate(ctx, in.Date); err != nil {
		return nil, err
	}

	createdBy := actor.FromContext(ctx).ID
	doc := entity.DocumentRef{Kind: "stock_transfer", ID: id.New(), Number: in.Reference}

	var movements []entity.StockMovement
	err := c.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		out, err := c.deps.Ledger.Apply(ctx, []inventory.MovementSpec{{
			ProductID:   in.ProductID,
			WarehouseID: in.FromWarehouseID,
			Kind:        entity.MovementTransferOut,
			Quantity:    in.Quantity,
			Document:    doc,
			Reference:   in.Reference + "-OUT",
			Period:      in.Date,
			CreatedBy:   createdBy,
		}})
		if err != nil {
			return err
		}

		// The destination receives at the cost captured on the way out.
		rcv, err := c.deps.Ledger.Apply(ctx, []inventory.MovementSpec{{
			ProductID:   in.ProductID,
			WarehouseID: in.ToWarehouseID,
			Kind:        entity.MovementTransferIn,
			Quantity:    in.Quantity,
			UnitCost:    out[0].UnitCost,
			Document:    doc,
			Reference:   in.Reference + "-IN",
			Period:      in.Date,
			CreatedBy:   createdBy,
		}})
		if err != nil {
			return err
		}

		movements = append(out, rcv...)

		return c.deps.Audit.Record(ctx, audit.Record{
			EntityType: "stock_transfer",
			EntityID:   doc.ID,
			Action:     audit.ActionPost,
			Changes: map[string]any{
				"product_id": in.ProductID.String(),
				"from":       in.FromWarehouseID.String(),
				"to":         in.ToWarehouseID.String(),
				"quantity":   in.Quantity.String(),
				"reference":  in.Reference,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return movements, nil
}

// AdjustStockInput corrects an item balance by a signed delta.
type AdjustStockInput struct {
	ProductID   id.ID
	WarehouseID id.ID

	// Delta is the signed correction; positive adds stock.
	Delta types.Quantity

	// UnitCost prices positive deltas into the average. Zero keeps the
	// current average.
	UnitCost types.Money

	Date      time.Time
	Reference string
	Reason    string
}

// AdjustStock writes an adjustment movement. Only the inventory ledger
// moves; any valuation posting is a manual journal entry.
func (c *Core) AdjustStock(ctx context.Context, in AdjustStockInput) (entity.StockMovement, error) {
	var zero entity.StockMovement

	if in.Reference == "" {
		return zero, apperror.NewValidation("adjustment reference is required")
	}
	if in.Reason == "" {
		return zero, apperror.NewValidation("adjustment reason is required")
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	if _, err := c.deps.Periods.ResolveOpenForDate(ctx, in.Date); err != nil {
		return zero, err
	}

	createdBy := actor.FromContext(ctx).ID
	doc := entity.DocumentRef{Kind: "stock_adjustment", ID: id.New(), Number: in.Reference}

	var movement entity.StockMovement
	err := c.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		applied, err := c.deps.Ledger.Apply(ctx, []inventory.MovementSpec{{
			ProductID:   in.ProductID,
			WarehouseID: in.WarehouseID,
			Kind:        entity.MovementAdjustment,
			Quantity:    in.Delta,
			UnitCost:    in.UnitCost,
			Document:    doc,
			Reference:   in.Reference,
			Period:      in.Date,
			CreatedBy:   createdBy,
		}})
		if err != nil {
			return err
		}
		movement = applied[0]

		return c.deps.Audit.Record(ctx, audit.Record{
			EntityType: "stock_adjustment",
			EntityID:   doc.ID,
			Action:     audit.ActionPost,
			Changes: map[string]any{
				"product_id":   in.ProductID.String(),
				"warehouse_id": in.WarehouseID.String(),
				"delta":        in.Delta.String(),
				"reason":       in.Reason,
				"reference":    in.Reference,
			},
		})
	})
	if err != nil {
		return zero, err
	}

	return movement, nil
}

// OpenPeriod opens a new accounting period.
func (c *Core) OpenPeriod(ctx context.Context, name string, start, end time.Time) (*periods.Period, error) {
	return c.deps.Periods.Open(ctx, name, start, end)
}

// ClosePeriod closes the named period after its consistency checks pass.
func (c *Core) ClosePeriod(ctx context.Context, name string) error {
	return c.deps.Periods.Close(ctx, name)
}

// ReopenPeriod reopens a closed period. Audited.
func (c *Core) ReopenPeriod(ctx context.Context, name string) error {
	return c.deps.Periods.Reopen(ctx, name)
}

// ReconcilePartner compares a partner's materialised balance with the sum of
// its posted lines.
func (c *Core) ReconcilePartner(ctx context.Context, partnerID id.ID) (partners.Reconciliation, error) {
	return c.deps.Partners.Reconcile(ctx, partnerID)
}

// AccountBalance returns one account's position as of a date, by code.
func (c *Core) AccountBalance(ctx context.Context, code string, asOf time.Time) (*reports.AccountBalance, error) {
	return c.deps.Reports.AccountBalance(ctx, code, asOf)
}

// TrialBalance returns per-account posted totals up to asOf.
func (c *Core) TrialBalance(ctx context.Context, asOf time.Time) (*reports.TrialBalance, error) {
	return c.deps.Reports.TrialBalance(ctx, asOf)
}

// PartnerStatement returns a partner's entry lines over [from, to] with a
// running balance seeded from the opening balance.
func (c *Core) PartnerStatement(ctx context.Context, partnerID id.ID, from, to time.Time) ([]partners.StatementLine, error) {
	return c.deps.Partners.Statement(ctx, partnerID, from, to)
}

// StockOnHand returns the current balance for (product, warehouse).
func (c *Core) StockOnHand(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryItem, error) {
	return c.deps.Ledger.StockOnHand(ctx, productID, warehouseID)
}

// StockBalance returns inventory positions valued at weighted average cost.
func (c *Core) StockBalance(ctx context.Context, f reports.StockBalanceFilter) (*reports.StockBalance, error) {
	return c.deps.Reports.StockBalance(ctx, f)
}

// JournalEntryByNumber returns a posted entry with its lines.
func (c *Core) JournalEntryByNumber(ctx context.Context, number int64) (*journal.Entry, error) {
	return c.deps.Journal.GetByNumber(ctx, number)
}

// GrantAdvance books a payroll advance: the disbursement entry posts and the
// advance opens for installment deduction.
func (c *Core) GrantAdvance(ctx context.Context, adv *payments.Advance) error {
	return c.deps.Advances.Grant(ctx, adv)
}
