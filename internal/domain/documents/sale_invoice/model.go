// Package sale_invoice provides the sale invoice document: goods issued to a
// customer with revenue recognition and cost of goods sold at the weighted
// average cost captured by the issue movements.
package sale_invoice

import (
	"context"
	"fmt"

	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/posting"
)

// NumberPrefix for generated document numbers.
const NumberPrefix = "SI"

// SaleInvoice records goods sold to a customer.
type SaleInvoice struct {
	documents.Invoice
}

// New creates a draft sale invoice.
func New(customerID, warehouseID id.ID, terms documents.Terms) *SaleInvoice {
	return &SaleInvoice{
		Invoice: documents.NewInvoice(customerID, warehouseID, terms),
	}
}

// DocumentKind implements posting.Postable.
func (s *SaleInvoice) DocumentKind() string {
	return documents.KindSaleInvoice
}

// MarkConfirmed flips the status. Cash-terms sales are collected at
// confirmation and come out fully paid.
func (s *SaleInvoice) MarkConfirmed(entryNumber int64) {
	s.Invoice.MarkConfirmed(entryNumber)
	if s.Terms == documents.TermsCash {
		s.PaidAmount = s.Total
		s.PaymentStatus = documents.PaymentPaid
	}
}

// MovementSpecs returns one OUT movement per item. No unit cost is supplied;
// the ledger captures the weighted average cost at issue, which the journal
// draft then reads for the COGS lines.
func (s *SaleInvoice) MovementSpecs(ctx context.Context) ([]inventory.MovementSpec, error) {
	specs := make([]inventory.MovementSpec, 0, len(s.Items))
	for _, it := range s.Items {
		specs = append(specs, inventory.MovementSpec{
			ProductID:   it.ProductID,
			WarehouseID: s.WarehouseID,
			Kind:        entity.MovementOut,
			Quantity:    it.Quantity,
			Document: entity.DocumentRef{
				Kind:   documents.KindSaleInvoice,
				ID:     s.ID,
				Number: s.Number,
				LineID: it.LineID,
			},
			Reference: fmt.Sprintf("%s/%d", s.Number, it.LineNo),
			Period:    s.Date,
			CreatedBy: s.CreatedBy,
		})
	}
	return specs, nil
}

// JournalDraft maps the sale to one entry: Dr cash/bank or the customer
// control account for the total, Cr sales revenue, plus Dr COGS / Cr
// inventory control at the cost each applied movement captured.
func (s *SaleInvoice) JournalDraft(ctx context.Context, applied []entity.StockMovement) (journal.ComposeInput, error) {
	refs := s.PostingRefs()

	lines := make([]journal.LineInput, 0, 2*len(applied)+3)

	debit := journal.LineInput{Debit: s.Total}
	if s.Terms == documents.TermsCash {
		debit.AccountCode = s.SettlementCode()
	} else {
		debit.AccountCode = refs.PartnerControlCode
		debit.Partner = &journal.PartnerRef{ID: s.PartnerID, Kind: refs.PartnerKind}
	}
	lines = append(lines, debit)

	lines = append(lines, journal.LineInput{
		AccountCode: refs.Accounts.SalesRevenue,
		Credit:      s.ItemsTotal(),
	})

	for _, m := range applied {
		cost := types.RoundMoney(m.UnitCost.Mul(m.Quantity.Decimal()))
		if !cost.IsPositive() {
			continue
		}
		lines = append(lines,
			journal.LineInput{
				AccountCode: refs.Accounts.COGS,
				Debit:       cost,
			},
			journal.LineInput{
				AccountCode: refs.Accounts.InventoryControl,
				Credit:      cost,
				Inventory:   &journal.InventoryRef{ProductID: m.ProductID, WarehouseID: m.WarehouseID},
			})
	}

	lines, err := documents.BalanceWithRounding(lines, refs.Accounts.RoundingDifference)
	if err != nil {
		return journal.ComposeInput{}, err
	}

	return journal.ComposeInput{
		Date:        s.Date,
		Description: fmt.Sprintf("Sale invoice %s", s.Number),
		Source:      journal.SourceRef{Kind: documents.KindSaleInvoice, ID: s.ID, Number: s.Number},
		CreatedBy:   s.CreatedBy,
		Lines:       lines,
	}, nil
}

var _ posting.Postable = (*SaleInvoice)(nil)
var _ documents.InvoiceDocument = (*SaleInvoice)(nil)
