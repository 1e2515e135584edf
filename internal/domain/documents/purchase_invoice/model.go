// Package purchase_invoice provides the purchase invoice document: goods
// received from a supplier, settled in cash at confirmation or on credit
// through the supplier's control account.
package purchase_invoice

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
const NumberPrefix = "PI"

// PurchaseInvoice records incoming goods from a supplier.
type PurchaseInvoice struct {
	documents.Invoice
}

// New creates a draft purchase invoice.
func New(supplierID, warehouseID id.ID, terms documents.Terms) *PurchaseInvoice {
	return &PurchaseInvoice{
		Invoice: documents.NewInvoice(supplierID, warehouseID, terms),
	}
}

// DocumentKind implements posting.Postable.
func (p *PurchaseInvoice) DocumentKind() string {
	return documents.KindPurchaseInvoice
}

// MarkConfirmed flips the status. Cash-terms invoices are settled at
// confirmation and come out fully paid.
func (p *PurchaseInvoice) MarkConfirmed(entryNumber int64) {
	p.Invoice.MarkConfirmed(entryNumber)
	if p.Terms == documents.TermsCash {
		p.PaidAmount = p.Total
		p.PaymentStatus = documents.PaymentPaid
	}
}

// MovementSpecs returns one IN movement per item. The receipt unit cost is
// the line total over quantity, so discounts and tax land in stock value.
func (p *PurchaseInvoice) MovementSpecs(ctx context.Context) ([]inventory.MovementSpec, error) {
	specs := make([]inventory.MovementSpec, 0, len(p.Items))
	for _, it := range p.Items {
		unitCost := types.ZeroMoney()
		if it.Quantity.IsPositive() {
			unitCost = types.RoundMoney(it.Total.Div(it.Quantity.Decimal()))
		}
		specs = append(specs, inventory.MovementSpec{
			ProductID:   it.ProductID,
			WarehouseID: p.WarehouseID,
			Kind:        entity.MovementIn,
			Quantity:    it.Quantity,
			UnitCost:    unitCost,
			Document: entity.DocumentRef{
				Kind:   documents.KindPurchaseInvoice,
				ID:     p.ID,
				Number: p.Number,
				LineID: it.LineID,
			},
			Reference: fmt.Sprintf("%s/%d", p.Number, it.LineNo),
			Period:    p.Date,
			CreatedBy: p.CreatedBy,
		})
	}
	return specs, nil
}

// JournalDraft maps the invoice to its entry: Dr inventory control per item,
// Cr cash/bank (cash terms) or the supplier control account (credit terms).
func (p *PurchaseInvoice) JournalDraft(ctx context.Context, applied []entity.StockMovement) (journal.ComposeInput, error) {
	refs := p.PostingRefs()

	lines := make([]journal.LineInput, 0, len(p.Items)+2)
	for _, it := range p.Items {
		lines = append(lines, journal.LineInput{
			AccountCode: refs.Accounts.InventoryControl,
			Debit:       it.Total,
			Inventory:   &journal.InventoryRef{ProductID: it.ProductID, WarehouseID: p.WarehouseID},
		})
	}

	credit := journal.LineInput{Credit: p.Total}
	if p.Terms == documents.TermsCash {
		credit.AccountCode = p.SettlementCode()
	} else {
		credit.AccountCode = refs.PartnerControlCode
		credit.Partner = &journal.PartnerRef{ID: p.PartnerID, Kind: refs.PartnerKind}
	}
	lines = append(lines, credit)

	lines, err := documents.BalanceWithRounding(lines, refs.Accounts.RoundingDifference)
	if err != nil {
		return journal.ComposeInput{}, err
	}

	return journal.ComposeInput{
		Date:        p.Date,
		Description: fmt.Sprintf("Purchase invoice %s", p.Number),
		Source:      journal.SourceRef{Kind: documents.KindPurchaseInvoice, ID: p.ID, Number: p.Number},
		CreatedBy:   p.CreatedBy,
		Lines:       lines,
	}, nil
}

var _ posting.Postable = (*PurchaseInvoice)(nil)
var _ documents.InvoiceDocument = (*PurchaseInvoice)(nil)
