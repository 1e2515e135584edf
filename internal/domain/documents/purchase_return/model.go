// Package purchase_return provides the purchase return document: goods sent
// back to a supplier, valued at the return prices, refunded in cash or
// against the supplier's control account.
package purchase_return

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
const NumberPrefix = "PR"

// PurchaseReturn records goods returned to a supplier.
type PurchaseReturn struct {
	documents.Invoice
}

// New creates a draft purchase return.
func New(supplierID, warehouseID id.ID, terms documents.Terms) *PurchaseReturn {
	return &PurchaseReturn{
		Invoice: documents.NewInvoice(supplierID, warehouseID, terms),
	}
}

// DocumentKind implements posting.Postable.
func (p *PurchaseReturn) DocumentKind() string {
	return documents.KindPurchaseReturn
}

// MovementSpecs returns one return-out movement per item. The movement
// carries the line's unit value so the inventory credit equals the refund;
// the remaining stock keeps its average cost.
func (p *PurchaseReturn) MovementSpecs(ctx context.Context) ([]inventory.MovementSpec, error) {
	specs := make([]inventory.MovementSpec, 0, len(p.Items))
	for _, it := range p.Items {
		unitCost := types.ZeroMoney()
		if it.Quantity.IsPositive() {
			unitCost = types.RoundMoney(it.Total.Div(it.Quantity.Decimal()))
		}
		specs = append(specs, inventory.MovementSpec{
			ProductID:   it.ProductID,
			WarehouseID: p.WarehouseID,
			Kind:        entity.MovementReturnOut,
			Quantity:    it.Quantity,
			UnitCost:    unitCost,
			Document: entity.DocumentRef{
				Kind:   documents.KindPurchaseReturn,
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

// JournalDraft maps the return: Dr supplier control (credit terms) or
// cash/bank (cash refund) for the total, Cr inventory control per item.
func (p *PurchaseReturn) JournalDraft(ctx context.Context, applied []entity.StockMovement) (journal.ComposeInput, error) {
	refs := p.PostingRefs()

	lines := make([]journal.LineInput, 0, len(p.Items)+2)

	debit := journal.LineInput{Debit: p.Total}
	if p.Terms == documents.TermsCash {
		debit.AccountCode = p.SettlementCode()
	} else {
		debit.AccountCode = refs.PartnerControlCode
		debit.Partner = &journal.PartnerRef{ID: p.PartnerID, Kind: refs.PartnerKind}
	}
	lines = append(lines, debit)

	for _, it := range p.Items {
		lines = append(lines, journal.LineInput{
			AccountCode: refs.Accounts.InventoryControl,
			Credit:      it.Total,
			Inventory:   &journal.InventoryRef{ProductID: it.ProductID, WarehouseID: p.WarehouseID},
		})
	}

	lines, err := documents.BalanceWithRounding(lines, refs.Accounts.RoundingDifference)
	if err != nil {
		return journal.ComposeInput{}, err
	}

	return journal.ComposeInput{
		Date:        p.Date,
		Description: fmt.Sprintf("Purchase return %s", p.Number),
		Source:      journal.SourceRef{Kind: documents.KindPurchaseReturn, ID: p.ID, Number: p.Number},
		CreatedBy:   p.CreatedBy,
		Lines:       lines,
	}, nil
}

var _ posting.Postable = (*PurchaseReturn)(nil)
var _ documents.InvoiceDocument = (*PurchaseReturn)(nil)
