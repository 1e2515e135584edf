// Package sale_return provides the sale return document: goods taken back
// from a customer. Revenue is backed out through the returns allowance and
// cost of goods sold is reversed at the original issue cost, not the current
// average.
package sale_return

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
const NumberPrefix = "SR"

// SaleReturn records goods returned by a customer. Each item's UnitCost is
// the original issue cost the goods re-enter stock at; a zero UnitCost falls
// back to the current weighted average.
type SaleReturn struct {
	documents.Invoice
}

// New creates a draft sale return.
func New(customerID, warehouseID id.ID, terms documents.Terms) *SaleReturn {
	return &SaleReturn{
		Invoice: documents.NewInvoice(customerID, warehouseID, terms),
	}
}

// DocumentKind implements posting.Postable.
func (s *SaleReturn) DocumentKind() string {
	return documents.KindSaleReturn
}

// AddCostedItem appends a line carrying the original issue cost.
func (s *SaleReturn) AddCostedItem(productID id.ID, qty types.Quantity, unitPrice, discount, tax, unitCost types.Money) {
	s.AddItem(productID, qty, unitPrice, discount, tax)
	s.Items[len(s.Items)-1].UnitCost = unitCost
}

// MovementSpecs returns one return-in movement per item at the item's
// original issue cost.
func (s *SaleReturn) MovementSpecs(ctx context.Context) ([]inventory.MovementSpec, error) {
	specs := make([]inventory.MovementSpec, 0, len(s.Items))
	for _, it := range s.Items {
		specs = append(specs, inventory.MovementSpec{
			ProductID:   it.ProductID,
			WarehouseID: s.WarehouseID,
			Kind:        entity.MovementReturnIn,
			Quantity:    it.Quantity,
			UnitCost:    it.UnitCost,
			Document: entity.DocumentRef{
				Kind:   documents.KindSaleReturn,
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

// JournalDraft maps the return: Dr sales returns allowance for the refund,
// Cr cash/bank or the customer control account, plus Dr inventory control /
// Cr COGS at the cost each applied movement carried back in.
func (s *SaleReturn) JournalDraft(ctx context.Context, applied []entity.StockMovement) (journal.ComposeInput, error) {
	refs := s.PostingRefs()

	lines := make([]journal.LineInput, 0, 2*len(applied)+3)

	lines = append(lines, journal.LineInput{
		AccountCode: refs.Accounts.SalesReturns,
		Debit:       s.ItemsTotal(),
	})

	credit := journal.LineInput{Credit: s.Total}
	if s.Terms == documents.TermsCash {
		credit.AccountCode = s.SettlementCode()
	} else {
		credit.AccountCode = refs.PartnerControlCode
		credit.Partner = &journal.PartnerRef{ID: s.PartnerID, Kind: refs.PartnerKind}
	}
	lines = append(lines, credit)

	for _, m := range applied {
		cost := types.RoundMoney(m.UnitCost.Mul(m.Quantity.Decimal()))
		if !cost.IsPositive() {
			continue
		}
		lines = append(lines,
			journal.LineInput{
				AccountCode: refs.Accounts.InventoryControl,
				Debit:       cost,
				Inventory:   &journal.InventoryRef{ProductID: m.ProductID, WarehouseID: m.WarehouseID},
			},
			journal.LineInput{
				AccountCode: refs.Accounts.COGS,
				Credit:      cost,
			})
	}

	lines, err := documents.BalanceWithRounding(lines, refs.Accounts.RoundingDifference)
	if err != nil {
		return journal.ComposeInput{}, err
	}

	return journal.ComposeInput{
		Date:        s.Date,
		Description: fmt.Sprintf("Sale return %s", s.Number),
		Source:      journal.SourceRef{Kind: documents.KindSaleReturn, ID: s.ID, Number: s.Number},
		CreatedBy:   s.CreatedBy,
		Lines:       lines,
	}, nil
}

var _ posting.Postable = (*SaleReturn)(nil)
var _ documents.InvoiceDocument = (*SaleReturn)(nil)
