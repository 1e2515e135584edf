package documents

import (
	"context"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// Item is one line of an invoice or return.
// Total = quantity*unit_price - discount + tax, rounded half-even.
type Item struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`
	Discount  types.Money    `db:"discount" json:"discount"`
	Tax       types.Money    `db:"tax" json:"tax"`
	Total     types.Money    `db:"total" json:"total"`

	// UnitCost is used by sale returns only: the original issue cost the
	// returned goods re-enter stock at. Zero elsewhere.
	UnitCost types.Money `db:"unit_cost" json:"unitCost,omitempty"`
}

// NewItem builds a line with the total computed from its parts.
func NewItem(lineNo int, productID id.ID, qty types.Quantity, unitPrice, discount, tax types.Money) Item {
	gross := types.RoundMoney(unitPrice.Mul(qty.Decimal()))
	return Item{
		LineID:    id.New(),
		LineNo:    lineNo,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		Discount:  discount,
		Tax:       tax,
		Total:     types.RoundMoney(gross.Sub(discount).Add(tax)),
	}
}

// Validate checks line invariants.
func (it Item) Validate() error {
	if id.IsNil(it.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("lineNo", it.LineNo)
	}
	if !it.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("lineNo", it.LineNo).
			WithDetail("quantity", it.Quantity.String())
	}
	if it.UnitPrice.IsNegative() || it.Discount.IsNegative() || it.Tax.IsNegative() {
		return apperror.NewValidation("price, discount, and tax must not be negative").
			WithDetail("lineNo", it.LineNo)
	}
	if it.Total.IsNegative() {
		return apperror.NewValidation("line total must not be negative").
			WithDetail("lineNo", it.LineNo)
	}
	return nil
}

// Invoice is the common body of invoice-like documents (purchase and sale
// invoices and returns). Kind-specific postings live in the sub-packages.
type Invoice struct {
	entity.Document

	// PartnerID is the supplier or customer the document belongs to
	PartnerID id.ID `db:"partner_id" json:"partnerId"`

	// WarehouseID receives or issues the goods
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Terms selects cash settlement at confirmation vs the control account
	Terms Terms `db:"terms" json:"terms"`

	// SettlementAccountCode overrides the configured default cash/bank
	// account for cash-terms documents. Empty means use the default.
	SettlementAccountCode string `db:"settlement_account_code" json:"settlementAccountCode,omitempty"`

	// Totals (recalculated from items; Total is authoritative for payment)
	Subtotal      types.Money `db:"subtotal" json:"subtotal"`
	DiscountTotal types.Money `db:"discount_total" json:"discountTotal"`
	TaxTotal      types.Money `db:"tax_total" json:"taxTotal"`
	Total         types.Money `db:"total" json:"total"`

	// Payment state, maintained by the payment allocator
	PaidAmount    types.Money   `db:"paid_amount" json:"paidAmount"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`

	// Table part
	Items []Item `db:"-" json:"items"`

	// postingRefs is bound by the owning service before confirmation.
	postingRefs PostingRefs
}

// NewInvoice creates a draft invoice body.
func NewInvoice(partnerID, warehouseID id.ID, terms Terms) Invoice {
	return Invoice{
		Document:      entity.NewDocument(),
		PartnerID:     partnerID,
		WarehouseID:   warehouseID,
		Terms:         terms,
		PaymentStatus: PaymentUnpaid,
	}
}

// AddItem appends a line and recalculates totals.
func (inv *Invoice) AddItem(productID id.ID, qty types.Quantity, unitPrice, discount, tax types.Money) {
	inv.Items = append(inv.Items, NewItem(len(inv.Items)+1, productID, qty, unitPrice, discount, tax))
	inv.RecalculateTotals()
}

// RecalculateTotals refreshes header totals from the items.
func (inv *Invoice) RecalculateTotals() {
	inv.Subtotal = types.ZeroMoney()
	inv.DiscountTotal = types.ZeroMoney()
	inv.TaxTotal = types.ZeroMoney()
	inv.Total = types.ZeroMoney()

	for _, it := range inv.Items {
		inv.Subtotal = inv.Subtotal.Add(types.RoundMoney(it.UnitPrice.Mul(it.Quantity.Decimal())))
		inv.DiscountTotal = inv.DiscountTotal.Add(it.Discount)
		inv.TaxTotal = inv.TaxTotal.Add(it.Tax)
		inv.Total = inv.Total.Add(it.Total)
	}
}

// ItemsTotal sums the line totals.
func (inv *Invoice) ItemsTotal() types.Money {
	sum := types.ZeroMoney()
	for _, it := range inv.Items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// Validate checks the invoice body. The header total must equal the line sum
// within the rounding tolerance; a larger gap is a data error, not rounding.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(inv.PartnerID) {
		return apperror.NewValidation("partner is required").
			WithDetail("field", "partnerId")
	}
	if id.IsNil(inv.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if inv.Terms != TermsCash && inv.Terms != TermsCredit {
		return apperror.NewValidation("terms must be cash or credit").
			WithDetail("terms", string(inv.Terms))
	}
	if len(inv.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	for _, it := range inv.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	if !inv.Total.IsPositive() {
		return apperror.NewValidation("document total must be positive").
			WithDetail("total", inv.Total.String())
	}
	if !types.WithinTolerance(inv.Total, inv.ItemsTotal()) {
		return apperror.NewInvariantViolation("header total disagrees with line totals").
			WithDetail("total", inv.Total.String()).
			WithDetail("items_total", inv.ItemsTotal().String())
	}
	return nil
}

// GetID returns the document ID.
func (inv *Invoice) GetID() id.ID { return inv.ID }

// GetNumber returns the document number.
func (inv *Invoice) GetNumber() string { return inv.Number }

// GetDate returns the business date.
func (inv *Invoice) GetDate() time.Time { return inv.Date }

// Body returns the shared invoice body.
func (inv *Invoice) Body() *Invoice { return inv }

// CanConfirm reports whether the document is a confirmable draft.
func (inv *Invoice) CanConfirm() error {
	if inv.Status != entity.StatusDraft {
		return apperror.NewInvariantViolation("only draft documents can be confirmed").
			WithDetail("document_id", inv.ID.String()).
			WithDetail("status", string(inv.Status))
	}
	return nil
}

// Outstanding returns the unpaid remainder.
func (inv *Invoice) Outstanding() types.Money {
	return inv.Total.Sub(inv.PaidAmount)
}

// ApplyPayment adds a posted payment amount and recomputes the status.
func (inv *Invoice) ApplyPayment(amount types.Money) {
	inv.PaidAmount = types.RoundMoney(inv.PaidAmount.Add(amount))
	inv.PaymentStatus = RecomputePaymentStatus(inv.Total, inv.PaidAmount)
	inv.Touch()
}

// RestorePayment subtracts a voided payment amount and recomputes the status.
func (inv *Invoice) RestorePayment(amount types.Money) {
	inv.PaidAmount = types.RoundMoney(inv.PaidAmount.Sub(amount))
	if inv.PaidAmount.IsNegative() {
		inv.PaidAmount = types.ZeroMoney()
	}
	inv.PaymentStatus = RecomputePaymentStatus(inv.Total, inv.PaidAmount)
	inv.Touch()
}
