package payments

import (
	"context"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/id"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/documents/sale_invoice"
)

// LockedInvoice is an invoice body held under a row lock, with a Save
// closure that persists the payment-state change through the owning
// repository.
type LockedInvoice struct {
	Body *documents.Invoice
	Save func(ctx context.Context) error
}

// InvoiceGateway locks invoices by (kind, id) across the invoice kinds that
// accept payments.
type InvoiceGateway interface {
	Lock(ctx context.Context, kind string, invoiceID id.ID) (*LockedInvoice, error)
}

type invoiceGateway struct {
	locks map[string]func(ctx context.Context, invoiceID id.ID) (*LockedInvoice, error)
}

// NewInvoiceGateway builds the gateway over the payable invoice kinds.
func NewInvoiceGateway(
	purchases documents.InvoiceRepository[*purchase_invoice.PurchaseInvoice],
	sales documents.InvoiceRepository[*sale_invoice.SaleInvoice],
) InvoiceGateway {
	return &invoiceGateway{
		locks: map[string]func(ctx context.Context, invoiceID id.ID) (*LockedInvoice, error){
			documents.KindPurchaseInvoice: lockThrough(purchases),
			documents.KindSaleInvoice:     lockThrough(sales),
		},
	}
}

func (g *invoiceGateway) Lock(ctx context.Context, kind string, invoiceID id.ID) (*LockedInvoice, error) {
	lock, ok := g.locks[kind]
	if !ok {
		return nil, apperror.NewValidation("document kind does not accept payments").
			WithDetail("kind", kind)
	}
	return lock(ctx, invoiceID)
}

func lockThrough[T documents.InvoiceDocument](repo documents.InvoiceRepository[T]) func(ctx context.Context, invoiceID id.ID) (*LockedInvoice, error) {
	return func(ctx context.Context, invoiceID id.ID) (*LockedInvoice, error) {
		doc, err := repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		return &LockedInvoice{
			Body: doc.Body(),
			Save: func(ctx context.Context) error {
				return repo.Update(ctx, doc)
			},
		}, nil
	}
}
