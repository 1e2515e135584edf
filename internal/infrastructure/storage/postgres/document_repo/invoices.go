package document_repo

import (
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/documents/purchase_return"
	"pressledger/internal/domain/documents/sale_invoice"
	"pressledger/internal/domain/documents/sale_return"
	"pressledger/internal/infrastructure/storage/postgres"
)

// NewPurchaseInvoiceRepo creates the purchase invoice repository.
func NewPurchaseInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo[*purchase_invoice.PurchaseInvoice] {
	return NewInvoiceRepo(txManager, documents.KindPurchaseInvoice,
		func() *purchase_invoice.PurchaseInvoice { return &purchase_invoice.PurchaseInvoice{} })
}

// NewSaleInvoiceRepo creates the sale invoice repository.
func NewSaleInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo[*sale_invoice.SaleInvoice] {
	return NewInvoiceRepo(txManager, documents.KindSaleInvoice,
		func() *sale_invoice.SaleInvoice { return &sale_invoice.SaleInvoice{} })
}

// NewPurchaseReturnRepo creates the purchase return repository.
func NewPurchaseReturnRepo(txManager *postgres.TxManager) *InvoiceRepo[*purchase_return.PurchaseReturn] {
	return NewInvoiceRepo(txManager, documents.KindPurchaseReturn,
		func() *purchase_return.PurchaseReturn { return &purchase_return.PurchaseReturn{} })
}

// NewSaleReturnRepo creates the sale return repository.
func NewSaleReturnRepo(txManager *postgres.TxManager) *InvoiceRepo[*sale_return.SaleReturn] {
	return NewInvoiceRepo(txManager, documents.KindSaleReturn,
		func() *sale_return.SaleReturn { return &sale_return.SaleReturn{} })
}

// Compile-time interface checks.
var (
	_ documents.InvoiceRepository[*purchase_invoice.PurchaseInvoice] = (*InvoiceRepo[*purchase_invoice.PurchaseInvoice])(nil)
	_ documents.InvoiceRepository[*sale_invoice.SaleInvoice]         = (*InvoiceRepo[*sale_invoice.SaleInvoice])(nil)
	_ documents.InvoiceRepository[*purchase_return.PurchaseReturn]   = (*InvoiceRepo[*purchase_return.PurchaseReturn])(nil)
	_ documents.InvoiceRepository[*sale_return.SaleReturn]           = (*InvoiceRepo[*sale_return.SaleReturn])(nil)
)
