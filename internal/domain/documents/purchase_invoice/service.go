package purchase_invoice

import (
	"pressledger/internal/core/config"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/posting"
	"pressledger/pkg/numerator"
)

// Repository is the purchase invoice persistence contract.
type Repository = documents.InvoiceRepository[*PurchaseInvoice]

// Service provides purchase invoice operations.
type Service = documents.InvoiceService[*PurchaseInvoice]

// NewService creates the purchase invoice service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	partnersSvc *partners.Service,
	accountsSvc *accounts.Service,
	num *numerator.Service,
	txManager tx.Manager,
	cfg config.Config,
) *Service {
	return documents.NewInvoiceService(documents.InvoiceServiceConfig[*PurchaseInvoice]{
		Repo:         repo,
		Engine:       engine,
		Partners:     partnersSvc,
		Accounts:     accountsSvc,
		Numerator:    num,
		TxManager:    txManager,
		Cfg:          cfg,
		Kind:         documents.KindPurchaseInvoice,
		PartnerKind:  partners.KindSupplier,
		NumberPrefix: NumberPrefix,
	})
}
