package purchase_return

import (
	"pressledger/internal/core/config"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/posting"
	"pressledger/pkg/numerator"
)

// Repository is the purchase return persistence contract.
type Repository = documents.InvoiceRepository[*PurchaseReturn]

// Service provides purchase return operations.
type Service = documents.InvoiceService[*PurchaseReturn]

// NewService creates the purchase return service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	partnersSvc *partners.Service,
	accountsSvc *accounts.Service,
	num *numerator.Service,
	txManager tx.Manager,
	cfg config.Config,
) *Service {
	return documents.NewInvoiceService(documents.InvoiceServiceConfig[*PurchaseReturn]{
		Repo:         repo,
		Engine:       engine,
		Partners:     partnersSvc,
		Accounts:     accountsSvc,
		Numerator:    num,
		TxManager:    txManager,
		Cfg:          cfg,
		Kind:         documents.KindPurchaseReturn,
		PartnerKind:  partners.KindSupplier,
		NumberPrefix: NumberPrefix,
	})
}
