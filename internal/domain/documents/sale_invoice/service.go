package sale_invoice

import (
	"pressledger/internal/core/config"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/posting"
	"pressledger/pkg/numerator"
)

// Repository is the sale invoice persistence contract.
type Repository = documents.InvoiceRepository[*SaleInvoice]

// Service provides sale invoice operations.
type Service = documents.InvoiceService[*SaleInvoice]

// NewService creates the sale invoice service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	partnersSvc *partners.Service,
	accountsSvc *accounts.Service,
	num *numerator.Service,
	txManager tx.Manager,
	cfg config.Config,
) *Service {
	return documents.NewInvoiceService(documents.InvoiceServiceConfig[*SaleInvoice]{
		Repo:         repo,
		Engine:       engine,
		Partners:     partnersSvc,
		Accounts:     accountsSvc,
		Numerator:    num,
		TxManager:    txManager,
		Cfg:          cfg,
		Kind:         documents.KindSaleInvoice,
		PartnerKind:  partners.KindCustomer,
		NumberPrefix: NumberPrefix,
	})
}
