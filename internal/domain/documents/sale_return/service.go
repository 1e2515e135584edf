package sale_return

import (
	"pressledger/internal/core/config"
	"pressledger/internal/core/tx"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/documents"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/posting"
	"pressledger/pkg/numerator"
)

// Repository is the sale return persistence contract.
type Repository = documents.InvoiceRepository[*SaleReturn]

// Service provides sale return operations.
type Service = documents.InvoiceService[*SaleReturn]

// NewService creates the sale return service.
func NewService(
	repo Repository,
	engine *posting.Engine,
	partnersSvc *partners.Service,
	accountsSvc *accounts.Service,
	num *numerator.Service,
	txManager tx.Manager,
	cfg config.Config,
) *Service {
	return documents.NewInvoiceService(documents.InvoiceServiceConfig[*SaleReturn]{
		Repo:         repo,
		Engine:       engine,
		Partners:     partnersSvc,
		Accounts:     accountsSvc,
		Numerator:    num,
		TxManager:    txManager,
		Cfg:          cfg,
		Kind:         documents.KindSaleReturn,
		PartnerKind:  partners.KindCustomer,
		NumberPrefix: NumberPrefix,
	})
}
