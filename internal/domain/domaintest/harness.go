package domaintest

import (
	"context"
	"fmt"
	"time"

	"pressledger/internal/core/config"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/documents/payroll"
	"pressledger/internal/domain/documents/purchase_invoice"
	"pressledger/internal/domain/documents/purchase_return"
	"pressledger/internal/domain/documents/sale_invoice"
	"pressledger/internal/domain/documents/sale_return"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/payments"
	"pressledger/internal/domain/periods"
	"pressledger/internal/domain/posting"
	"pressledger/internal/domain/reports"
	"pressledger/internal/service"
	"pressledger/pkg/numerator"
)

// TestConfig returns the configuration used by tests: the default account
// code bindings without touching the environment.
func TestConfig() config.Config {
	return config.Config{
		DatabaseURL: "postgres://test",
		LogLevel:    "error",
		Accounts: config.Accounts{
			RoundingDifference:    "5900",
			CustomerControlParent: "1200",
			SupplierControlParent: "2100",
			InventoryControl:      "1300",
			COGS:                  "5100",
			SalesRevenue:          "4100",
			SalesReturns:          "4190",
			DefaultCash:           "1010",
			DefaultBank:           "1020",
			SalaryExpense:         "5200",
			TaxPayable:            "2300",
			InsurancePayable:      "2310",
			AdvanceReceivable:     "1400",
		},
	}
}

// Harness wires the full service stack over the in-memory store, with the
// standard chart of accounts seeded and an open period covering today.
type Harness struct {
	Store *Store
	Cfg   config.Config

	Accounts  *accounts.Service
	Partners  *partners.Service
	Periods   *periods.Service
	Journal   *journal.Engine
	Ledger    *inventory.Ledger
	Posting   *posting.Engine
	Numerator *numerator.Service

	PurchaseInvoiceRepo *InvoiceRepo[*purchase_invoice.PurchaseInvoice]
	SaleInvoiceRepo     *InvoiceRepo[*sale_invoice.SaleInvoice]
	PurchaseReturnRepo  *InvoiceRepo[*purchase_return.PurchaseReturn]
	SaleReturnRepo      *InvoiceRepo[*sale_return.SaleReturn]
	PayrollRepo         *PayrollRepo

	PurchaseInvoices *purchase_invoice.Service
	SaleInvoices     *sale_invoice.Service
	PurchaseReturns  *purchase_return.Service
	SaleReturns      *sale_return.Service
	Payroll          *payroll.Service

	Payments *payments.Service
	Advances *payments.AdvanceBook
	Reports  *reports.Service

	Core *service.Core
}

// NewHarness builds the full stack. It panics on seeding errors; a broken
// harness fails every test anyway.
func NewHarness() *Harness {
	s := NewStore()
	cfg := TestConfig()
	txm := TxManager{}

	h := &Harness{Store: s, Cfg: cfg}

	h.Accounts = accounts.NewService(s.Accounts, txm)
	h.Partners = partners.NewService(s.Partners, h.Accounts, txm, cfg)
	h.Periods = periods.NewService(s.Periods, txm, h.Partners, s.Audit)
	h.Numerator = numerator.New(s.Sequences)
	h.Journal = journal.NewEngine(s.Journal, h.Accounts, s.Partners, h.Periods, h.Numerator, s.Audit, txm)
	h.Ledger = inventory.NewLedger(s.Inventory, s.Audit, cfg)
	h.Posting = posting.NewEngine(h.Ledger, h.Journal, s.Audit, txm)

	h.PurchaseInvoiceRepo = NewInvoiceRepo(func(d *purchase_invoice.PurchaseInvoice) *purchase_invoice.PurchaseInvoice {
		c := *d
		return &c
	})
	h.SaleInvoiceRepo = NewInvoiceRepo(func(d *sale_invoice.SaleInvoice) *sale_invoice.SaleInvoice {
		c := *d
		return &c
	})
	h.PurchaseReturnRepo = NewInvoiceRepo(func(d *purchase_return.PurchaseReturn) *purchase_return.PurchaseReturn {
		c := *d
		return &c
	})
	h.SaleReturnRepo = NewInvoiceRepo(func(d *sale_return.SaleReturn) *sale_return.SaleReturn {
		c := *d
		return &c
	})
	h.PayrollRepo = NewPayrollRepo()

	h.PurchaseInvoices = purchase_invoice.NewService(h.PurchaseInvoiceRepo, h.Posting, h.Partners, h.Accounts, h.Numerator, txm, cfg)
	h.SaleInvoices = sale_invoice.NewService(h.SaleInvoiceRepo, h.Posting, h.Partners, h.Accounts, h.Numerator, txm, cfg)
	h.PurchaseReturns = purchase_return.NewService(h.PurchaseReturnRepo, h.Posting, h.Partners, h.Accounts, h.Numerator, txm, cfg)
	h.SaleReturns = sale_return.NewService(h.SaleReturnRepo, h.Posting, h.Partners, h.Accounts, h.Numerator, txm, cfg)

	h.Advances = payments.NewAdvanceBook(s.Advances, h.Journal, s.Audit, txm, cfg)
	h.Payroll = payroll.NewService(h.PayrollRepo, h.Posting, h.Advances, h.Numerator, txm, cfg)

	gateway := payments.NewInvoiceGateway(h.PurchaseInvoiceRepo, h.SaleInvoiceRepo)
	h.Payments = payments.NewService(s.Payments, gateway, h.Journal, h.Accounts, h.Partners, h.Numerator, s.Audit, txm, cfg)

	h.Reports = reports.NewService(s.Reports, h.Accounts)

	h.Core = service.NewCore(service.Deps{
		Accounts:         h.Accounts,
		Partners:         h.Partners,
		Periods:          h.Periods,
		Journal:          h.Journal,
		Ledger:           h.Ledger,
		Payments:         h.Payments,
		Advances:         h.Advances,
		Reports:          h.Reports,
		PurchaseInvoices: h.PurchaseInvoices,
		SaleInvoices:     h.SaleInvoices,
		PurchaseReturns:  h.PurchaseReturns,
		SaleReturns:      h.SaleReturns,
		Payroll:          h.Payroll,
		Audit:            s.Audit,
		TxManager:        txm,
	})

	ctx := context.Background()
	h.seedChart(ctx)
	h.seedPeriod(ctx)
	return h
}

type chartSeed struct {
	code       string
	name       string
	accType    accounts.AccountType
	parentCode string
	isCash     bool
	isBank     bool
	isControl  bool
}

// seedChart inserts the same chart the seeder installs, so the configured
// bindings resolve.
func (h *Harness) seedChart(ctx context.Context) {
	acc := h.Cfg.Accounts

	seeds := []chartSeed{
		{code: "1000", name: "Assets", accType: accounts.TypeAsset},
		{code: acc.DefaultCash, name: "Cash on hand", accType: accounts.TypeAsset, parentCode: "1000", isCash: true},
		{code: acc.DefaultBank, name: "Bank account", accType: accounts.TypeAsset, parentCode: "1000", isBank: true},
		{code: acc.CustomerControlParent, name: "Trade receivables", accType: accounts.TypeAsset, parentCode: "1000", isControl: true},
		{code: acc.InventoryControl, name: "Inventory", accType: accounts.TypeAsset, parentCode: "1000", isControl: true},
		{code: acc.AdvanceReceivable, name: "Payroll advances receivable", accType: accounts.TypeAsset, parentCode: "1000"},

		{code: "2000", name: "Liabilities", accType: accounts.TypeLiability},
		{code: acc.SupplierControlParent, name: "Trade payables", accType: accounts.TypeLiability, parentCode: "2000", isControl: true},
		{code: acc.TaxPayable, name: "Payroll tax payable", accType: accounts.TypeLiability, parentCode: "2000"},
		{code: acc.InsurancePayable, name: "Social insurance payable", accType: accounts.TypeLiability, parentCode: "2000"},

		{code: "3000", name: "Equity", accType: accounts.TypeEquity},

		{code: "4000", name: "Income", accType: accounts.TypeIncome},
		{code: acc.SalesRevenue, name: "Sales revenue", accType: accounts.TypeIncome, parentCode: "4000"},
		{code: acc.SalesReturns, name: "Sales returns", accType: accounts.TypeIncome, parentCode: "4000"},

		{code: "5000", name: "Expenses", accType: accounts.TypeExpense},
		{code: acc.COGS, name: "Cost of goods sold", accType: accounts.TypeCOGS, parentCode: "5000"},
		{code: acc.SalaryExpense, name: "Salary expense", accType: accounts.TypeExpense, parentCode: "5000"},
		{code: acc.RoundingDifference, name: "Rounding differences", accType: accounts.TypeExpense, parentCode: "5000"},
	}

	for _, seed := range seeds {
		a := accounts.NewAccount(seed.code, seed.name, seed.accType)
		a.IsCash = seed.isCash
		a.IsBank = seed.isBank
		a.IsControl = seed.isControl

		if seed.parentCode != "" {
			parent, err := h.Accounts.Resolve(ctx, seed.parentCode)
			if err != nil {
				panic(fmt.Sprintf("domaintest: resolve parent %s: %v", seed.parentCode, err))
			}
			a.ParentID = &parent.ID
		}

		if err := h.Accounts.Create(ctx, a); err != nil {
			panic(fmt.Sprintf("domaintest: seed account %s: %v", seed.code, err))
		}
	}
}

// seedPeriod opens one wide period around today, so documents and payments
// dated time.Now() always land in an open period.
func (h *Harness) seedPeriod(ctx context.Context) {
	now := time.Now().UTC()
	start := now.AddDate(-1, 0, 0)
	end := now.AddDate(1, 0, 0)
	if _, err := h.Periods.Open(ctx, "TEST", start, end); err != nil {
		panic(fmt.Sprintf("domaintest: open period: %v", err))
	}
}

// RegisterPartner registers a partner of the given kind, creating its control
// sub-account. Panics on error; used for fixtures only.
func (h *Harness) RegisterPartner(ctx context.Context, code, name string, kind partners.Kind) *partners.Partner {
	p := partners.NewPartner(code, name, kind)
	if err := h.Partners.Register(ctx, p); err != nil {
		panic(fmt.Sprintf("domaintest: register partner %s: %v", code, err))
	}
	return p
}
