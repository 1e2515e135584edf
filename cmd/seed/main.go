// Package main provides a CLI tool for seeding the chart of accounts, an
// open period, and demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/accounts"
	"pressledger/internal/domain/inventory"
	"pressledger/internal/domain/partners"
	"pressledger/internal/domain/periods"
	"pressledger/internal/infrastructure/storage/postgres"
	"pressledger/internal/infrastructure/storage/postgres/catalog_repo"
	"pressledger/internal/infrastructure/storage/postgres/inventory_repo"
	"pressledger/internal/infrastructure/storage/postgres/period_repo"
	"pressledger/pkg/logger"
)

// Fixed demo IDs so re-running the seeder stays idempotent.
var (
	demoWarehouseID = id.MustParse("018f0000-0000-7000-8000-000000000001")
	demoPaperID     = id.MustParse("018f0000-0000-7000-8000-000000000101")
	demoInkID       = id.MustParse("018f0000-0000-7000-8000-000000000102")
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx, "failed to load config", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	logger.Info(ctx, "connected to database")

	txManager := postgres.NewTxManager(pool)

	auditSvc, err := postgres.NewAuditService(txManager)
	if err != nil {
		logger.Fatal(ctx, "failed to create audit service", "error", err)
	}
	auditRec := postgres.NewAuditRecorder(auditSvc)

	accountsSvc := accounts.NewService(catalog_repo.NewAccountRepo(txManager), txManager)
	partnersSvc := partners.NewService(catalog_repo.NewPartnerRepo(txManager), accountsSvc, txManager, cfg)
	periodsSvc := periods.NewService(period_repo.NewPeriodRepo(txManager), txManager, partnersSvc, auditRec)
	ledger := inventory.NewLedger(inventory_repo.NewInventoryRepo(txManager), auditRec, cfg)

	if err := seedAccounts(ctx, accountsSvc, cfg); err != nil {
		logger.Fatal(ctx, "failed to seed chart of accounts", "error", err)
	}

	if err := seedPeriod(ctx, periodsSvc); err != nil {
		logger.Fatal(ctx, "failed to seed period", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedPartners(ctx, partnersSvc); err != nil {
			logger.Fatal(ctx, "failed to seed partners", "error", err)
		}
		if err := seedDemoStock(ctx, ledger, txManager); err != nil {
			logger.Fatal(ctx, "failed to seed demo stock", "error", err)
		}
	}

	logger.Info(ctx, "seeding completed successfully")
}

type accountSeed struct {
	code       string
	name       string
	accType    accounts.AccountType
	parentCode string
	isCash     bool
	isBank     bool
	isControl  bool
}

// seedAccounts inserts the press-business chart of accounts. Codes match the
// configured bindings so the posting mapper resolves out of the box.
func seedAccounts(ctx context.Context, svc *accounts.Service, cfg config.Config) error {
	acc := cfg.Accounts

	seeds := []accountSeed{
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

	for _, s := range seeds {
		existing, err := svc.Resolve(ctx, s.code)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("resolve %s: %w", s.code, err)
		}
		if existing != nil {
			logger.Info(ctx, "account already exists", "code", s.code)
			continue
		}

		a := accounts.NewAccount(s.code, s.name, s.accType)
		a.IsCash = s.isCash
		a.IsBank = s.isBank
		a.IsControl = s.isControl

		if s.parentCode != "" {
			parent, err := svc.Resolve(ctx, s.parentCode)
			if err != nil {
				return fmt.Errorf("resolve parent %s: %w", s.parentCode, err)
			}
			a.ParentID = &parent.ID
		}

		if err := svc.Create(ctx, a); err != nil {
			return fmt.Errorf("create account %s: %w", s.code, err)
		}
		logger.Info(ctx, "account created", "code", s.code, "name", s.name)
	}

	return nil
}

// seedPeriod opens the current fiscal year when no period covers today.
func seedPeriod(ctx context.Context, svc *periods.Service) error {
	now := time.Now().UTC()

	if _, err := svc.ResolveOpenForDate(ctx, now); err == nil {
		logger.Info(ctx, "open period already covers today")
		return nil
	}

	year := now.Year()
	name := fmt.Sprintf("FY%d", year)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	p, err := svc.Open(ctx, name, start, end)
	if err != nil {
		return fmt.Errorf("open period %s: %w", name, err)
	}

	logger.Info(ctx, "period opened", "name", p.Name, "start", start, "end", end)
	return nil
}

// seedPartners registers demo partners; each gets a control sub-account.
func seedPartners(ctx context.Context, svc *partners.Service) error {
	seeds := []struct {
		code string
		name string
		kind partners.Kind
	}{
		{"SUP-001", "Northern Paper Mill", partners.KindSupplier},
		{"SUP-002", "ChromaInk Supplies", partners.KindSupplier},
		{"CUS-001", "Atlas Publishing House", partners.KindCustomer},
		{"CUS-002", "City Print Shop", partners.KindCustomer},
	}

	for _, s := range seeds {
		existing, err := svc.GetByKindAndCode(ctx, s.kind, s.code)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("lookup partner %s: %w", s.code, err)
		}
		if existing != nil {
			logger.Info(ctx, "partner already exists", "code", s.code)
			continue
		}

		p := partners.NewPartner(s.code, s.name, s.kind)
		if err := svc.Register(ctx, p); err != nil {
			return fmt.Errorf("register partner %s: %w", s.code, err)
		}
		logger.Info(ctx, "partner registered", "code", s.code, "kind", string(s.kind))
	}

	return nil
}

// seedDemoStock books opening stock for two demo products through the
// inventory ledger, so balances and costs go through the normal path.
func seedDemoStock(ctx context.Context, ledger *inventory.Ledger, txManager *postgres.TxManager) error {
	seeds := []struct {
		productID id.ID
		name      string
		quantity  types.Quantity
		unitCost  types.Money
	}{
		{demoPaperID, "offset paper 80gsm", types.NewQuantityFromInt64(500), types.MustMoney("4.80")},
		{demoInkID, "process ink CMYK set", types.NewQuantityFromInt64(40), types.MustMoney("32.50")},
	}

	for _, s := range seeds {
		item, err := ledger.StockOnHand(ctx, s.productID, demoWarehouseID)
		if err != nil {
			return fmt.Errorf("check stock %s: %w", s.name, err)
		}
		if !item.Quantity.IsZero() {
			logger.Info(ctx, "demo stock already present", "product", s.name)
			continue
		}

		spec := inventory.MovementSpec{
			ProductID:   s.productID,
			WarehouseID: demoWarehouseID,
			Kind:        entity.MovementAdjustment,
			Quantity:    s.quantity,
			UnitCost:    s.unitCost,
			Document:    entity.DocumentRef{Kind: "stock_adjustment", ID: id.New(), Number: "SEED"},
			Reference:   fmt.Sprintf("SEED-%s", s.productID),
			Period:      time.Now().UTC(),
			CreatedBy:   "seeder",
		}

		err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := ledger.Apply(ctx, []inventory.MovementSpec{spec})
			return err
		})
		if err != nil {
			return fmt.Errorf("seed stock %s: %w", s.name, err)
		}

		logger.Info(ctx, "demo stock booked",
			"product", s.name,
			"quantity", s.quantity.String(),
			"unit_cost", s.unitCost.String())
	}

	return nil
}
