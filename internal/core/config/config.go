// Package config holds the immutable core configuration. Services receive a
// Config value at construction; there is no global mutable settings object.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Accounts binds the stable account codes the posting mapper resolves
// against. The mapper fails explicitly when a bound code is missing from the
// chart of accounts; it never invents accounts.
type Accounts struct {
	RoundingDifference    string `envconfig:"ROUNDING_ACCOUNT_CODE" default:"5900"`
	CustomerControlParent string `envconfig:"CUSTOMER_CONTROL_PARENT_CODE" default:"1200"`
	SupplierControlParent string `envconfig:"SUPPLIER_CONTROL_PARENT_CODE" default:"2100"`
	InventoryControl      string `envconfig:"INVENTORY_CONTROL_ACCOUNT_CODE" default:"1300"`
	COGS                  string `envconfig:"COGS_ACCOUNT_CODE" default:"5100"`
	SalesRevenue          string `envconfig:"SALES_REVENUE_ACCOUNT_CODE" default:"4100"`
	SalesReturns          string `envconfig:"SALES_RETURNS_ACCOUNT_CODE" default:"4190"`
	DefaultCash           string `envconfig:"DEFAULT_CASH_ACCOUNT_CODE" default:"1010"`
	DefaultBank           string `envconfig:"DEFAULT_BANK_ACCOUNT_CODE" default:"1020"`

	SalaryExpense      string `envconfig:"SALARY_EXPENSE_ACCOUNT_CODE" default:"5200"`
	TaxPayable         string `envconfig:"TAX_PAYABLE_ACCOUNT_CODE" default:"2300"`
	InsurancePayable   string `envconfig:"INSURANCE_PAYABLE_ACCOUNT_CODE" default:"2310"`
	AdvanceReceivable  string `envconfig:"ADVANCE_RECEIVABLE_ACCOUNT_CODE" default:"1400"`
}

// Config is the immutable configuration injected into core services.
type Config struct {
	// DatabaseURL is the PostgreSQL DSN
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// LogLevel: debug, info, warn, error
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogDevelopment enables pretty console output
	LogDevelopment bool `envconfig:"LOG_DEVELOPMENT" default:"false"`

	// AllowNegativeStock relaxes the OUT-movement check. When true,
	// oversells are permitted but recorded as warning-level audit entries.
	AllowNegativeStock bool `envconfig:"ALLOW_NEGATIVE_STOCK" default:"false"`

	Accounts Accounts
}

// Load reads configuration from the environment (PRESSLEDGER_ prefix).
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("pressledger", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
