// Package accounts provides the chart of accounts.
package accounts

import (
	"context"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// AccountType classifies an account in the chart.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeIncome    AccountType = "income"
	TypeExpense   AccountType = "expense"
	TypeCOGS      AccountType = "cost_of_goods_sold"
)

// Account is one node in the chart of accounts. Accounts form a tree; only
// leaves (accounts without children) may appear on journal lines. Codes are
// stable and never reused after deactivation.
type Account struct {
	entity.Catalog

	// Type classifies the account
	Type AccountType `db:"type" json:"type"`

	// ParentID links into the account tree (nil for roots)
	ParentID *id.ID `db:"parent_id" json:"parentId,omitempty"`

	// IsCash marks accounts usable for cash payments
	IsCash bool `db:"is_cash" json:"isCash"`

	// IsBank marks accounts usable for bank transfer and check payments
	IsBank bool `db:"is_bank" json:"isBank"`

	// IsControl marks accounts whose balance mirrors a subsidiary ledger.
	// Lines on control accounts must carry the matching partner or
	// inventory reference.
	IsControl bool `db:"is_control" json:"isControl"`
}

// NewAccount creates a new active account.
func NewAccount(code, name string, accType AccountType) *Account {
	return &Account{
		Catalog: entity.NewCatalog(code, name),
		Type:    accType,
	}
}

// Validate implements entity.Validatable.
func (a *Account) Validate(ctx context.Context) error {
	if err := a.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidAccountType(a.Type) {
		return apperror.NewValidation("invalid account type").
			WithDetail("field", "type").
			WithDetail("value", string(a.Type))
	}

	return nil
}

func isValidAccountType(t AccountType) bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense, TypeCOGS:
		return true
	}
	return false
}

// Balance holds the materialised per-account running totals. Only the journal
// engine writes these, under the same transaction as the posting.
type Balance struct {
	AccountID   id.ID       `db:"account_id" json:"accountId"`
	DebitTotal  types.Money `db:"debit_total" json:"debitTotal"`
	CreditTotal types.Money `db:"credit_total" json:"creditTotal"`
}

// Net returns debit minus credit. Asset and expense accounts carry positive
// nets; liability, equity, and income accounts carry negative nets.
func (b Balance) Net() types.Money {
	return b.DebitTotal.Sub(b.CreditTotal)
}

// IsZero reports whether both sides are zero.
func (b Balance) IsZero() bool {
	return b.DebitTotal.IsZero() && b.CreditTotal.IsZero()
}
