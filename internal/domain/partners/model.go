// Package partners provides the customer and supplier ledger.
package partners

import (
	"context"
	"time"

	"pressledger/internal/core/apperror"
	"pressledger/internal/core/entity"
	"pressledger/internal/core/id"
	"pressledger/internal/core/types"
)

// Kind distinguishes customers from suppliers.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

// Partner is one customer or supplier. Each partner owns exactly one control
// sub-account under the configured customers or suppliers parent; the
// materialised balance is written only by the journal engine when it posts
// lines tagged with the partner.
//
// Sign convention: customers are debit-positive (positive balance = owed to
// us), suppliers are credit-positive (positive balance = we owe).
type Partner struct {
	entity.Catalog

	// Kind is customer or supplier; codes are unique per kind
	Kind Kind `db:"kind" json:"kind"`

	// CreditLimit caps open exposure (informational, not enforced here)
	CreditLimit types.Money `db:"credit_limit" json:"creditLimit"`

	// Balance is the materialised running balance
	Balance types.Money `db:"balance" json:"balance"`

	// ControlAccountID is the per-partner control sub-account
	ControlAccountID id.ID `db:"control_account_id" json:"controlAccountId"`
}

// NewPartner creates a new active partner without a control account yet.
func NewPartner(code, name string, kind Kind) *Partner {
	return &Partner{
		Catalog: entity.NewCatalog(code, name),
		Kind:    kind,
	}
}

// Validate implements entity.Validatable.
func (p *Partner) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch p.Kind {
	case KindCustomer, KindSupplier:
	default:
		return apperror.NewValidation("invalid partner kind").
			WithDetail("field", "kind").
			WithDetail("value", string(p.Kind))
	}

	if p.CreditLimit.IsNegative() {
		return apperror.NewValidation("credit limit must not be negative").
			WithDetail("field", "creditLimit")
	}

	return nil
}

// SignedDelta converts a posted line's debit/credit into the balance delta
// for this partner kind.
func (p *Partner) SignedDelta(debit, credit types.Money) types.Money {
	if p.Kind == KindSupplier {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// StatementLine is one row of a partner statement with a running balance.
type StatementLine struct {
	Date        time.Time   `db:"date" json:"date"`
	EntryNumber int64       `db:"entry_number" json:"entryNumber"`
	SourceKind  string      `db:"source_kind" json:"sourceKind,omitempty"`
	SourceRef   string      `db:"source_ref" json:"sourceRef,omitempty"`
	Description string      `db:"description" json:"description"`
	Debit       types.Money `db:"debit" json:"debit"`
	Credit      types.Money `db:"credit" json:"credit"`
	Running     types.Money `db:"-" json:"running"`
}

// Reconciliation is the result of a consistency check for one partner.
type Reconciliation struct {
	PartnerID    id.ID       `json:"partnerId"`
	Code         string      `json:"code"`
	OK           bool        `json:"ok"`
	Materialised types.Money `json:"materialised"`
	FromLines    types.Money `json:"fromLines"`
	Discrepancy  types.Money `json:"discrepancy"`
}
