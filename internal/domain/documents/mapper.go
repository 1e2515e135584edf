package documents

import (
	"pressledger/internal/core/apperror"
	"pressledger/internal/core/config"
	"pressledger/internal/core/types"
	"pressledger/internal/domain/journal"
	"pressledger/internal/domain/partners"
)

// PostingRefs carries the resolved account bindings a document needs to map
// itself into a journal draft. The owning service resolves and binds these
// before handing the document to the posting engine; they are never persisted.
type PostingRefs struct {
	Accounts           config.Accounts
	PartnerControlCode string
	PartnerKind        partners.Kind
}

// BindPosting attaches resolved posting references to the invoice.
func (inv *Invoice) BindPosting(refs PostingRefs) {
	inv.postingRefs = refs
}

// PostingRefs returns the bound references.
func (inv *Invoice) PostingRefs() PostingRefs {
	return inv.postingRefs
}

// SettlementCode returns the cash/bank account code for cash-terms postings.
func (inv *Invoice) SettlementCode() string {
	if inv.SettlementAccountCode != "" {
		return inv.SettlementAccountCode
	}
	return inv.postingRefs.Accounts.DefaultCash
}

// BalanceWithRounding closes the debit/credit gap of a drafted line set by
// placing the residual on the rounding-difference account. A residual beyond
// the tolerance is rejected; rounding never absorbs real imbalances.
func BalanceWithRounding(lines []journal.LineInput, roundingCode string) ([]journal.LineInput, error) {
	debit := types.ZeroMoney()
	credit := types.ZeroMoney()
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}

	diff := debit.Sub(credit)
	if diff.IsZero() {
		return lines, nil
	}
	if !types.WithinTolerance(debit, credit) {
		return nil, apperror.NewInvariantViolation("posting residual exceeds rounding tolerance").
			WithDetail("debit", debit.String()).
			WithDetail("credit", credit.String())
	}

	line := journal.LineInput{AccountCode: roundingCode}
	if diff.IsPositive() {
		line.Credit = diff
	} else {
		line.Debit = diff.Neg()
	}
	return append(lines, line), nil
}
