// Package documents provides the shared document base for the business
// document kinds and the payment-state machinery invoices carry.
package documents

import (
	"pressledger/internal/core/types"
)

// Document kind identifiers, stable across storage and source references.
const (
	KindPurchaseInvoice = "purchase_invoice"
	KindSaleInvoice     = "sale_invoice"
	KindPurchaseReturn  = "purchase_return"
	KindSaleReturn      = "sale_return"
	KindPayrollRun      = "payroll_run"
)

// Terms is the settlement terms of an invoice.
type Terms string

const (
	// TermsCash - settled at confirmation against a cash/bank account
	TermsCash Terms = "cash"
	// TermsCredit - settled later through the partner control account
	TermsCredit Terms = "credit"
)

// PaymentStatus tracks how much of an invoice has been settled.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// RecomputePaymentStatus derives the status from paid vs total. Paid within
// the rounding tolerance counts as fully paid.
func RecomputePaymentStatus(total, paid types.Money) PaymentStatus {
	if !paid.IsPositive() {
		return PaymentUnpaid
	}
	if types.WithinTolerance(paid, total) || paid.GreaterThan(total) {
		return PaymentPaid
	}
	return PaymentPartial
}
