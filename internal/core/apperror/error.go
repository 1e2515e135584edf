// Package apperror provides structured error handling for the accounting core.
// All business errors must use AppError so callers can branch on machine codes.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes grouped by failure class. Every code except IDEMPOTENT_REPLAY
// rolls back the enclosing transaction when surfaced from a posting path.
const (
	// Infrastructure failures
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Input failures
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"

	// Business rule violations
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeOverpayment        = "OVERPAYMENT"
	CodePeriodClosed       = "PERIOD_CLOSED"
	CodeDocumentPosted     = "DOCUMENT_ALREADY_POSTED"

	// Concurrency
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicate              = "DUPLICATE_ENTRY"

	// Not an error from the caller's perspective: the operation was already
	// performed and the prior result is returned as a no-op.
	CodeIdempotentReplay = "IDEMPOTENT_REPLAY"
)

// AppError is the standard error type for the core.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (bad input shape or bounds).
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewNotFound creates a reference error (missing account/partner/product).
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewInvariantViolation creates an invariant violation error (unbalanced
// entry, control-account mismatch, posting to a non-leaf account).
func NewInvariantViolation(message string) *AppError {
	return &AppError{
		Code:    CodeInvariantViolation,
		Message: message,
	}
}

// NewInsufficientStock creates a stock shortage error.
func NewInsufficientStock(product string, requested, available string) *AppError {
	return &AppError{
		Code:    CodeInsufficientStock,
		Message: "insufficient stock",
		Details: map[string]any{
			"product":   product,
			"requested": requested,
			"available": available,
		},
	}
}

// NewOverpayment creates an error for payments exceeding the open balance.
func NewOverpayment(invoice string, amount, outstanding string) *AppError {
	return &AppError{
		Code:    CodeOverpayment,
		Message: "payment exceeds invoice outstanding amount",
		Details: map[string]any{
			"invoice":     invoice,
			"amount":      amount,
			"outstanding": outstanding,
		},
	}
}

// NewPeriodClosed creates an error for postings into a closed period.
func NewPeriodClosed(period string) *AppError {
	return &AppError{
		Code:    CodePeriodClosed,
		Message: fmt.Sprintf("period %s is closed for postings", period),
		Details: map[string]any{"period": period},
	}
}

// NewDocumentPosted signals an attempt to modify a posted document.
func NewDocumentPosted(documentID string) *AppError {
	return &AppError{
		Code:    CodeDocumentPosted,
		Message: "cannot modify a posted document; reverse it instead",
		Details: map[string]any{"document_id": documentID},
	}
}

// NewConcurrentModification creates an optimistic/serialisation conflict
// error. Callers may retry the whole operation.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeConcurrentModification,
		Message: "record was modified by a concurrent operation",
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewDuplicate creates a duplicate entry error.
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:    CodeDuplicate,
		Message: fmt.Sprintf("%s with this %s already exists", entity, field),
		Details: map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// NewIdempotentReplay marks an operation that was already performed. The
// service layer unwraps it and returns the prior result as a no-op.
func NewIdempotentReplay(sourceKind string, sourceID any) *AppError {
	return &AppError{
		Code:    CodeIdempotentReplay,
		Message: "operation already performed",
		Details: map[string]any{"source_kind": sourceKind, "source_id": sourceID},
	}
}

// NewInternal creates an internal error (hides details from the caller).
func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// NewDatabase wraps a fatal store error for operator attention.
func NewDatabase(err error) *AppError {
	return &AppError{
		Code:    CodeDatabase,
		Message: "store operation failed",
		Err:     err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsIdempotentReplay checks if error is CodeIdempotentReplay
func IsIdempotentReplay(err error) bool {
	return HasCode(err, CodeIdempotentReplay)
}

// IsRetriable reports whether the caller may retry the operation verbatim.
// Only concurrency conflicts qualify; business rejections are final.
func IsRetriable(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
