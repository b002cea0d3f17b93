package models

import "fmt"

// ValidationError rejects a request with a precise, caller-visible message,
// e.g. a refund amount above the remaining ceiling.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error
func NewValidationError(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError signals a missing transaction or reservation.
type NotFoundError struct {
	Entity string `json:"entity"`
	Ref    string `json:"ref"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Ref)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(entity, ref string) *NotFoundError {
	return &NotFoundError{Entity: entity, Ref: ref}
}

// ReconciliationError signals that the local ledger and the gateway disagree
// on refund history. It is logged for operator attention and never
// auto-corrected; the repair endpoint rebuilds from gateway truth on demand.
type ReconciliationError struct {
	TransactionID string `json:"transactionId"`
	Detail        string `json:"detail"`
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("ledger/gateway mismatch on transaction %s: %s", e.TransactionID, e.Detail)
}
