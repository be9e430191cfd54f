package shared

import (
	"errors"
)

// ErrorKind classifies a domain error for the command pipeline.
// The kind drives the ack/retry/dead-letter decision: everything except
// KindTransient is permanent from the command's point of view.
type ErrorKind string

const (
	// KindValidation marks a malformed command. Dead-lettered immediately.
	KindValidation ErrorKind = "VALIDATION"
	// KindCapacity marks a borrower at their active-loan limit.
	KindCapacity ErrorKind = "CAPACITY"
	// KindUnavailable marks a book with no available copies.
	KindUnavailable ErrorKind = "UNAVAILABLE"
	// KindRenewalLimit marks a loan at its renewal limit.
	KindRenewalLimit ErrorKind = "RENEWAL_LIMIT"
	// KindNotRenewable marks a renew request against a terminated loan.
	KindNotRenewable ErrorKind = "NOT_RENEWABLE"
	// KindConflict marks an entity in a terminal or incompatible state.
	KindConflict ErrorKind = "CONFLICT"
	// KindNotFound marks a command referencing an unknown entity.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindTransient marks a storage or broker I/O failure. Retried with backoff.
	KindTransient ErrorKind = "TRANSIENT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so sentinel
// errors work with errors.Is.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError(KindConflict, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(KindTransient, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(KindConflict, "INVALID_STATE", "Operation not allowed in current state")
	ErrNoAvailableCopies   = NewDomainError(KindUnavailable, "NO_AVAILABLE_COPIES", "No copies of this book are available")
	ErrLoanLimitReached    = NewDomainError(KindCapacity, "LOAN_LIMIT_REACHED", "Borrower has reached the active loan limit")
	ErrRenewalLimitReached = NewDomainError(KindRenewalLimit, "RENEWAL_LIMIT_REACHED", "Loan has reached the maximum number of renewals")
	ErrLoanNotRenewable    = NewDomainError(KindNotRenewable, "LOAN_NOT_RENEWABLE", "Returned loans cannot be renewed")
	ErrLoanAlreadyReturned = NewDomainError(KindConflict, "LOAN_ALREADY_RETURNED", "Loan was already returned")
)

// KindOf extracts the error kind from any error in the chain.
// Unclassified errors are treated as transient so they go through the
// bounded retry path instead of being dropped.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// IsPermanent reports whether the error must not be retried.
func IsPermanent(err error) bool {
	return KindOf(err) != KindTransient
}

// AsDomainError extracts a *DomainError from the chain, or nil.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}
