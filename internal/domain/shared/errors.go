// Package shared contains common domain types, errors, events and sink contracts
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Economy error kinds. Every error surfaced by the engine carries one of these
// as its Kind so callers can branch with errors.Is().
var (
	ErrInvalidPosition     = errors.New("invalid curriculum position")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountLocked       = errors.New("account is locked")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrAlreadyUnlocked     = errors.New("achievement already unlocked")
	ErrNotUnlocked         = errors.New("achievement not unlocked")
	ErrConfiguration       = errors.New("configuration error")
	ErrUnknownCriteriaType = errors.New("unknown criteria type")
	ErrCurriculumComplete  = errors.New("curriculum already complete")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRefund       = errors.New("invalid refund")
	ErrCurrencyRule        = errors.New("currency rule violation")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "curriculum", "achievement"
	Op      string // Operation that failed, e.g., "RecordSpend"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Errorf builds a domain error with a formatted message.
func Errorf(domain, op string, kind error, format string, args ...interface{}) *DomainError {
	return NewDomainError(domain, op, kind, fmt.Sprintf(format, args...))
}

// IsNotFound checks if the error is any "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrAchievementNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidPosition) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidRefund) ||
		errors.Is(err, ErrCurrencyRule)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
