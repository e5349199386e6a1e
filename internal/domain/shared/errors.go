// Package shared contains common domain types, errors, and events
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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLeaseNotAcquired       = errors.New("lease not acquired")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "ranking", "reward"
	Op      string // Operation that failed, e.g., "Create", "Claim"
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

// User domain errors
var (
	ErrUserNotFound  = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserNotActive = NewDomainError("user", "CheckStatus", ErrInvalidState, "user is not active")
	ErrInvalidRole   = NewDomainError("user", "Validate", ErrInvalidInput, "invalid user role")
)

// Ranking domain errors
var (
	ErrSnapshotNotFound  = NewDomainError("ranking", "FindSnapshot", ErrNotFound, "ranking snapshot not found")
	ErrSnapshotExists    = NewDomainError("ranking", "CreateSnapshot", ErrAlreadyExists, "snapshot already exists for period")
	ErrInvalidRank       = NewDomainError("ranking", "Validate", ErrValueOutOfRange, "invalid rank")
	ErrInvalidCategory   = NewDomainError("ranking", "Validate", ErrInvalidInput, "invalid ranking category")
	ErrSnapshotProcessed = NewDomainError("ranking", "Process", ErrAlreadyProcessed, "snapshot already processed")
)

// Reward domain errors
var (
	ErrJobNotFound       = NewDomainError("reward", "FindJob", ErrNotFound, "reward job not found")
	ErrJobNotClaimed     = NewDomainError("reward", "Claim", ErrLeaseNotAcquired, "job is held by another worker")
	ErrJobRetriesExceeded = NewDomainError("reward", "Retry", ErrInvalidState, "job retry limit exceeded")
	ErrInvalidTransition = NewDomainError("reward", "Transition", ErrStateTransition, "invalid job state transition")
	ErrAlreadyRewarded   = NewDomainError("reward", "Award", ErrAlreadyExists, "user already rewarded for period")
	ErrRecordNotFound    = NewDomainError("reward", "FindRecord", ErrNotFound, "reward record not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
