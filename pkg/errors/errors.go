package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates insufficient permissions
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Ledger errors

var (
	// ErrPositionNotFound indicates the owner has no alive position
	ErrPositionNotFound = errors.New("position not found")

	// ErrPositionExists indicates the owner already holds an alive position
	ErrPositionExists = errors.New("position already exists")

	// ErrStakeTooSmall indicates the amount is below the level minimum
	ErrStakeTooSmall = errors.New("stake below level minimum")

	// ErrInvalidLevel indicates a level outside the configured range
	ErrInvalidLevel = errors.New("invalid level")

	// ErrPositionLocked indicates the position is inside a pre-scan lock window
	ErrPositionLocked = errors.New("position locked until scan settles")
)

// Scan errors

var (
	// ErrScanActive indicates a scan is already open for the level
	ErrScanActive = errors.New("scan already active for level")

	// ErrScanNotFound indicates no open scan for the level
	ErrScanNotFound = errors.New("no active scan for level")

	// ErrScanNotDue indicates the level's next scan time has not been reached
	ErrScanNotDue = errors.New("scan not due yet")

	// ErrSeedNotReady indicates the committed beacon round has not been produced
	ErrSeedNotReady = errors.New("committed beacon round not produced yet")

	// ErrSeedAlreadySet indicates the scan seed has already been activated
	ErrSeedAlreadySet = errors.New("scan seed already activated")

	// ErrWindowClosed indicates the submission window is not open
	ErrWindowClosed = errors.New("submission window closed")

	// ErrWindowOpen indicates the submission window has not elapsed yet
	ErrWindowOpen = errors.New("submission window still open")
)

// Reset timer errors

var (
	// ErrDeadlineNotReached indicates the reset deadline is still in the future
	ErrDeadlineNotReached = errors.New("reset deadline not reached")
)

// Circuit breaker errors

var (
	// ErrBreakerTripped indicates payouts are halted by the circuit breaker
	ErrBreakerTripped = errors.New("circuit breaker tripped")

	// ErrBreakerNotTripped indicates recovery requires a tripped breaker
	ErrBreakerNotTripped = errors.New("circuit breaker not tripped")

	// ErrTimelockActive indicates the recovery timelock has not elapsed
	ErrTimelockActive = errors.New("recovery timelock active")

	// ErrProposalExpired indicates the recovery proposal expired unexecuted
	ErrProposalExpired = errors.New("recovery proposal expired")

	// ErrProposalVetoed indicates the proposal was vetoed by a guardian
	ErrProposalVetoed = errors.New("recovery proposal vetoed")

	// ErrProposalExecuted indicates the proposal was already executed
	ErrProposalExecuted = errors.New("recovery proposal already executed")

	// ErrProposalInvalidated indicates the breaker re-tripped after the proposal
	ErrProposalInvalidated = errors.New("recovery proposal invalidated by re-trip")
)

// Value ledger errors

var (
	// ErrInsufficientBalance indicates insufficient pool balance for a transfer
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferFailed indicates the value ledger rejected a transfer
	ErrTransferFailed = errors.New("value ledger transfer failed")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
