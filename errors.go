package bazaar

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("bazaar: not found")
	ErrAlreadyExists = errors.New("bazaar: already exists")
	ErrInvalidInput  = errors.New("bazaar: invalid input")
	ErrUnauthorized  = errors.New("bazaar: unauthorized")

	// Registry errors
	ErrAssetNotFound = fmt.Errorf("%w: asset", ErrNotFound)

	// Marketplace errors
	ErrNotForSale    = errors.New("bazaar: asset is not for sale")
	ErrPriceMismatch = errors.New("bazaar: payment does not match price")
	ErrPaymentFailed = errors.New("bazaar: payment settlement failed")
	ErrReentrantCall = errors.New("bazaar: reentrant call")

	// Subscription errors
	ErrNotRenewable = errors.New("bazaar: subscription not renewable")

	// Arithmetic errors
	ErrOverflow  = errors.New("bazaar: arithmetic overflow")
	ErrUnderflow = errors.New("bazaar: arithmetic underflow")

	// Social graph errors
	ErrProfileNotFound = fmt.Errorf("%w: profile", ErrNotFound)

	// Store errors
	ErrStoreClosed     = errors.New("bazaar: store is closed")
	ErrRollbackFailed  = errors.New("bazaar: rollback failed")
	ErrMigrationFailed = errors.New("bazaar: migration failed")
)

// ValidationError represents a rejected argument.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bazaar: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError collects several errors, e.g. a call failure plus the undo
// steps that failed after it.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "bazaar: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("bazaar: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsArithmeticError returns true if a counter or timestamp bound was hit.
func IsArithmeticError(err error) bool {
	return errors.Is(err, ErrOverflow) || errors.Is(err, ErrUnderflow)
}

// IsRetryable returns true if resubmitting the same call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPaymentFailed) ||
		errors.Is(err, ErrStoreClosed)
}
