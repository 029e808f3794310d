package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrEmbeddingDisabled is returned by the disabled embedding provider
	ErrEmbeddingDisabled = errors.New("embedding provider disabled")

	// ErrGenerationDisabled is returned by the disabled text generator
	ErrGenerationDisabled = errors.New("text generation disabled")

	// ErrDimensionMismatch indicates a provider returned a vector of the wrong size
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrVectorUnsupported indicates the store cannot run vector distance queries
	ErrVectorUnsupported = errors.New("vector search not supported by store")

	// ErrEmptyQuery indicates a query that is blank where one is required
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidWeight indicates a weight or threshold outside [0,1]
	ErrInvalidWeight = errors.New("value must be within [0,1]")
)

// CallerError is the only error class the search core surfaces to callers.
// It wraps ErrInvalidInput so errors.Is(err, ErrInvalidInput) holds.
type CallerError struct {
	Field  string
	Reason error
}

// NewCallerError creates a CallerError for a field
func NewCallerError(field string, reason error) *CallerError {
	return &CallerError{Field: field, Reason: reason}
}

func (e *CallerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInvalidInput, e.Field, e.Reason)
}

// Is matches ErrInvalidInput
func (e *CallerError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Unwrap exposes the underlying reason
func (e *CallerError) Unwrap() error {
	return e.Reason
}

// IsCallerError reports whether err is a CallerError
func IsCallerError(err error) bool {
	var ce *CallerError
	return errors.As(err, &ce)
}

// ValidateUnitInterval returns a CallerError if v is outside [0,1]
func ValidateUnitInterval(field string, v float64) error {
	if v < 0 || v > 1 || v != v {
		return NewCallerError(field, ErrInvalidWeight)
	}
	return nil
}
