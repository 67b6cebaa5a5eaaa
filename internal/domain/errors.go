package domain

import (
	"errors"
	"fmt"
)

// Error categories shared across the pipeline. Concrete errors wrap one of
// these so callers can classify failures with errors.Is.
var (
	// ErrValidation is returned when a request has a bad shape, size or
	// extension. It is surfaced synchronously and no job is created.
	ErrValidation = errors.New("validation failed")

	// ErrProvider is returned when a downstream provider answers with a
	// non-success status or a malformed body.
	ErrProvider = errors.New("provider error")

	// ErrEncoding is returned when the external encoder cannot produce a
	// payload under the provider's size ceiling.
	ErrEncoding = errors.New("encoding error")

	// ErrArchive is returned when the packaging stage cannot produce an archive.
	ErrArchive = errors.New("archive error")

	// ErrInfrastructure is returned for health-check and authentication
	// failures of supporting services.
	ErrInfrastructure = errors.New("infrastructure error")

	// ErrEmptyResult is returned when a unit of work produced no usable output.
	ErrEmptyResult = errors.New("job returned an empty result")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns ErrValidation so errors.Is works on the category.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ProviderError carries the status and message returned by a downstream provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap returns ErrProvider so errors.Is works on the category.
func (e *ProviderError) Unwrap() error {
	return ErrProvider
}
