package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/mediajobs/internal/api/shared"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/fetch"
	"github.com/phrazzld/mediajobs/internal/process"
	"github.com/phrazzld/mediajobs/internal/store"
	"github.com/phrazzld/mediajobs/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	case errors.Is(err, fetch.ErrNoStream):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrProvider),
		errors.Is(err, domain.ErrInfrastructure):
		return http.StatusBadGateway

	case errors.Is(err, process.ErrTimeout):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error()

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, task.ErrQueueFull):
		return "Server is busy, try again later"

	case errors.Is(err, task.ErrQueueClosed):
		return "Server is shutting down"

	case errors.Is(err, fetch.ErrNoStream):
		return "No audio stream available for this URL"

	case errors.Is(err, domain.ErrProvider):
		return "Upstream provider failed"

	case errors.Is(err, domain.ErrInfrastructure):
		return "Supporting service unavailable"

	case errors.Is(err, process.ErrTimeout):
		return "Processing timed out"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted detail. A non-empty message overrides the mapped one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}

// SanitizeValidationError turns validator output into a short message that
// names the first failing field.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Validation error"
	}

	fe := fieldErrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url", "http_url":
		return "must be an absolute http(s) URL"
	case "min":
		return "too few items"
	case "max":
		return "too many items"
	default:
		return "validation failed"
	}
}
