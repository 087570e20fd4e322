package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
	"github.com/KaramelBytes/datasift-cli/internal/loader"
	"github.com/KaramelBytes/datasift-cli/internal/schema"
)

// APIError is a structured error response.
type APIError struct {
	StatusCode int         `json:"status_code"`
	Code       string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newError(status int, code, msg string, details interface{}) *APIError {
	return &APIError{StatusCode: status, Code: code, Message: msg, Details: details}
}

func errInvalidRequest(err error) *APIError {
	return newError(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

func errNotFound(resource string) *APIError {
	return newError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), nil)
}

func errValidation(err error) *APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInvalidRequest(err)
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return newError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", out)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_with", "required_without":
		return fmt.Sprintf("%s is required with %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// fromError maps pipeline errors onto API errors.
func fromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var mm *schema.MismatchError
	if errors.As(err, &mm) {
		return newError(http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", mm.Error(), map[string][]string{
			"missing":  mm.Missing,
			"detected": mm.Detected,
		})
	}
	var unsup *loader.UnsupportedSourceError
	if errors.As(err, &unsup) {
		return newError(http.StatusUnsupportedMediaType, "UNSUPPORTED_SOURCE", unsup.Error(), map[string]string{"extension": unsup.Ext})
	}
	switch {
	case errors.Is(err, filter.ErrUnknownColumn), errors.Is(err, aggregate.ErrUnknownColumn):
		return newError(http.StatusBadRequest, "UNKNOWN_COLUMN", err.Error(), nil)
	case errors.Is(err, filter.ErrKindMismatch), errors.Is(err, aggregate.ErrNotNumeric):
		return newError(http.StatusBadRequest, "KIND_MISMATCH", err.Error(), nil)
	case errors.Is(err, filter.ErrInvalidRange):
		return newError(http.StatusBadRequest, "INVALID_RANGE", err.Error(), nil)
	case errors.Is(err, aggregate.ErrUnknownReducer):
		return newError(http.StatusBadRequest, "UNKNOWN_REDUCER", err.Error(), nil)
	case errors.Is(err, errSessionNotFound):
		return errNotFound("dataset")
	}
	return newError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", err.Error())
}
