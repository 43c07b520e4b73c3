package utils

import (
	"errors"
	"fmt"
	"net/http"

	"herway/safety"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"`

	Fields []ValidationError `json:"fields,omitempty"`
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, statusCode int, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// GetServiceError extracts a ServiceError from anywhere in an error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

func NewForbiddenError(message string) error {
	return ServiceError{Code: ErrCodeAuthorization, Message: message, StatusCode: http.StatusForbidden}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewBadRequestError(message string) error {
	return ServiceError{Code: ErrCodeBadRequest, Message: message, StatusCode: http.StatusBadRequest}
}

func NewValidationError(errs []ValidationError) error {
	details := ""
	if len(errs) > 0 {
		details = errs[0].Message
	}
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    "Validation failed",
		Details:    details,
		StatusCode: http.StatusBadRequest,
		Fields:     errs,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       ErrCodeDatabase,
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewExternalServiceError(service string, cause error) error {
	return ServiceError{
		Code:       ErrCodeExternal,
		Message:    fmt.Sprintf("%s is currently unavailable", service),
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// FromSafetyError maps the state machine sentinels onto HTTP semantics.
// Errors it does not recognise are returned unchanged.
func FromSafetyError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := GetServiceError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, safety.ErrInvalidTransition):
		return NewServiceErrorWithCause(ErrCodeInvalidState, err.Error(), http.StatusConflict, err)
	case errors.Is(err, safety.ErrNoActiveSession):
		return NewServiceErrorWithCause(ErrCodeNoSession, "No active SOS session", http.StatusConflict, err)
	case errors.Is(err, safety.ErrSummaryInProgress):
		return NewServiceErrorWithCause(ErrCodeConflict, "A summary is already being generated", http.StatusConflict, err)
	case errors.Is(err, safety.ErrEmptyMessage), errors.Is(err, safety.ErrInvalidDuration):
		return NewServiceErrorWithCause(ErrCodeBadRequest, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, safety.ErrNoLiveFeed):
		return NewServiceErrorWithCause(ErrCodeNoLiveFeed, "Camera feed is not available", http.StatusConflict, err)
	case errors.Is(err, safety.ErrVoiceControlOff):
		return NewServiceErrorWithCause(ErrCodeInvalidState, "Voice control is off", http.StatusConflict, err)
	case errors.Is(err, safety.ErrCapabilityDenied):
		return NewServiceErrorWithCause(ErrCodeCapability, "Voice control not supported on this device", http.StatusUnprocessableEntity, err)
	case errors.Is(err, safety.ErrNoCollaborator):
		return NewExternalServiceError("AI assistant", err)
	}
	return err
}

// Error code constants
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  = "AUTHORIZATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeExternal       = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeNoSession      = "NO_ACTIVE_SESSION"
	ErrCodeNoLiveFeed     = "NO_LIVE_FEED"
	ErrCodeCapability     = "CAPABILITY_UNAVAILABLE"
)
