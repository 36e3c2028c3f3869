package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	// Capture side
	ErrorTypeConfiguration ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeInvalidState  ErrorType = "INVALID_STATE"
	ErrorTypeRecordingIO   ErrorType = "RECORDING_IO_ERROR"

	// Playback side
	ErrorTypeUnreadableAsset ErrorType = "UNREADABLE_ASSET"
	ErrorTypeUnsupportedRate ErrorType = "UNSUPPORTED_RATE"

	// API surface
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeRateLimit  ErrorType = "RATE_LIMITED"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same type, so callers can compare against
// the sentinel values below with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Code == "" || t.Code == e.Code)
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfiguration   = &AppError{Type: ErrorTypeConfiguration}
	ErrInvalidState    = &AppError{Type: ErrorTypeInvalidState}
	ErrRecordingIO     = &AppError{Type: ErrorTypeRecordingIO}
	ErrUnreadableAsset = &AppError{Type: ErrorTypeUnreadableAsset}
	ErrUnsupportedRate = &AppError{Type: ErrorTypeUnsupportedRate}
	ErrNotFound        = &AppError{Type: ErrorTypeNotFound}
)

// Error codes for configuration failures.
const (
	CodeNotAuthorized       = "NOT_AUTHORIZED"
	CodeDeviceBusy          = "DEVICE_BUSY"
	CodeNoMatchingFormat    = "NO_MATCHING_FORMAT"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeSessionConfigFailed = "SESSION_CONFIGURATION_FAILED"
)

// NewConfigurationError creates a device configuration error.
func NewConfigurationError(message string) *AppError {
	return New(ErrorTypeConfiguration, message, http.StatusServiceUnavailable)
}

// WrapConfigurationError wraps a device error as a configuration error.
func WrapConfigurationError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeConfiguration, message, http.StatusServiceUnavailable)
}

// NewInvalidStateError creates an error for an operation that is not valid
// in the current state.
func NewInvalidStateError(operation, state string) *AppError {
	return New(ErrorTypeInvalidState, fmt.Sprintf("%s not allowed while %s", operation, state), http.StatusConflict).
		WithDetails(map[string]interface{}{"operation": operation, "state": state})
}

// WrapRecordingIOError wraps a writer failure.
func WrapRecordingIOError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeRecordingIO, message, http.StatusInternalServerError)
}

// WrapUnreadableAssetError wraps an asset open failure.
func WrapUnreadableAssetError(err error, path string) *AppError {
	return Wrap(err, ErrorTypeUnreadableAsset, fmt.Sprintf("cannot read asset %s", path), http.StatusUnprocessableEntity)
}

// NewUnreadableAssetError creates an unreadable asset error without a cause.
func NewUnreadableAssetError(message string) *AppError {
	return New(ErrorTypeUnreadableAsset, message, http.StatusUnprocessableEntity)
}

// NewUnsupportedRateError creates an unsupported playback rate error.
func NewUnsupportedRateError(rate float64) *AppError {
	return New(ErrorTypeUnsupportedRate, fmt.Sprintf("playback rate %g is not supported", rate), http.StatusBadRequest).
		WithDetails(map[string]interface{}{"rate": rate})
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewRateLimitError is returned when a client exceeds the API request rate.
func NewRateLimitError() *AppError {
	return New(ErrorTypeRateLimit, "too many requests", http.StatusTooManyRequests)
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *AppError {
	return New(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err is, or wraps, an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}
