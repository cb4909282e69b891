package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// ValidationFailed creates a 400 error for malformed input
func ValidationFailed(message string, err error) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Forbidden creates a 403 error
func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Conflict creates a 409 error for duplicate fields and concurrent-state violations
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// InvalidTransition creates a 400 error for an illegal ride status change
func InvalidTransition(message string, err error) *AppError {
	return &AppError{
		Code:    "INVALID_TRANSITION",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error
func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// Domain-specific errors

var (
	ErrUserNotFound   = NotFound("User not found", nil)
	ErrDriverNotFound = NotFound("Driver profile not found", nil)
	ErrRideNotFound   = NotFound("Ride not found", nil)
	ErrNoActiveRide   = NotFound("No active ride found", nil)

	ErrInvalidCredentials = Unauthorized("Invalid email or password", nil)
	ErrAccountBlocked     = Forbidden("Account is blocked. Contact admin.", nil)
	ErrDriverNotApproved  = Forbidden("Driver not approved yet", nil)

	ErrDuplicateUser    = Conflict("User with this email or phone already exists", nil)
	ErrDuplicateDriver  = Conflict("Driver profile already exists", nil)
	ErrDuplicateLicense = Conflict("License number already registered", nil)
	ErrDuplicatePlate   = Conflict("Plate number already registered", nil)

	ErrActiveRideExists   = Conflict("An active ride already exists", nil)
	ErrRideAlreadyTaken   = Conflict("Ride is no longer available", nil)
	ErrDriverNotAvailable = Conflict("Driver is not available", nil)
	ErrRideAlreadyRated   = Conflict("Ride already rated", nil)

	ErrDriverOffline = ValidationFailed("Driver must be online", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
