package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeNotAuthorized ErrorCode = "NOT_AUTHORIZED"

	// Validation
	ErrCodeValidation ErrorCode = "VALIDATION"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Session lifecycle & admission
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeAlreadyJoined      ErrorCode = "ALREADY_JOINED"
	ErrCodeSessionFull        ErrorCode = "SESSION_FULL"
	ErrCodeSessionNotJoinable ErrorCode = "SESSION_NOT_JOINABLE"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// AsAppError extracts an *AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NotAuthorized(message string) *AppError {
	return New(ErrCodeNotAuthorized, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("%s is required", field))
}

func InvalidState(message string) *AppError {
	return New(ErrCodeInvalidState, message)
}

func AlreadyJoined() *AppError {
	return New(ErrCodeAlreadyJoined, "User already joined this session")
}

func SessionFull() *AppError {
	return New(ErrCodeSessionFull, "Session has reached maximum capacity")
}

func SessionNotJoinable() *AppError {
	return New(ErrCodeSessionNotJoinable, "Session is not available to join")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func StoreUnavailable(cause error) *AppError {
	return Wrap(ErrCodeStoreUnavailable, "Storage temporarily unavailable", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}
