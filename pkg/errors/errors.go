package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the kind of failure
type ErrorType string

const (
	// Caller errors
	ErrorTypeInvalidArgument  ErrorType = "INVALID_ARGUMENT"
	ErrorTypeImmutable        ErrorType = "IMMUTABLE"
	ErrorTypeInvalidTarget    ErrorType = "INVALID_TARGET"
	ErrorTypeInvalidValue     ErrorType = "INVALID_VALUE"
	ErrorTypeUnknownAttribute ErrorType = "UNKNOWN_ATTRIBUTE"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"

	// Infrastructure errors
	ErrorTypeIndexUnavailable ErrorType = "INDEX_UNAVAILABLE"
	ErrorTypeDatabase         ErrorType = "DATABASE"
	ErrorTypeInternal         ErrorType = "INTERNAL"
)

// AppError represents an application-specific error.
// Messages are diagnostic; user-facing text is the transport's job.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newError(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

// Constructor functions

// NewInvalidArgumentError reports missing or malformed input
func NewInvalidArgumentError(message string) *AppError {
	return newError(ErrorTypeInvalidArgument, message)
}

// NewImmutableError reports an attempt to change a protected field
func NewImmutableError(field string) *AppError {
	return newError(ErrorTypeImmutable, fmt.Sprintf("attribute '%s' cannot be changed", field)).
		WithDetail("attribute", field)
}

// NewInvalidTargetError reports an operation aimed at the root or a missing node
func NewInvalidTargetError(message string) *AppError {
	return newError(ErrorTypeInvalidTarget, message)
}

// NewInvalidValueError reports a semantically disallowed value
func NewInvalidValueError(message string) *AppError {
	return newError(ErrorTypeInvalidValue, message)
}

// NewUnknownAttributeError reports an attribute outside the node schema
func NewUnknownAttributeError(attr string) *AppError {
	return newError(ErrorTypeUnknownAttribute, fmt.Sprintf("attribute '%s' does not exist", attr)).
		WithDetail("attribute", attr)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewIndexUnavailableError reports a search backend failure
func NewIndexUnavailableError(operation string, err error) *AppError {
	return newError(ErrorTypeIndexUnavailable, fmt.Sprintf("search index operation '%s' failed", operation)).
		WithCause(err)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newError(ErrorTypeDatabase, fmt.Sprintf("database operation '%s' failed", operation)).
		WithCause(err)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, message)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// TypeOf returns the error type, or INTERNAL for foreign errors
func TypeOf(err error) ErrorType {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsInvalidArgument checks for INVALID_ARGUMENT
func IsInvalidArgument(err error) bool {
	return IsType(err, ErrorTypeInvalidArgument)
}

// IsImmutable checks for IMMUTABLE
func IsImmutable(err error) bool {
	return IsType(err, ErrorTypeImmutable)
}

// IsInvalidTarget checks for INVALID_TARGET
func IsInvalidTarget(err error) bool {
	return IsType(err, ErrorTypeInvalidTarget)
}

// IsInvalidValue checks for INVALID_VALUE
func IsInvalidValue(err error) bool {
	return IsType(err, ErrorTypeInvalidValue)
}

// IsUnknownAttribute checks for UNKNOWN_ATTRIBUTE
func IsUnknownAttribute(err error) bool {
	return IsType(err, ErrorTypeUnknownAttribute)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsIndexUnavailable checks for INDEX_UNAVAILABLE
func IsIndexUnavailable(err error) bool {
	return IsType(err, ErrorTypeIndexUnavailable)
}

// IsNonFatal reports whether the operation that returned err still took effect.
// Only search index failures qualify: the graph is authoritative.
func IsNonFatal(err error) bool {
	return IsIndexUnavailable(err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
