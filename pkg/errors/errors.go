// Package errors defines the error taxonomy shared by the credential service.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrUnauthenticated is returned when a bearer token is missing, invalid or expired.
	// This is terminal; callers should not retry with the same token.
	ErrUnauthenticated = "unauthenticated"

	// ErrAuthBackendUnavailable is returned when the cluster authentication API
	// cannot be reached. This is retryable and must never be conflated with
	// ErrUnauthenticated, so callers do not cache a negative result.
	ErrAuthBackendUnavailable = "auth_backend_unavailable"

	// ErrUnbound is returned when a namespace has no discoverable tenant or
	// installation binding.
	ErrUnbound = "unbound"

	// ErrForbidden is returned when a validated identity requests a credential
	// it is not bound to.
	ErrForbidden = "forbidden"

	// ErrNotFound is returned when a secret or environment does not exist.
	ErrNotFound = "not_found"

	// ErrConflict is returned when a write loses a uniqueness race.
	ErrConflict = "conflict"

	// ErrDecryption is returned when ciphertext fails authentication or is malformed.
	ErrDecryption = "decryption_failed"

	// ErrInvalidArgument is returned when a caller violates a documented precondition.
	ErrInvalidArgument = "invalid_argument"

	// ErrInternal is returned when there is an internal error.
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewUnauthenticatedError creates a new unauthenticated error
func NewUnauthenticatedError(message string, cause error) *Error {
	return NewError(ErrUnauthenticated, message, cause)
}

// NewAuthBackendUnavailableError creates a new auth backend unavailable error
func NewAuthBackendUnavailableError(message string, cause error) *Error {
	return NewError(ErrAuthBackendUnavailable, message, cause)
}

// NewUnboundError creates a new unbound error
func NewUnboundError(message string, cause error) *Error {
	return NewError(ErrUnbound, message, cause)
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string, cause error) *Error {
	return NewError(ErrForbidden, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, cause error) *Error {
	return NewError(ErrConflict, message, cause)
}

// NewDecryptionError creates a new decryption error
func NewDecryptionError(message string, cause error) *Error {
	return NewError(ErrDecryption, message, cause)
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

func isType(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// IsUnauthenticated checks if the error is an unauthenticated error
func IsUnauthenticated(err error) bool {
	return isType(err, ErrUnauthenticated)
}

// IsAuthBackendUnavailable checks if the error is an auth backend unavailable error
func IsAuthBackendUnavailable(err error) bool {
	return isType(err, ErrAuthBackendUnavailable)
}

// IsUnbound checks if the error is an unbound error
func IsUnbound(err error) bool {
	return isType(err, ErrUnbound)
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	return isType(err, ErrForbidden)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return isType(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool {
	return isType(err, ErrConflict)
}

// IsDecryption checks if the error is a decryption error
func IsDecryption(err error) bool {
	return isType(err, ErrDecryption)
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return isType(err, ErrInvalidArgument)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrInternal)
}
