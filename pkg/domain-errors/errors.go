// Package errors provides coded domain errors. Services translate store-level
// sentinel errors into these; the HTTP layer translates codes into statuses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. The set is closed and mirrors the error
// taxonomy of the service boundary.
type Code string

const (
	// Input and validation failures.
	CodeValidation   Code = "validation"
	CodeInvalidInput Code = "invalid_input"

	// Resource facts.
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeAlreadyRecorded Code = "already_recorded"

	// Authentication / context resolution. Both are fatal to the request and
	// surface as 401; NoTenantContext additionally indicates a data-integrity
	// problem (a user row without a tenant).
	CodeUnauthenticated Code = "unauthenticated"
	CodeNoTenantContext Code = "no_tenant_context"

	// Authorization. A boundary violation is distinguished from ordinary
	// forbidden because it indicates probable payload tampering and is emitted
	// as a security event.
	CodeForbidden         Code = "forbidden"
	CodeBoundaryViolation Code = "tenant_boundary_violation"

	// Transient. LockTimeout is retryable by the caller with the same
	// idempotency key; nothing in the core retries it automatically.
	CodeLockTimeout Code = "lock_timeout"
	CodeTimeout     Code = "timeout"

	// Invariant violations are programming or data errors, not user errors.
	CodeInvariantViolation Code = "invariant_violation"

	CodeInternal Code = "internal"
)

// Error is a coded domain error that optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal if the error
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message, or a generic one for uncoded errors
// so internal detail never leaks to clients.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthenticated, CodeNoTenantContext:
		return http.StatusUnauthorized
	case CodeForbidden, CodeBoundaryViolation:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyRecorded:
		return http.StatusConflict
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeLockTimeout:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
