// Package errors defines the coded error taxonomy shared by the planner
// services.
//
// Codes map onto the three failure families of the composition engine:
//   - VALIDATION: malformed editor or plot input, rejected before any mutation
//   - RESOLUTION: an asset reference that cannot be resolved against the catalog
//   - PERSISTENCE: save or load transport failures
//
// Wrap keeps the cause so callers can still use errors.Is/As on it.
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeValidation  Code = "VALIDATION"
	ErrCodeResolution  Code = "RESOLUTION"
	ErrCodePersistence Code = "PERSISTENCE"
	ErrCodeNotFound    Code = "NOT_FOUND"
	ErrCodeForbidden   Code = "FORBIDDEN"
	ErrCodeInternal    Code = "INTERNAL"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an existing cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
