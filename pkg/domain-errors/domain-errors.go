// Package domainerrors carries the registry's error taxonomy. Codes name
// what went wrong in registry terms; the transports map them to statuses.
package domainerrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInternal           Code = "internal_error"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// Registry lifecycle codes
	CodeNotAuthorized          Code = "not_authorized"           // Caller failed the owner check
	CodeAuthorityNotConfigured Code = "authority_not_configured" // No usable authority address
	CodeAuthorizationDenied    Code = "authorization_denied"     // Authority resumed with failure
)

// Error pairs a stable Code with a caller-facing message and, optionally,
// the infrastructure error behind it.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, New(code, ""))
// works as a code test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches msg and code to err. A code already present in err's chain
// wins over code, so a store's NotFound survives a generic Internal wrap.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain,
// or CodeInternal when err carries no domain code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsInternal reports whether err is an infrastructure failure rather than
// an expected refusal. Errors without a domain code count as internal.
func IsInternal(err error) bool {
	return err != nil && CodeOf(err) == CodeInternal
}
