package turn

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error code reported at the CLI boundary.
type Code string

const (
	CodeConflict         Code = "conflict"
	CodeNoActiveTurn     Code = "no_active_turn"
	CodeCorruption       Code = "corruption"
	CodeValidation       Code = "validation"
	CodeValidationFailed Code = "validation_failed"
	CodeMigration        Code = "migration"
	CodeIO               Code = "io"
	CodeNotFound         Code = "not_found"
)

// Error is a turn engine error carrying a code. errors.Is matches on Code,
// so callers compare against the sentinels below.
type Error struct {
	Code    Code
	Op      string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrConflict         = &Error{Code: CodeConflict}
	ErrNoActiveTurn     = &Error{Code: CodeNoActiveTurn}
	ErrCorruption       = &Error{Code: CodeCorruption}
	ErrValidation       = &Error{Code: CodeValidation}
	ErrValidationFailed = &Error{Code: CodeValidationFailed}
	ErrMigration        = &Error{Code: CodeMigration}
	ErrIO               = &Error{Code: CodeIO}
	ErrNotFound         = &Error{Code: CodeNotFound}
)

// NewError builds an Error with a formatted message.
func NewError(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error around a cause.
func WrapError(code Code, op string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetails attaches structured context reported alongside the code.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// DetailsOf returns the details of the first *Error in err's chain.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// asCoded passes through errors that already carry a code and wraps anything
// else as an IO error.
func asCoded(op string, err error, msg string) error {
	if CodeOf(err) != "" {
		return err
	}
	return WrapError(CodeIO, op, err, "%s", msg)
}
