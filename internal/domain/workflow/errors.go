package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorCode standardizes failure semantics across the enrollment, exam and
// certificate workflows.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeForbidden          ErrorCode = "forbidden"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeAttemptLimit       ErrorCode = "attempt_limit"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodeInternal           ErrorCode = "internal"
)

// Error carries a machine-readable code alongside the failing operation.
// ExistingID is set on conflict errors that refer to an already-existing
// resource (e.g. a duplicate enrollment).
type Error struct {
	Code       ErrorCode
	Op         string
	Message    string
	Cause      error
	ExistingID uuid.UUID
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	op, msg := e.Op, e.Message
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// NewConflict builds a conflict error pointing at the resource that already
// exists.
func NewConflict(op, message string, existingID uuid.UUID) error {
	return &Error{Code: CodeConflict, Op: op, Message: message, ExistingID: existingID}
}

func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: err.Error(), Cause: err}
}

// IsCode checks whether err (or a wrapped err) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var wErr *Error
	if !errors.As(err, &wErr) {
		return false
	}
	return wErr.Code == code
}

// CodeOf extracts the workflow error code when available.
func CodeOf(err error) ErrorCode {
	var wErr *Error
	if !errors.As(err, &wErr) {
		return ""
	}
	return wErr.Code
}

// ExistingIDOf extracts the conflicting resource id from a conflict error.
func ExistingIDOf(err error) uuid.UUID {
	var wErr *Error
	if !errors.As(err, &wErr) {
		return uuid.Nil
	}
	return wErr.ExistingID
}
