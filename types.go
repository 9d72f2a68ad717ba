package bookmarkx

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Operator represents comparison operators.
type Operator string

const (
	// OpEq represents equality operator.
	OpEq Operator = "eq"
	// OpGt represents greater-than operator.
	OpGt Operator = "gt"
	// OpGte represents greater-than-or-equal operator.
	OpGte Operator = "gte"
	// OpLt represents less-than operator.
	OpLt Operator = "lt"
	// OpLte represents less-than-or-equal operator.
	OpLte Operator = "lte"
)

// ParseOperator converts the textual comparison used by the query language
// ("<", "<=", "=", ">", ">=") into an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "<":
		return OpLt, nil
	case "<=":
		return OpLte, nil
	case "=":
		return OpEq, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGte, nil
	}
	return "", errors.Wrapf(ErrInvalidExpression, "unknown comparison operator %q", s)
}

// Symbol returns the query language spelling of the operator.
func (o Operator) Symbol() string {
	switch o {
	case OpEq:
		return "="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	}
	return string(o)
}

// ErrorCode represents specific error codes for search operations.
type ErrorCode int

const (
	// ErrCodeInvalidOption is returned when an invalid option is provided.
	ErrCodeInvalidOption ErrorCode = iota + 1000

	// ErrCodeInvalidExpression is returned when an expression cannot be constructed.
	ErrCodeInvalidExpression

	// ErrCodeTimeout is returned when a search operation times out.
	ErrCodeTimeout

	// ErrCodeCanceled is returned when a search operation is canceled.
	ErrCodeCanceled

	// ErrCodeBackendUnavailable is returned when the store or the search backend fails.
	ErrCodeBackendUnavailable

	// ErrCodeSyntax is returned when query text does not match the grammar.
	ErrCodeSyntax

	// ErrCodeInvalidCursor is returned when a pagination cursor is malformed.
	ErrCodeInvalidCursor

	// ErrCodeNotLoaded is returned when a sort key needs a value that was never loaded.
	ErrCodeNotLoaded

	// ErrCodeMissingUser is returned when a query is evaluated without a user.
	ErrCodeMissingUser
)

// String returns the human-readable string representation of the error code.
// This implements the fmt.Stringer interface.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeInvalidOption:
		return "invalid option"
	case ErrCodeInvalidExpression:
		return "invalid expression"
	case ErrCodeTimeout:
		return "operation timed out"
	case ErrCodeCanceled:
		return "operation canceled"
	case ErrCodeBackendUnavailable:
		return "backend unavailable"
	case ErrCodeSyntax:
		return "syntax error"
	case ErrCodeInvalidCursor:
		return "invalid cursor"
	case ErrCodeNotLoaded:
		return "value not loaded"
	case ErrCodeMissingUser:
		return "missing user"
	default:
		return "unknown error"
	}
}

// newErrorWithCode creates a new error with a code and message.
func newErrorWithCode(code ErrorCode, msg string) error {
	err := errors.New(msg)
	return errors.WithSecondaryError(err, errors.Newf("code: %d", int(code)))
}

// Common errors that can be returned by search operations.
var (
	// ErrInvalidOption is returned when an invalid option is provided.
	ErrInvalidOption = newErrorWithCode(ErrCodeInvalidOption, "bookmarkx: invalid option")

	// ErrInvalidExpression is returned when an expression cannot be constructed.
	ErrInvalidExpression = newErrorWithCode(ErrCodeInvalidExpression, "bookmarkx: invalid expression")

	// ErrTimeout is returned when a search operation times out.
	ErrTimeout = newErrorWithCode(ErrCodeTimeout, "bookmarkx: operation timed out")

	// ErrCanceled is returned when a search operation is canceled.
	ErrCanceled = newErrorWithCode(ErrCodeCanceled, "bookmarkx: operation canceled")

	// ErrBackendUnavailable is returned when the store or the search backend fails.
	ErrBackendUnavailable = newErrorWithCode(ErrCodeBackendUnavailable, "bookmarkx: backend unavailable")

	// ErrSyntax is returned when query text does not match the grammar.
	ErrSyntax = newErrorWithCode(ErrCodeSyntax, "bookmarkx: syntax error")

	// ErrInvalidCursor is returned when a pagination cursor is malformed.
	ErrInvalidCursor = newErrorWithCode(ErrCodeInvalidCursor, "bookmarkx: invalid cursor")

	// ErrNotLoaded is returned when a sort key needs a value that was never loaded.
	ErrNotLoaded = newErrorWithCode(ErrCodeNotLoaded, "bookmarkx: value has not been loaded")

	// ErrMissingUser is returned when a query is evaluated without a user.
	ErrMissingUser = newErrorWithCode(ErrCodeMissingUser, "bookmarkx: missing user")
)

// WrapBackendError classifies a failure of the store or the search backend.
// Context errors map to ErrTimeout or ErrCanceled, anything else is reported as
// ErrBackendUnavailable with the original error attached.
func WrapBackendError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrCanceled) || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.WithSecondaryError(ErrTimeout, errors.Wrapf(err, format, args...))
	}
	if errors.Is(err, context.Canceled) {
		return errors.WithSecondaryError(ErrCanceled, errors.Wrapf(err, format, args...))
	}
	return errors.WithSecondaryError(ErrBackendUnavailable, errors.Wrapf(err, format, args...))
}
