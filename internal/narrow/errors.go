package narrow

import (
	"errors"
	"fmt"
)

// Error codes shared by the compiler, the fetch engine and the CLI.
const (
	ErrCodeValidation  = "E101" // malformed term shape
	ErrCodeBadNarrow   = "E201" // unknown operator or unresolvable operand
	ErrCodeCombination = "E202" // structurally contradictory narrow
	ErrCodeInternal    = "E900" // invariant violation; never user input
)

// ValidationError reports a malformed term.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    ErrCodeValidation,
	}
}

// BadNarrowError is raised for unknown operators, unknown operands of
// closed-set operators and references that do not resolve.
type BadNarrowError struct {
	Desc string `json:"desc"`
}

func (e *BadNarrowError) Error() string {
	return "Invalid narrow operator: " + e.Desc
}

// BadNarrow builds a BadNarrowError.
func BadNarrow(format string, args ...any) *BadNarrowError {
	return &BadNarrowError{Desc: fmt.Sprintf(format, args...)}
}

// CombinationError is raised when terms contradict each other.
type CombinationError struct {
	Desc string `json:"desc"`
}

func (e *CombinationError) Error() string {
	return "Invalid narrow operator combination: " + e.Desc
}

// InternalError signals a broken invariant inside the compiler. It is a
// programming error and must never be shown as a client mistake.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsBadNarrow reports whether err is a BadNarrowError.
func IsBadNarrow(err error) bool {
	var be *BadNarrowError
	return errors.As(err, &be)
}

// IsCombination reports whether err is a CombinationError.
func IsCombination(err error) bool {
	var ce *CombinationError
	return errors.As(err, &ce)
}

// IsInternal reports whether err is an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// Code returns the error code for err, or "" when err is not one of the
// narrow error kinds.
func Code(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Code
	case IsBadNarrow(err):
		return ErrCodeBadNarrow
	case IsCombination(err):
		return ErrCodeCombination
	case IsInternal(err):
		return ErrCodeInternal
	default:
		return ""
	}
}
