package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a goviz error code.
type ErrorCode string

// Error codes, grouped by class.
const (
	// T01xx: Type errors
	ErrInvalidParameter     ErrorCode = "T0101" // statically known at construction
	ErrInvalidParameterType ErrorCode = "T0102" // resolved at compile time
	ErrInvalidHexColor      ErrorCode = "T0103"
	ErrUnknownColorName     ErrorCode = "T0104"
	ErrInvalidCast          ErrorCode = "T0105"

	// C02xx: Compile / metadata errors
	ErrUnknownProperty   ErrorCode = "C0201"
	ErrTooManyCategories ErrorCode = "C0202"
	ErrNotCompiled       ErrorCode = "C0203"
	ErrUnknownCategory   ErrorCode = "C0204"
	ErrShaderLink        ErrorCode = "C0205"

	// S03xx: Syntax errors
	ErrSyntax          ErrorCode = "S0301"
	ErrUnknownFunction ErrorCode = "S0302"
	ErrUnknownStyle    ErrorCode = "S0303"
	ErrArgumentCount   ErrorCode = "S0304"

	// U04xx: Update ordering errors
	ErrStaleUpdate ErrorCode = "U0401"

	// R05xx: Resource misuse
	ErrResourceFreed ErrorCode = "R0501"
	ErrInvalidData   ErrorCode = "R0502"
	ErrNotBound      ErrorCode = "R0503"
)

// Error represents a structured goviz error.
type Error struct {
	Code    ErrorCode
	Message string
	Expr    string // expression name, e.g. "buckets"
	Err     error
}

// NewError creates a new goviz error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new goviz error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s(): %s", e.Code, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithExpr records the expression the error originated from.
func (e *Error) WithExpr(name string) *Error {
	e.Expr = name
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Is reports whether target is a *Error with the same code, so that
// errors.Is(err, types.NewError(types.ErrStaleUpdate, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTypeError reports whether err is a construction or compile time type error.
func IsTypeError(err error) bool {
	switch CodeOf(err) {
	case ErrInvalidParameter, ErrInvalidParameterType, ErrInvalidHexColor, ErrUnknownColorName, ErrInvalidCast:
		return true
	}
	return false
}

// IsStale reports whether err rejected a superseded update.
func IsStale(err error) bool {
	return CodeOf(err) == ErrStaleUpdate
}

// IsFreed reports whether err was caused by using a freed resource.
func IsFreed(err error) bool {
	return CodeOf(err) == ErrResourceFreed
}
