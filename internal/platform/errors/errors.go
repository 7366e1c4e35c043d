// Package errors is the collector's structured error type
package errors

// Import as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for transports and logs
// values go out on the wire; append only
type ErrorCode uint16

const (
	// ErrorCodeUnknown is anything unclassified
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic marks a recovered panic
	ErrorCodePanic

	// ErrorCodeUnavailable is a transient dependency failure (lead endpoint, postgres)
	ErrorCodeUnavailable

	// ErrorCodeTooManyRequests is for throttled callers
	ErrorCodeTooManyRequests

	// ErrorCodeConflict is a write that lost a race
	ErrorCodeConflict

	// ErrorCodeUnauthorized is a missing or bad credential
	ErrorCodeUnauthorized

	// ErrorCodeForbidden is a refused operation
	ErrorCodeForbidden

	// ErrorCodeInvalidArgument is a call the collector cannot serve as configured
	ErrorCodeInvalidArgument

	// ErrorCodeValidation is bad caller input
	ErrorCodeValidation

	// ErrorCodeJSON is an undecodable or unencodable body
	ErrorCodeJSON

	// ErrorCodeNotFound is a missing resource
	ErrorCodeNotFound

	// ErrorCodeDuplicateKey is a unique violation
	ErrorCodeDuplicateKey

	// ErrorCodeDB is any other database failure
	ErrorCodeDB
)

var statusByCode = map[ErrorCode]int{
	ErrorCodeNotFound:        http.StatusNotFound,
	ErrorCodeInvalidArgument: http.StatusUnprocessableEntity,
	ErrorCodeDuplicateKey:    http.StatusConflict,
	ErrorCodeConflict:        http.StatusConflict,
	ErrorCodeValidation:      http.StatusBadRequest,
	ErrorCodeJSON:            http.StatusBadRequest,
	ErrorCodeUnauthorized:    http.StatusUnauthorized,
	ErrorCodeForbidden:       http.StatusForbidden,
	ErrorCodeTooManyRequests: http.StatusTooManyRequests,
	ErrorCodeUnavailable:     http.StatusServiceUnavailable,
}

// HTTPStatusCode maps a code to its HTTP status; unmapped codes are 500
func HTTPStatusCode(c ErrorCode) int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// String names the code for logs
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodePanic:
		return "panic"
	case ErrorCodeUnavailable:
		return "unavailable"
	case ErrorCodeTooManyRequests:
		return "too_many_requests"
	case ErrorCodeConflict:
		return "conflict"
	case ErrorCodeUnauthorized:
		return "unauthorized"
	case ErrorCodeForbidden:
		return "forbidden"
	case ErrorCodeInvalidArgument:
		return "invalid_argument"
	case ErrorCodeValidation:
		return "validation"
	case ErrorCodeJSON:
		return "json"
	case ErrorCodeNotFound:
		return "not_found"
	case ErrorCodeDuplicateKey:
		return "duplicate_key"
	case ErrorCodeDB:
		return "db"
	}
	return "unknown"
}

// ErrNotFound is the shared not-found sentinel
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a code, a developer-facing message, and optionally the
// offending field, an operation label, and the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Wire is the JSON shape of an error inside a response envelope
type Wire struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", msg, e.orig)
	}
	return msg
}

// Unwrap returns the cause
func (e *Error) Unwrap() error { return e.orig }

// Code returns the code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending input field
func (e *Error) Field() string { return e.field }

// Op returns the operation label
func (e *Error) Op() string { return e.op }

// ToWire drops the cause; causes never leave the process
func (e *Error) ToWire() Wire { return Wire{Code: e.code, Message: e.msg, Field: e.field} }

// WireFrom maps any error to its wire form; foreign errors become Unknown
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
}

// Root returns the innermost cause
func Root(err error) error {
	for err != nil {
		next := stderrs.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// CodeOf returns the code of the outermost *Error in the chain
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus is HTTPStatusCode(CodeOf(err))
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As finds the outermost *Error in the chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithField returns a copy of err naming the offending field; foreign errors pass through
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp returns a copy of err labelled with op; foreign errors pass through
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// New builds an *Error
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf builds an *Error with a formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap builds an *Error around orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf builds an *Error around orig with a formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf is Wrap for a possibly nil err
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// InvalidArgf builds an InvalidArgument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Validationf builds a Validation error naming field
func Validationf(field, format string, a ...any) error {
	return &Error{code: ErrorCodeValidation, msg: fmt.Sprintf(format, a...), field: field}
}

// NotFoundf builds a NotFound error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// JSONErrf builds a JSON error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// PanicErrf builds a Panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Unavailablef builds an Unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// HTTP returns the status and wire form in one call
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return HTTPStatus(err), WireFrom(err)
}
