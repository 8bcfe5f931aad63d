package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the transport boundary.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInvalidCredential Kind = "INVALID_CREDENTIAL"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindMethodNotAllowed  Kind = "METHOD_NOT_ALLOWED"
	KindConflict          Kind = "CONFLICT"
	KindTooManyRequests   Kind = "TOO_MANY_REQUESTS"
	KindUnavailable       Kind = "UNAVAILABLE"
	KindInternal          Kind = "INTERNAL"
)

// Sentinel errors matched by errors.Is against any *Error of the same kind.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrConflict          = errors.New("conflict")
	ErrTooManyRequests   = errors.New("too many requests")
	ErrUnavailable       = errors.New("unavailable")
	ErrInternal          = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindInvalidInput:      ErrInvalidInput,
	KindUnauthorized:      ErrUnauthorized,
	KindInvalidCredential: ErrInvalidCredential,
	KindForbidden:         ErrForbidden,
	KindNotFound:          ErrNotFound,
	KindMethodNotAllowed:  ErrMethodNotAllowed,
	KindConflict:          ErrConflict,
	KindTooManyRequests:   ErrTooManyRequests,
	KindUnavailable:       ErrUnavailable,
	KindInternal:          ErrInternal,
}

var statuses = map[Kind]int{
	KindInvalidInput:      http.StatusBadRequest,
	KindUnauthorized:      http.StatusUnauthorized,
	KindInvalidCredential: http.StatusUnauthorized,
	KindForbidden:         http.StatusForbidden,
	KindNotFound:          http.StatusNotFound,
	KindMethodNotAllowed:  http.StatusMethodNotAllowed,
	KindConflict:          http.StatusConflict,
	KindTooManyRequests:   http.StatusTooManyRequests,
	KindUnavailable:       http.StatusServiceUnavailable,
	KindInternal:          http.StatusInternalServerError,
}

// Error is a domain failure carrying a user-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if status, ok := statuses[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	cpy := *e
	cpy.Err = err
	return &cpy
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *Error {
	return newError(KindInvalidInput, message)
}

// Validation creates a 400 error listing per-field problems.
func Validation(message string, fields map[string]string) *Error {
	e := newError(KindInvalidInput, message)
	e.Fields = fields
	return e
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message)
}

// InvalidCredential creates a 401 error for a credential that failed verification.
func InvalidCredential(message string) *Error {
	return newError(KindInvalidCredential, message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	return newError(KindForbidden, message)
}

// NotFound creates a 404 error.
func NotFound(resource string) *Error {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource))
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed() *Error {
	return newError(KindMethodNotAllowed, "method not allowed")
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return newError(KindConflict, message)
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *Error {
	return newError(KindTooManyRequests, message)
}

// Unavailable creates a 503 error for a dependency that cannot be reached.
func Unavailable(message string) *Error {
	return newError(KindUnavailable, message)
}

// Internal creates a 500 error. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "an internal error occurred", Err: err}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status()
}
