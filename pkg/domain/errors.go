package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories surfaced by the engines.
// Transport layers map kinds to status codes with a total switch; no kind is
// ever wrapped in another.
type ErrorKind string

// Failure categories.
const (
	// KindNotFound indicates a referenced entity is absent.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindBadRequest indicates the operation is illegal in the current state
	// or violates a business rule such as the weight limit.
	KindBadRequest ErrorKind = "BAD_REQUEST"
	// KindConflict indicates the caller lost a race for a shared resource.
	KindConflict ErrorKind = "CONFLICT"
	// KindUnprocessable indicates the request is internally inconsistent.
	KindUnprocessable ErrorKind = "UNPROCESSABLE"
	// KindInternal indicates a data-integrity violation not attributable to
	// the caller. The reason is logged server-side, never surfaced.
	KindInternal ErrorKind = "INTERNAL"
)

// Error is the single error type returned by engine operations. Operational
// kinds carry a reason safe to surface verbatim; internal errors surface only
// a generic message.
type Error struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

// Operational reports whether the reason is safe to show to callers.
func (e *Error) Operational() bool { return e.Kind != KindInternal }

// PublicMessage returns the caller-visible message for the error.
func (e *Error) PublicMessage() string {
	if e.Operational() {
		return e.Reason
	}
	return "internal server error"
}

// NotFound constructs a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// BadRequest constructs a BAD_REQUEST error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Reason: fmt.Sprintf(format, args...)}
}

// Conflict constructs a CONFLICT error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// Unprocessable constructs an UNPROCESSABLE error.
func Unprocessable(format string, args ...any) *Error {
	return &Error{Kind: KindUnprocessable, Reason: fmt.Sprintf(format, args...)}
}

// Internal constructs an INTERNAL error wrapping cause. Cause may be nil.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the error kind; unrecognised errors classify as internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }
