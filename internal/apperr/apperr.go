// Package apperr defines the caller-visible error taxonomy shared by the
// session registry, the editor buffer store, and the HTTP façade.
package apperr

import "fmt"

// Kind is one of the stable error categories a caller can switch on.
type Kind string

const (
	NotFound          Kind = "not_found"
	BadRequest        Kind = "bad_request"
	Conflict          Kind = "conflict"
	ResourceExhausted Kind = "resource_exhausted"
	Timeout           Kind = "timeout"
	PtyError          Kind = "pty_error"
	IoError           Kind = "io_error"
	Internal          Kind = "internal"
)

// Error is a typed error carrying a Kind the HTTP layer maps to a status
// code, and a human-readable message safe to return to a caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, if any; never part of Message
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return newf(NotFound, format, args...)
}

func BadRequestf(format string, args ...any) *Error {
	return newf(BadRequest, format, args...)
}

func Conflictf(format string, args ...any) *Error {
	return newf(Conflict, format, args...)
}

func ResourceExhaustedf(format string, args ...any) *Error {
	return newf(ResourceExhausted, format, args...)
}

func Timeoutf(format string, args ...any) *Error {
	return newf(Timeout, format, args...)
}

// Pty wraps err as a PtyError, describing which step failed (e.g. "spawn").
func Pty(step string, err error) *Error {
	return &Error{Kind: PtyError, Message: fmt.Sprintf("pty %s failed", step), Err: err}
}

// Io wraps err as an IoError.
func Io(op string, err error) *Error {
	return &Error{Kind: IoError, Message: fmt.Sprintf("io %s failed", op), Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal for unrecognized
// errors (e.g. ones that escaped translation at a boundary).
func KindOf(err error) Kind {
	var ae *Error
	if As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// As is a thin local alias of errors.As to keep this package import-light
// for callers that only need KindOf.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
