// Package serrors implements semantic errors: a small set of comparable
// kinds (bad request, rate limited, misconfigured, ...) that can be attached
// to any error so the transport layer can pick a status code without knowing
// where the error came from.
package serrors

import (
	"errors"
	"fmt"
)

// Kind is a semantic error category. Only values created by NewKind satisfy it.
type Kind interface {
	error
	isKind()
}

type kind struct{ name string }

func (k kind) Error() string { return k.name }
func (k kind) isKind()       {}

// NewKind returns a new kind sentinel with the given name. Two kinds are equal
// only when they have the same name.
func NewKind(name string) Kind { return kind{name: name} }

// Kinds used across the service.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = NewKind("NOT_FOUND")
	// ErrBadRequest indicates the caller sent invalid or unverifiable data.
	ErrBadRequest = NewKind("BAD_REQUEST")
	// ErrForbidden indicates the caller is not allowed to perform the operation.
	ErrForbidden = NewKind("FORBIDDEN")
	// ErrInternal indicates an unexpected failure inside the service.
	ErrInternal = NewKind("INTERNAL")
	// ErrTimeout indicates the operation ran out of time.
	ErrTimeout = NewKind("TIMEOUT")
	// ErrUnavailable indicates a dependency could not produce an answer right now.
	ErrUnavailable = NewKind("UNAVAILABLE")
	// ErrRateLimited indicates too many requests, either ours or an upstream's.
	ErrRateLimited = NewKind("RATE_LIMITED")
	// ErrMisconfigured indicates a required secret or credential is missing or
	// was rejected upstream. It must never be reported as "nothing found".
	ErrMisconfigured = NewKind("MISCONFIGURED")
)

// Error couples a Kind with an optional cause and message.
//
// errors.Is and errors.As match both the kind and anything in the cause chain,
// so callers can test for serrors.ErrRateLimited and for a concrete upstream
// error type on the same value.
type Error struct {
	kind Kind
	err  error
	msg  string
}

// With returns an error of kind k carrying a formatted message.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap returns an error of kind k that wraps err and carries a formatted message.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// KindOnly returns an error of kind k with neither message nor cause.
func KindOnly(k Kind) *Error { return &Error{kind: k} }

// Error renders "<msg>: <cause>", falling back to whichever part is present
// and finally to the kind name.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	case e.kind != nil:
		return e.kind.Error()
	}

	return "unknown error"
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the kind of e or appears in its cause chain.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}

	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}

	return e.err != nil && errors.Is(e.err, target)
}

// As assigns the kind or a matching error from the cause chain to target.
func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}

	if e.kind != nil && errors.As(e.kind, target) {
		return true
	}

	return e.err != nil && errors.As(e.err, target)
}

// Kind returns the kind of e.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the message attached to e, without the cause.
func (e *Error) Message() string { return e.msg }

// Cause returns the wrapped error or nil.
func (e *Error) Cause() error { return e.err }

// KindOf returns the kind of the outermost *Error found in err's chain, or nil
// when err carries no semantic kind.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.kind
	}

	return nil
}

// MessageOf returns the message of the outermost *Error in err's chain. It
// returns fallback when there is none or the message is empty.
func MessageOf(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.msg != "" {
		return se.msg
	}

	return fallback
}
