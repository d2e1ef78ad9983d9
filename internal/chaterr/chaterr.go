package chaterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the REST adapter and the websocket
// nack path need to see it.
type Kind string

const (
	NotAuthenticated Kind = "not-authenticated"
	PermissionDenied Kind = "permission-denied"
	NotFound         Kind = "not-found"
	InvalidArgument  Kind = "invalid-argument"
	Conflict         Kind = "conflict"
	Transient        Kind = "transient"
	Internal         Kind = "internal"
)

// Error carries a kind plus a human-readable reason. Reason is safe to
// show to clients; Err (if set) is the underlying cause and is not.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Newf builds an error of the given kind with a formatted reason.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to an underlying error.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the kind of err, defaulting to Internal for errors
// that were never classified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Internal
}

// ReasonOf extracts the client-safe reason, or a generic fallback.
func ReasonOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return "internal error"
}

// IsTransient reports whether the command may be retried as-is.
func IsTransient(err error) bool { return KindOf(err) == Transient }
