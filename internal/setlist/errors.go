package setlist

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the HTTP layer maps them to status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated is returned by operations that need a signed-in caller.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrConflict means storage rejected a write that raced with another one; the
	// request can be retried.
	ErrConflict = errors.New("conflict")
)

// Error carries a client-facing message for one of the error kinds.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

func notFound(format string, args ...any) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) error {
	return &Error{kind: ErrForbidden, msg: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func unauthenticated(format string, args ...any) error {
	return &Error{kind: ErrUnauthenticated, msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &Error{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}
