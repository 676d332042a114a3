package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions and HTTP mapping.
type Kind string

const (
	// KindValidation means caller-supplied input is structurally invalid.
	// Surfaced immediately, no side effects.
	KindValidation Kind = "validation"
	// KindStorage means a physical write or read failed (disk, permissions).
	KindStorage Kind = "storage"
	// KindConflict means a concurrent insert raced on a uniqueness constraint.
	// Recovered internally where possible, never a caller-visible failure for
	// content resolution.
	KindConflict Kind = "conflict"
	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = "not_found"
	// KindInvalidState means an operation was attempted against an entity that
	// is no longer in the expected state, e.g. finishing a job whose lease was
	// reclaimed by another worker.
	KindInvalidState Kind = "invalid_state"
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and message
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, or "" when err carries none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsStorage reports whether err is a storage error
func IsStorage(err error) bool { return KindOf(err) == KindStorage }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidState reports whether err is an invalid-state error
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
