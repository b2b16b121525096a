// Package apperr defines the application error taxonomy shared by
// services, repositories and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindNotFound: entity absent, not owned by the caller, or hidden
	// by a visibility rule (archived).
	KindNotFound Kind = iota
	// KindConflict: duplicate unique field on create.
	KindConflict
	// KindInvalidState: operation requires a status the entity does
	// not currently hold.
	KindInvalidState
	// KindValidation: malformed or out-of-range input field.
	KindValidation
	// KindAuth: missing, invalid or expired credential.
	KindAuth
)

// Error is an application error with a stable kind and a
// human-readable detail message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// InvalidState builds a KindInvalidState error.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Auth builds a KindAuth error.
func Auth(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err. The second return is false when
// err is not an application error (unexpected internal failure).
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is an application error of kind k.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
