// Package apperr holds the error kinds shared across layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrStorage      = errors.New("storage failure")
)

// Error is an error of a known kind carrying a message fit for clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the kind so errors.Is matches the sentinels above.
func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound with the given message.
func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

// Validation returns an ErrValidation with the given message.
func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

// Conflict returns an ErrConflict with the given message.
func Conflict(format string, args ...any) error { return newf(ErrConflict, format, args...) }

// Unauthorized returns an ErrUnauthorized with the given message.
func Unauthorized(format string, args ...any) error { return newf(ErrUnauthorized, format, args...) }

// Message returns the client-facing text for err. Errors of an unknown kind
// collapse to fallback so internal details do not leak.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, kind) {
			return err.Error()
		}
	}
	return fallback
}
