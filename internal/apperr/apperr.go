// Package apperr defines the typed outcomes services return for expected
// failures. Handlers translate them to HTTP statuses; anything not wrapped
// here is treated as a server error.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure.
type Kind int

const (
	// KindValidation covers malformed input and business-rule violations
	// such as an illegal clock transition.
	KindValidation Kind = iota
	// KindUnauthorized covers missing, invalid or expired credentials.
	// Handlers pair it with clearing both auth cookies.
	KindUnauthorized
	// KindForbidden covers a valid identity holding the wrong role.
	KindForbidden
	// KindNotFound covers missing records.
	KindNotFound
	// KindConflict covers uniqueness violations such as a duplicate email.
	KindConflict
)

// Error is a typed, client-safe failure.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// New constructs a typed error with a client-visible message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches an underlying cause that is logged but never shown to
// clients.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }

// As extracts a typed error from an error chain.
func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}
