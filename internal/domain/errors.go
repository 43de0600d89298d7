package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal error")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Error is a domain error that carries a message safe to return to clients.
// Kind is one of the sentinel errors above.
type Error struct {
	Kind    error
	Message string
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Internal hides err behind ErrInternal. The cause stays in the message for
// logs but is not reachable through errors.Is / errors.As.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
