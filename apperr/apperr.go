// Package apperr holds the error taxonomy shared by the inventory, requisition and RIS
// layers. Handlers map a Kind to an HTTP status; callers match with errors.Is against the
// Err* sentinels, which compare by kind only.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound          Kind = "NotFound"
	Forbidden         Kind = "Forbidden"
	InvalidState      Kind = "InvalidState"
	InsufficientStock Kind = "InsufficientStock"
	Validation        Kind = "ValidationError"
	Conflict          Kind = "ConflictError"
	Internal          Kind = "Internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: NotFound}
	ErrForbidden         = &Error{Kind: Forbidden}
	ErrInvalidState      = &Error{Kind: InvalidState}
	ErrInsufficientStock = &Error{Kind: InsufficientStock}
	ErrValidation        = &Error{Kind: Validation}
	ErrConflict          = &Error{Kind: Conflict}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error     { return New(NotFound, format, args...) }
func Forbiddenf(format string, args ...any) *Error    { return New(Forbidden, format, args...) }
func InvalidStatef(format string, args ...any) *Error { return New(InvalidState, format, args...) }
func Validationf(format string, args ...any) *Error   { return New(Validation, format, args...) }
func Conflictf(format string, args ...any) *Error     { return New(Conflict, format, args...) }

// InsufficientStockError carries the shortage so handlers and tests can inspect it.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Available int
	Requested int
	Message   string
}

func (e *InsufficientStockError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ItemName != "" {
		return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ItemName, e.Available)
	}
	return fmt.Sprintf("Insufficient stock. Available: %d", e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == InsufficientStock
}

// KindOf reports the taxonomy kind of err, or Internal for anything unclassified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var se *InsufficientStockError
	if errors.As(err, &se) {
		return InsufficientStock
	}
	return Internal
}
