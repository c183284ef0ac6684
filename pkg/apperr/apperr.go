package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to decide how to respond.
type Kind int

const (
	Infrastructure Kind = iota
	Validation
	Conflict
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	default:
		return "infrastructure"
	}
}

// Error is a business-rule error. Field is set for validation failures.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind with an empty or equal message,
// so errors.Is(err, &Error{Kind: Conflict}) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func ValidationError(field, format string, args ...any) *Error {
	return &Error{Kind: Validation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain.
// Errors without one are infrastructure failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Infrastructure
}

func IsConflict(err error) bool   { return err != nil && KindOf(err) == Conflict }
func IsNotFound(err error) bool   { return err != nil && KindOf(err) == NotFound }
func IsValidation(err error) bool { return err != nil && KindOf(err) == Validation }
