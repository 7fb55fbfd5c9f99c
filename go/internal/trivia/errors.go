package trivia

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by engine operations.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindValidation          ErrorKind = "VALIDATION"
	KindNoQuestionAvailable ErrorKind = "NO_QUESTION_AVAILABLE"
)

// Error is a tagged failure with a human readable reason.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return e.Reason
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the reason text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNoQuestionAvailable = &Error{Kind: KindNoQuestionAvailable}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

func invalidState(format string, args ...interface{}) *Error {
	return newError(KindInvalidState, format, args...)
}

func validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// KindOf returns the kind of a trivia error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
