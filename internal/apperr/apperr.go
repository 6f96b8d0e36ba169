// Package apperr defines the closed set of error kinds the admin API surface
// maps to HTTP responses. Lower layers (store, vault, container runtime,
// proxy) return plain wrapped errors; handlers translate them into one of
// these kinds at the boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds the HTTP layer understands.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindBadRequest   Kind = "bad_request"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindInternal     Kind = "internal"
)

// Error is a typed application error carrying a Kind and a human-readable
// message. The underlying cause is kept for logging but never serialized.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func Unauthorized(message string) *Error            { return newErr(KindUnauthorized, message, nil) }
func Forbidden(message string) *Error               { return newErr(KindForbidden, message, nil) }
func NotFound(message string) *Error                { return newErr(KindNotFound, message, nil) }
func BadRequest(message string) *Error               { return newErr(KindBadRequest, message, nil) }
func Conflict(message string) *Error                { return newErr(KindConflict, message, nil) }
func RateLimited(message string) *Error             { return newErr(KindRateLimited, message, nil) }
func Internal(cause error) *Error {
	msg := "internal error"
	if cause != nil {
		msg = cause.Error()
	}
	return newErr(KindInternal, msg, cause)
}

func Internalf(format string, args ...any) *Error {
	return Internal(fmt.Errorf(format, args...))
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindInternal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
