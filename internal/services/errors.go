package services

import (
	"errors"
	"fmt"
)

// Kind classifies a client-facing failure.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
)

// Violation is a single failed field rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a failure whose Message is safe to return to the client. Any
// other error returned by a service is internal.
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// UnverifiedError is returned by Login for an account whose email address
// has not been confirmed yet.
type UnverifiedError struct {
	UserID int
}

func (e *UnverifiedError) Error() string {
	return "Your email is not verified. Please verify your email using the OTP sent to your inbox."
}

// AsError unwraps err into a client-facing *Error.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

func invalid(message string, violations ...Violation) *Error {
	return &Error{Kind: KindValidation, Message: message, Violations: violations}
}

func conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}
