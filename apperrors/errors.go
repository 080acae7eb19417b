package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for translation at the HTTP boundary.
type Kind string

const (
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindLocked          Kind = "LOCKED"
	KindUnavailable     Kind = "UNAVAILABLE"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func InvalidArgument(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NotFound builds "<resource> not found".
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Locked(message string) *Error {
	return &Error{Kind: KindLocked, Message: message}
}

func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnavailable.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnavailable
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindLocked:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
