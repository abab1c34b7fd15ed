// Package apierr defines the system's error kinds and their mapping to
// HTTP status codes, per the error handling design: kinds are semantic,
// not Go types, so ordinary errors can be tagged without new wrapper
// hierarchies per package.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a semantic error classification, independent of where the error
// originated.
type Kind string

// Error kind constants.
const (
	NotFound       Kind = "not_found"
	Unauthenticated Kind = "unauthenticated"
	Forbidden      Kind = "forbidden"
	Conflict       Kind = "conflict"
	RateLimited    Kind = "rate_limited"
	InvalidInput   Kind = "invalid_input"
	Upstream       Kind = "upstream"
	Internal       Kind = "internal"
)

// Error is a Kind-tagged error. Wrap any cause with New to carry it through
// service boundaries while preserving the ability to map it to a status
// code at the transport edge.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs a Kind-tagged error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a Kind-tagged error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal when err is not
// (or does not wrap) an *Error — an unclassified error is always treated as
// a bug, never silently surfaced as something more benign.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Internal
}

// StatusCode maps a Kind to its canonical HTTP status, per the external
// interfaces table.
func StatusCode(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case InvalidInput:
		return http.StatusBadRequest
	case Upstream:
		return http.StatusBadGateway
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
