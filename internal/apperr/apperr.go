// Package apperr defines the error taxonomy shared across adapters, the
// pipeline, and the HTTP API. Errors are created with New and inspected
// with Is/KindOf so the HTTP boundary can map them to status codes without
// every caller hand-rolling a switch over string messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one bucket of the error taxonomy. Each Kind maps to exactly one
// HTTP status code at the webapi boundary.
type Kind string

const (
	KindAuthFailure     Kind = "auth_failure"     // propagate 401/403; sync retries after credential refresh
	KindRateLimited     Kind = "rate_limited"     // 429 to client; sync backs off
	KindTransientRemote Kind = "transient_remote" // network/5xx; retried with exponential backoff up to 5 attempts
	KindPermanentRemote Kind = "permanent_remote" // 4xx other than auth; logged, user-visible on sync paths
	KindParse           Kind = "parse"            // LLM or webhook payload malformed; fall back or drop, never crash
	KindNotFound        Kind = "not_found"        // 404 to client
	KindUnauthorized    Kind = "unauthorized"     // invalid JWT; 401, WS close code 4001
	KindInternal        Kind = "internal"         // unhandled; 500 with generic body, full trace logged
)

// Error wraps an underlying cause with a taxonomy Kind and a short message
// safe to return to API callers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given Kind wrapping cause (which may be nil).
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the Kind carried by err, or KindInternal if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func AuthFailure(msg string, cause error) *Error     { return New(KindAuthFailure, msg, cause) }
func RateLimited(msg string, cause error) *Error     { return New(KindRateLimited, msg, cause) }
func TransientRemote(msg string, cause error) *Error { return New(KindTransientRemote, msg, cause) }
func PermanentRemote(msg string, cause error) *Error { return New(KindPermanentRemote, msg, cause) }
func Parse(msg string, cause error) *Error           { return New(KindParse, msg, cause) }
func NotFound(msg string, cause error) *Error        { return New(KindNotFound, msg, cause) }
func Unauthorized(msg string, cause error) *Error    { return New(KindUnauthorized, msg, cause) }
func Internal(msg string, cause error) *Error        { return New(KindInternal, msg, cause) }

// HTTPStatus maps a Kind to the status code the webapi boundary returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuthFailure:
		return 403
	case KindUnauthorized:
		return 401
	case KindRateLimited:
		return 429
	case KindNotFound:
		return 404
	case KindParse, KindPermanentRemote:
		return 400
	case KindTransientRemote:
		return 502
	default:
		return 500
	}
}
