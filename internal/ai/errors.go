package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindRateLimit     Kind = "rate_limit"
	KindTransient     Kind = "transient"
	KindFatal         Kind = "fatal"
	KindEmptyResult   Kind = "empty_result"
)

// Error is returned by every provider. Callers branch on Kind, never on text.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider string, kind Kind, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// KindOf reports the classification of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classifyStatus maps a non-2xx HTTP status to a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return KindConfiguration
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout, status >= 500:
		return KindTransient
	default:
		return KindFatal
	}
}

// classifyTransport handles errors from the round trip itself.
func classifyTransport(provider string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return newError(provider, KindFatal, err)
	}
	return newError(provider, KindTransient, err)
}
