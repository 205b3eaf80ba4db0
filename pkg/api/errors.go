package api

import (
	"errors"
	"fmt"
)

// The error taxonomy for backend calls. Every failure returned by the
// wrapper is one of these kinds (or a caller cancellation passed through),
// so call sites can branch with errors.As instead of string matching.

// ValidationError reports client-side validation that failed before any
// request was issued.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// AuthError reports a 401 response. The unauthorized hook has already
// fired by the time the caller sees it; the call must not be retried.
type AuthError struct{}

func (e *AuthError) Error() string {
	return "session expired"
}

// TimeoutError reports that a request exceeded its time bound.
type TimeoutError struct{}

func (e *TimeoutError) Error() string {
	return "request took too long"
}

// NetworkError reports that a connection could not be established.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "cannot reach server"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError reports a non-2xx response, carrying the body's
// error/message field when one could be parsed.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Kind names the taxonomy bucket of an error, for metrics and logs.
func Kind(err error) string {
	var (
		ve *ValidationError
		ae *AuthError
		te *TimeoutError
		ne *NetworkError
		se *ServerError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &se):
		return "server"
	default:
		return "other"
	}
}
