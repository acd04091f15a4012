package api

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindNetwork: no response reached the client (dial, timeout, open breaker).
	KindNetwork Kind = iota + 1
	// KindRejected: the backend answered with an error status.
	KindRejected
	// KindUnauthenticated: the backend answered 401.
	KindUnauthenticated
	// KindMalformed: a 2xx body that could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

var (
	ErrNetwork         = errors.New("api: network failure")
	ErrRejected        = errors.New("api: request rejected")
	ErrUnauthenticated = errors.New("api: unauthenticated")
	ErrMalformed       = errors.New("api: malformed response")
)

// Error is returned by every resource call that fails.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("api %s (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("api %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrUnauthenticated:
		return e.Kind == KindUnauthenticated
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// UserMessage returns the backend's message when the backend sent one, else fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status > 0 && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
