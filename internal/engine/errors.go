package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StreamErrorKind classifies a failed model call.
type StreamErrorKind string

const (
	KindConnection StreamErrorKind = "connection"
	KindTimeout    StreamErrorKind = "timeout"
	KindOther      StreamErrorKind = "other"
)

// Placeholder texts shown instead of a model answer.
const (
	ConnectionFailedText = "Connection failed. Please check if the server is running."
	UnexpectedErrorText  = "An unexpected error occurred: "
)

// StreamError wraps a model call failure with its classification.
type StreamError struct {
	Kind StreamErrorKind
	Err  error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model stream (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("model stream (%s)", e.Kind)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Placeholder is the text displayed in place of the answer.
func (e *StreamError) Placeholder() string {
	switch e.Kind {
	case KindConnection, KindTimeout:
		return ConnectionFailedText
	default:
		return UnexpectedErrorText + fmt.Sprint(e.Err)
	}
}

// NewStreamError classifies err and wraps it.
func NewStreamError(err error) *StreamError {
	var se *StreamError
	if errors.As(err, &se) {
		return se
	}
	return &StreamError{Kind: ClassifyStreamError(err), Err: err}
}

// ClassifyStreamError maps a provider error to a StreamErrorKind.
func ClassifyStreamError(err error) StreamErrorKind {
	if err == nil {
		return KindOther
	}

	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "deadline exceeded") {
		return KindTimeout
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "server closed") {
		return KindConnection
	}

	return KindOther
}
