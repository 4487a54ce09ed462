package scoring

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/api/googleapi"
)

// ErrorKind classifies a scoring failure for retry purposes.
type ErrorKind string

const (
	// KindTransient errors may succeed on retry (timeouts, rate limiting, 5xx).
	KindTransient ErrorKind = "transient"
	// KindFatal errors will not resolve by retrying (bad credential, malformed request).
	KindFatal ErrorKind = "fatal"
	// KindMalformedOutput marks a reply that violated the response contract.
	// Treated as transient: a single bad generation is often non-reproducible.
	KindMalformedOutput ErrorKind = "malformed_output"
)

// Error is a classified scoring failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scoring error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("scoring error (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error is worth another attempt.
func (e *Error) Retryable() bool {
	return e.Kind != KindFatal
}

// Classify maps a provider error onto the retry taxonomy. Auth and request
// errors (4xx other than 429) are fatal; rate limits, server errors, and
// network failures are transient.
func Classify(err error) *Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 429:
			return &Error{Kind: KindTransient, Message: "provider rate limit", Cause: err}
		case gerr.Code >= 500:
			return &Error{Kind: KindTransient, Message: "provider server error", Cause: err}
		case gerr.Code >= 400:
			return &Error{Kind: KindFatal, Message: "provider rejected request", Cause: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindFatal, Message: "request cancelled", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: KindTransient, Message: "network error", Cause: err}
	}

	return &Error{Kind: KindTransient, Message: "provider call failed", Cause: err}
}
