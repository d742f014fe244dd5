package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrRateLimited         = errors.New("ai provider rate limited")
)

// FailureKind tags an InferenceFailure for metrics and degraded analyses.
type FailureKind string

const (
	KindTimeout         FailureKind = "timeout"
	KindCanceled        FailureKind = "canceled"
	KindUnavailable     FailureKind = "unavailable"
	KindInvalidResponse FailureKind = "invalid_response"
	KindRateLimited     FailureKind = "rate_limited"
	KindUnknown         FailureKind = "unknown"
)

// InferenceFailure is returned for every failed call to an inference service:
// timeout, transport error, service error or an unusable reply.
type InferenceFailure struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (e *InferenceFailure) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("inference failure (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("inference failure (%s) from %s: %v", e.Kind, e.Provider, e.Err)
}

func (e *InferenceFailure) Unwrap() error { return e.Err }

// NewFailure wraps err as an InferenceFailure. An err that already is one is
// returned unchanged.
func NewFailure(provider string, err error) *InferenceFailure {
	var f *InferenceFailure
	if errors.As(err, &f) {
		return f
	}
	return &InferenceFailure{Kind: Classify(err), Provider: provider, Err: err}
}

// Classify maps an error to its failure kind.
func Classify(err error) FailureKind {
	var f *InferenceFailure
	switch {
	case err == nil:
		return ""
	case errors.As(err, &f):
		return f.Kind
	case errors.Is(err, ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	case errors.Is(err, ErrProviderUnavailable):
		return KindUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}
	return KindUnknown
}

// ClassifyTransport maps an HTTP transport error to a sentinel error.
func ClassifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// ClassifyStatus maps a non-2xx provider status code to a sentinel error.
func ClassifyStatus(status int) error {
	switch {
	case status == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	case status == 408 || status == 504:
		return fmt.Errorf("%w: status %d", ErrInferenceTimeout, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, status)
	default:
		return fmt.Errorf("%w: status %d", ErrInvalidResponse, status)
	}
}
