package ai_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestSentinelErrorsDistinct(t *testing.T) {
	errs := []error{ai.ErrProviderUnavailable, ai.ErrInferenceTimeout, ai.ErrInvalidResponse, ai.ErrRateLimited}
	for i := range errs {
		for j := range errs {
			if i != j {
				assert.NotErrorIs(t, errs[i], errs[j])
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ai.FailureKind
	}{
		{"nil", nil, ""},
		{"timeout sentinel", fmt.Errorf("wrap: %w", ai.ErrInferenceTimeout), ai.KindTimeout},
		{"deadline", context.DeadlineExceeded, ai.KindTimeout},
		{"canceled", context.Canceled, ai.KindCanceled},
		{"rate limited", ai.ErrRateLimited, ai.KindRateLimited},
		{"invalid", ai.ErrInvalidResponse, ai.KindInvalidResponse},
		{"unavailable", ai.ErrProviderUnavailable, ai.KindUnavailable},
		{"net timeout", timeoutErr{}, ai.KindTimeout},
		{"other", errors.New("boom"), ai.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ai.Classify(tt.err))
		})
	}
}

func TestNewFailure(t *testing.T) {
	f := ai.NewFailure("ollama", ai.ClassifyTransport(context.DeadlineExceeded))

	assert.Equal(t, ai.KindTimeout, f.Kind)
	assert.Equal(t, "ollama", f.Provider)
	assert.ErrorIs(t, f, ai.ErrInferenceTimeout)
	assert.Contains(t, f.Error(), "timeout")
	assert.Contains(t, f.Error(), "ollama")

	// Already-wrapped failures are returned unchanged.
	again := ai.NewFailure("other", fmt.Errorf("outer: %w", f))
	assert.Same(t, f, again)
	assert.Equal(t, ai.KindTimeout, ai.Classify(fmt.Errorf("outer: %w", f)))
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, ai.ClassifyStatus(http.StatusTooManyRequests), ai.ErrRateLimited)
	assert.ErrorIs(t, ai.ClassifyStatus(http.StatusGatewayTimeout), ai.ErrInferenceTimeout)
	assert.ErrorIs(t, ai.ClassifyStatus(http.StatusServiceUnavailable), ai.ErrProviderUnavailable)
	assert.ErrorIs(t, ai.ClassifyStatus(http.StatusBadRequest), ai.ErrInvalidResponse)
}

func TestClassifyTransport(t *testing.T) {
	assert.ErrorIs(t, ai.ClassifyTransport(context.DeadlineExceeded), ai.ErrInferenceTimeout)
	assert.ErrorIs(t, ai.ClassifyTransport(timeoutErr{}), ai.ErrInferenceTimeout)
	assert.ErrorIs(t, ai.ClassifyTransport(errors.New("connection refused")), ai.ErrProviderUnavailable)
	assert.ErrorIs(t, ai.ClassifyTransport(context.Canceled), context.Canceled)
}
