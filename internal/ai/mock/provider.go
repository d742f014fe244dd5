package mock

import (
	"context"
	"sync/atomic"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// MockClient satisfies models.InferenceClient for testing and local runs.
type MockClient struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.InferenceRequest) (models.InferenceReply, error)

	calls atomic.Int64
}

func (m *MockClient) Name() string { return m.Name_ }

func (m *MockClient) Complete(ctx context.Context, req models.InferenceRequest) (models.InferenceReply, error) {
	m.calls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return models.InferenceReply{}, nil
}

// Calls returns how many times Complete was invoked.
func (m *MockClient) Calls() int64 { return m.calls.Load() }

// DefaultReply is the JSON reply returned by NewMockClient.
const DefaultReply = `{"explanation":"Simulated explanation from mock provider","root_cause":"Simulated root cause","confidence":0.85}`

// NewMockClient returns a MockClient that always answers with DefaultReply.
func NewMockClient() *MockClient {
	return NewReplyClient(DefaultReply)
}

// NewReplyClient returns a MockClient that always answers with text.
func NewReplyClient(text string) *MockClient {
	return &MockClient{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.InferenceRequest) (models.InferenceReply, error) {
			return models.InferenceReply{Text: text, Model: "mock-v1"}, nil
		},
	}
}

// NewFailingClient returns a MockClient that always returns the given error.
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.InferenceRequest) (models.InferenceReply, error) {
			return models.InferenceReply{}, err
		},
	}
}

// NewTimeoutClient returns a MockClient that blocks until context is cancelled.
func NewTimeoutClient() *MockClient {
	return &MockClient{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.InferenceRequest) (models.InferenceReply, error) {
			<-ctx.Done()
			return models.InferenceReply{}, ai.ClassifyTransport(ctx.Err())
		},
	}
}

// Compile-time check that MockClient implements InferenceClient.
var _ models.InferenceClient = (*MockClient)(nil)
