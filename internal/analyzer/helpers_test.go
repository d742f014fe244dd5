package analyzer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

func chunkOf(t *testing.T, lines ...string) models.LogChunk {
	t.Helper()
	c, err := models.NewLogChunk(lines)
	require.NoError(t, err)
	return c
}

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	sets    int
	deletes int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deletes++
	return nil
}

func (m *memCache) Ping(context.Context) error { return nil }

func (m *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

// stubAnalyzer returns a fixed result from AnalyzeChunk and delegates the
// pure operations to Base.
type stubAnalyzer struct {
	analyzer.Base
	explanation string
	certainty   float64
	err         error
}

func (s stubAnalyzer) AnalyzeChunk(_ context.Context, chunk models.LogChunk) (models.Analysis, error) {
	if s.err != nil {
		return models.Analysis{}, s.err
	}
	c := s.GetContext(s.ExtractPatterns(chunk))
	return models.Analysis{
		ChunkID:     chunk.ID,
		Context:     c,
		Explanation: s.explanation,
		Certainty:   s.certainty,
	}, nil
}

type remediatorFunc func(ctx context.Context, a models.Analysis) ([]string, error)

func (f remediatorFunc) Remediate(ctx context.Context, a models.Analysis) ([]string, error) {
	return f(ctx, a)
}

type observation struct {
	provider, outcome, kind string
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveAnalysis(provider, outcome, kind string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{provider, outcome, kind})
}

type recordingSink struct {
	mu        sync.Mutex
	published []models.Analysis
	err       error
}

func (r *recordingSink) Publish(_ context.Context, a models.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, a)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}
