package telemetry_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/internal/telemetry"
)

type fixedStats analyzer.StreamStats

func (f fixedStats) Stats() analyzer.StreamStats { return analyzer.StreamStats(f) }

func TestObserveAnalysis(t *testing.T) {
	m := telemetry.New()
	m.ObserveAnalysis("ollama", analyzer.OutcomeSuccess, "", 120*time.Millisecond)
	m.ObserveAnalysis("ollama", analyzer.OutcomeFailure, "timeout", time.Second)
	m.ObserveAnalysis("ollama", analyzer.OutcomeFailure, "timeout", time.Second)

	n, err := testutil.GatherAndCount(m.Registry(), "loglens_analyzer_analyses_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n) // two label sets
}

func TestRegisterStream(t *testing.T) {
	m := telemetry.New()
	m.RegisterStream(fixedStats{LinesAccepted: 250, Flushes: 2, Pending: 50, CachedPatterns: 7})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "loglens_stream_lines_total 250")
	assert.Contains(t, string(body), "loglens_stream_flushes_total 2")
	assert.Contains(t, string(body), "loglens_stream_pending_lines 50")
	assert.Contains(t, string(body), "loglens_stream_cached_patterns 7")
}
