package analyzer

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const defaultResponseWindow = 1000

// MetricsSnapshot is a self-consistent copy of PerformanceMetrics.
// ResponseTimes holds the retained window, oldest first; the percentiles are
// computed over that window while Mean, Min and Max cover the whole lifetime.
type MetricsSnapshot struct {
	ResponseTimes []time.Duration  `json:"response_times_ns"`
	Count         int64            `json:"count"`
	Successes     int64            `json:"successes"`
	Failures      int64            `json:"failures"`
	SuccessRate   float64          `json:"success_rate"`
	Mean          time.Duration    `json:"mean_ns"`
	Min           time.Duration    `json:"min_ns"`
	Max           time.Duration    `json:"max_ns"`
	P50           time.Duration    `json:"p50_ns"`
	P95           time.Duration    `json:"p95_ns"`
	P99           time.Duration    `json:"p99_ns"`
	ErrorCounts   map[string]int64 `json:"error_counts"`
}

// PerformanceMetrics records per-chunk latency and outcome. Response times are
// kept in a fixed-size ring; counters only grow.
type PerformanceMetrics struct {
	mu sync.Mutex

	samples []time.Duration
	next    int
	full    bool

	count     int64
	total     time.Duration
	min       time.Duration
	max       time.Duration
	successes int64
	failures  int64
	errors    map[string]int64
}

// NewPerformanceMetrics retains at most window response-time samples.
func NewPerformanceMetrics(window int) *PerformanceMetrics {
	if window <= 0 {
		window = defaultResponseWindow
	}
	return &PerformanceMetrics{
		samples: make([]time.Duration, window),
		errors:  make(map[string]int64),
	}
}

func (m *PerformanceMetrics) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observeLocked(latency)
	m.successes++
}

// RecordFailure counts a failed analysis under kind.
func (m *PerformanceMetrics) RecordFailure(latency time.Duration, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observeLocked(latency)
	m.failures++
	m.errors[kind]++
}

func (m *PerformanceMetrics) observeLocked(latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	m.samples[m.next] = latency
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.full = true
	}

	if m.count == 0 || latency < m.min {
		m.min = latency
	}
	if latency > m.max {
		m.max = latency
	}
	m.count++
	m.total += latency
}

func (m *PerformanceMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var window []time.Duration
	if m.full {
		window = make([]time.Duration, 0, len(m.samples))
		window = append(window, m.samples[m.next:]...)
		window = append(window, m.samples[:m.next]...)
	} else {
		window = make([]time.Duration, m.next)
		copy(window, m.samples[:m.next])
	}

	errs := make(map[string]int64, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}

	snap := MetricsSnapshot{
		ResponseTimes: window,
		Count:         m.count,
		Successes:     m.successes,
		Failures:      m.failures,
		Min:           m.min,
		Max:           m.max,
		ErrorCounts:   errs,
	}
	if m.count > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.count)
		snap.Mean = m.total / time.Duration(m.count)
	}
	if len(window) > 0 {
		sorted := make([]float64, len(window))
		for i, d := range window {
			sorted[i] = float64(d)
		}
		sort.Float64s(sorted)
		snap.P50 = time.Duration(stat.Quantile(0.50, stat.Empirical, sorted, nil))
		snap.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
		snap.P99 = time.Duration(stat.Quantile(0.99, stat.Empirical, sorted, nil))
	}
	return snap
}
