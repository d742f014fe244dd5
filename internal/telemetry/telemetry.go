// Package telemetry exposes analyzer metrics to Prometheus.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranshivaraju/loglens/internal/analyzer"
)

const namespace = "loglens"

// StatsSource is satisfied by *analyzer.StreamAnalyzer.
type StatsSource interface {
	Stats() analyzer.StreamStats
}

// Metrics owns a private registry with the analyzer instruments. It
// implements analyzer.Observer.
type Metrics struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "analyses_total",
			Help:      "Chunk analyses by provider, outcome and failure kind.",
		}, []string{"provider", "outcome", "kind"}),
		analysisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end chunk analysis latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "outcome"}),
	}
}

func (m *Metrics) ObserveAnalysis(provider, outcome, kind string, latency time.Duration) {
	m.analyses.WithLabelValues(provider, outcome, kind).Inc()
	m.analysisLatency.WithLabelValues(provider, outcome).Observe(latency.Seconds())
}

// RegisterStream exports the running counters of a stream analyzer.
func (m *Metrics) RegisterStream(src StatsSource) {
	factory := promauto.With(m.registry)
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Subsystem: "stream", Name: name, Help: help}
	}
	gauge := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{Namespace: namespace, Subsystem: "stream", Name: name, Help: help}
	}

	factory.NewCounterFunc(opts("lines_total", "Log lines accepted."), func() float64 {
		return float64(src.Stats().LinesAccepted)
	})
	factory.NewCounterFunc(opts("flushes_total", "Batches flushed."), func() float64 {
		return float64(src.Stats().Flushes)
	})
	factory.NewCounterFunc(opts("reused_analyses_total", "Flushes answered from the pattern cache."), func() float64 {
		return float64(src.Stats().ReusedAnalyses)
	})
	factory.NewCounterFunc(opts("pattern_evictions_total", "Pattern cache evictions."), func() float64 {
		return float64(src.Stats().Evictions)
	})
	factory.NewGaugeFunc(gauge("pending_lines", "Lines waiting in the current batch."), func() float64 {
		return float64(src.Stats().Pending)
	})
	factory.NewGaugeFunc(gauge("cached_patterns", "Entries in the pattern cache."), func() float64 {
		return float64(src.Stats().CachedPatterns)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

var _ analyzer.Observer = (*Metrics)(nil)
