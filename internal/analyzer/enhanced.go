package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/loglens/internal/ai"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Outcome labels passed to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeReused  = "reused"
)

// Observer receives every sample recorded in PerformanceMetrics.
type Observer interface {
	ObserveAnalysis(provider, outcome, kind string, latency time.Duration)
}

// EnhancedConfig configures an EnhancedAnalyzer. Zero values select defaults:
// no timeout, a 1000-sample window and rule-based remediation.
type EnhancedConfig struct {
	Provider       string
	Timeout        time.Duration
	ResponseWindow int
	Remediator     Remediator
	Observer       Observer
}

// EnhancedAnalyzer wraps an Analyzer with confidence scoring, impact
// assessment, remediation and performance metrics. Every failure of the
// wrapped analyzer other than ErrCapabilityNotImplemented becomes a degraded
// Analysis.
type EnhancedAnalyzer struct {
	inner      Analyzer
	provider   string
	timeout    time.Duration
	remediator Remediator
	observer   Observer
	metrics    *PerformanceMetrics
}

func NewEnhancedAnalyzer(inner Analyzer, cfg EnhancedConfig) *EnhancedAnalyzer {
	rem := cfg.Remediator
	if rem == nil {
		rem = NewRuleRemediator()
	}
	provider := cfg.Provider
	if provider == "" {
		if p, ok := inner.(interface{ Provider() string }); ok {
			provider = p.Provider()
		}
	}
	return &EnhancedAnalyzer{
		inner:      inner,
		provider:   provider,
		timeout:    cfg.Timeout,
		remediator: rem,
		observer:   cfg.Observer,
		metrics:    NewPerformanceMetrics(cfg.ResponseWindow),
	}
}

func (e *EnhancedAnalyzer) ExtractPatterns(chunk models.LogChunk) []models.Pattern {
	return e.inner.ExtractPatterns(chunk)
}

func (e *EnhancedAnalyzer) GetContext(patterns []models.Pattern) models.Context {
	return e.inner.GetContext(patterns)
}

// Metrics returns a snapshot of the analyzer's performance metrics.
func (e *EnhancedAnalyzer) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// recordReuse counts an analysis served from the pattern cache as a
// zero-latency success.
func (e *EnhancedAnalyzer) recordReuse() {
	e.metrics.RecordSuccess(0)
	if e.observer != nil {
		e.observer.ObserveAnalysis(e.provider, OutcomeReused, "", 0)
	}
}

// AnalyzeChunk returns an error only for ErrCapabilityNotImplemented.
func (e *EnhancedAnalyzer) AnalyzeChunk(ctx context.Context, chunk models.LogChunk) (models.Analysis, error) {
	start := time.Now()

	callCtx, cancel := e.withTimeout(ctx)
	a, err := e.inner.AnalyzeChunk(callCtx, chunk)
	cancel()
	if errors.Is(err, ErrCapabilityNotImplemented) {
		return models.Analysis{}, err
	}
	if err != nil {
		return e.degrade(chunk, err, start), nil
	}

	a.ConfidenceScore = Confidence(a.Context, a.Certainty)
	a.PerformanceImpact = Impact(a.Context)

	remCtx, cancel := e.withTimeout(ctx)
	steps, err := e.remediator.Remediate(remCtx, a)
	cancel()
	if err != nil {
		return e.degrade(chunk, err, start), nil
	}
	if steps == nil {
		steps = []string{}
	}
	a.RemediationSteps = steps

	a.Latency = time.Since(start)
	e.metrics.RecordSuccess(a.Latency)
	if e.observer != nil {
		e.observer.ObserveAnalysis(e.provider, OutcomeSuccess, "", a.Latency)
	}
	return a, nil
}

func (e *EnhancedAnalyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *EnhancedAnalyzer) degrade(chunk models.LogChunk, err error, start time.Time) models.Analysis {
	kind := string(ai.Classify(err))
	c := e.inner.GetContext(e.inner.ExtractPatterns(chunk))
	detail := err.Error()
	latency := time.Since(start)

	e.metrics.RecordFailure(latency, kind)
	if e.observer != nil {
		e.observer.ObserveAnalysis(e.provider, OutcomeFailure, kind, latency)
	}
	slog.Warn("chunk analysis degraded",
		"chunk_id", chunk.ID,
		"provider", e.provider,
		"kind", kind,
		"duration_ms", latency.Milliseconds(),
		"error", err,
	)

	return models.Analysis{
		ID:                uuid.New(),
		ChunkID:           chunk.ID,
		Context:           c,
		Certainty:         models.CertaintyUnknown,
		ConfidenceScore:   0,
		PerformanceImpact: Impact(c),
		RemediationSteps:  []string{},
		IsError:           true,
		ErrorDetail:       &detail,
		Provider:          e.provider,
		Latency:           latency,
		CreatedAt:         time.Now().UTC(),
	}
}

// Confidence blends the share of lines matched by the top dominant pattern
// with the certainty reported by inference (0.5 when unknown). Unclassified
// contexts are halved. The result is always in [0, 1].
func Confidence(c models.Context, certainty float64) float64 {
	strength := 0.0
	if c.TotalLines > 0 && len(c.Dominant) > 0 {
		strength = clamp01(float64(c.Dominant[0].Count) / float64(c.TotalLines))
	}
	if certainty < 0 || math.IsNaN(certainty) {
		certainty = 0.5
	}

	score := 0.6*clamp01(certainty) + 0.4*strength
	if c.Unclassified {
		score /= 2
	}
	return clamp01(score)
}

// Impact maps context severity to a performance impact. Error severity is
// raised to high when at least half the chunk's lines are errors or worse.
func Impact(c models.Context) models.PerformanceImpact {
	switch c.Severity {
	case models.SeverityFatal, models.SeverityCritical:
		return models.ImpactHigh
	case models.SeverityError:
		failing := 0
		for _, p := range c.Patterns {
			if p.Severity >= models.SeverityError {
				failing += p.Count
			}
		}
		if c.TotalLines > 0 && 2*failing >= c.TotalLines {
			return models.ImpactHigh
		}
		return models.ImpactMedium
	case models.SeverityWarn:
		return models.ImpactLow
	default:
		return models.ImpactNone
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var _ Analyzer = (*EnhancedAnalyzer)(nil)
