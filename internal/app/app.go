// Package app assembles the analyzer pipeline from configuration. Both the
// server and the CLI build their StreamAnalyzer here.
package app

import (
	"math"

	"golang.org/x/time/rate"

	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/internal/cache"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Deps are the optional collaborators of the pipeline. Nil fields are skipped.
type Deps struct {
	Replies  cache.Cache
	Sink     analyzer.Sink
	Observer analyzer.Observer
}

// NewStream wires InferenceAnalyzer, EnhancedAnalyzer and StreamAnalyzer
// around client.
func NewStream(cfg *config.Config, client models.InferenceClient, deps Deps) (*analyzer.StreamAnalyzer, error) {
	model := cfg.AI.Model()

	var opts []analyzer.InferenceOption
	if l := NewLimiter(cfg.AI.MaxRequestsPerSecond); l != nil {
		opts = append(opts, analyzer.WithRateLimiter(l))
	}
	if deps.Replies != nil {
		opts = append(opts, analyzer.WithReplyCache(deps.Replies, cfg.Redis.InferenceTTL))
	}
	if cfg.AI.Provider == "anthropic" && cfg.AI.Anthropic.MaxTokens > 0 {
		opts = append(opts, analyzer.WithMaxTokens(cfg.AI.Anthropic.MaxTokens))
	}

	var rem analyzer.Remediator
	if cfg.AI.Remediation == "inference" {
		rem = analyzer.NewInferenceRemediator(client, model)
	}

	enhanced := analyzer.NewEnhancedAnalyzer(
		analyzer.NewInferenceAnalyzer(client, model, opts...),
		analyzer.EnhancedConfig{
			Timeout:        cfg.AI.InferenceTimeout,
			ResponseWindow: cfg.Stream.ResponseTimeWindow,
			Remediator:     rem,
			Observer:       deps.Observer,
		},
	)

	return analyzer.NewStreamAnalyzer(enhanced, analyzer.StreamConfig{
		BatchSize:             cfg.Stream.BatchSize,
		FlushInterval:         cfg.Stream.FlushInterval,
		PatternCacheCapacity:  cfg.Stream.PatternCacheCapacity,
		PatternReuseThreshold: cfg.Stream.PatternReuseThreshold,
		Sink:                  deps.Sink,
	})
}

// NewLimiter returns nil for a non-positive rate. The burst is the rate
// rounded up.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), int(math.Ceil(perSecond)))
}
