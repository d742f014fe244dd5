// Package analyzer turns log chunks into scored analyses. Variants compose
// over the Analyzer interface: Base supplies extraction and context,
// InferenceAnalyzer adds the inference call, EnhancedAnalyzer adds scoring,
// remediation, metrics and degraded-mode fallback, and StreamAnalyzer batches
// single lines in front of an EnhancedAnalyzer.
package analyzer

import (
	"context"

	"github.com/kiranshivaraju/loglens/internal/analysis"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Analyzer is the capability set shared by every analyzer variant.
type Analyzer interface {
	AnalyzeChunk(ctx context.Context, chunk models.LogChunk) (models.Analysis, error)
	ExtractPatterns(chunk models.LogChunk) []models.Pattern
	GetContext(patterns []models.Pattern) models.Context
}

// Base implements pattern extraction and context resolution. It has no
// analysis step of its own.
type Base struct{}

func (Base) ExtractPatterns(chunk models.LogChunk) []models.Pattern {
	return analysis.ExtractPatterns(chunk)
}

func (Base) GetContext(patterns []models.Pattern) models.Context {
	return analysis.ResolveContext(patterns)
}

func (Base) AnalyzeChunk(_ context.Context, _ models.LogChunk) (models.Analysis, error) {
	return models.Analysis{}, ErrCapabilityNotImplemented
}

var _ Analyzer = Base{}
