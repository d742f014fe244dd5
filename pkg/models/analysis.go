package models

import (
	"time"

	"github.com/google/uuid"
)

// PerformanceImpact classifies how strongly a chunk's problem affects service performance.
type PerformanceImpact string

const (
	ImpactNone   PerformanceImpact = "none"
	ImpactLow    PerformanceImpact = "low"
	ImpactMedium PerformanceImpact = "medium"
	ImpactHigh   PerformanceImpact = "high"
)

// CertaintyUnknown marks an inference reply that did not report a confidence.
const CertaintyUnknown = -1.0

// Analysis is the result record for one analysed chunk. Degraded analyses have
// the same shape; consumers must branch on IsError.
type Analysis struct {
	ID                uuid.UUID         `json:"id"`
	ChunkID           uuid.UUID         `json:"chunk_id"`
	Context           Context           `json:"context"`
	Explanation       string            `json:"explanation"`
	RootCause         string            `json:"root_cause,omitempty"`
	Certainty         float64           `json:"certainty"`
	ConfidenceScore   float64           `json:"confidence_score"`
	PerformanceImpact PerformanceImpact `json:"performance_impact"`
	RemediationSteps  []string          `json:"remediation_steps"`
	IsError           bool              `json:"is_error"`
	ErrorDetail       *string           `json:"error_detail,omitempty"`
	Provider          string            `json:"provider"`
	Model             string            `json:"model,omitempty"`
	Cached            bool              `json:"cached"`
	Latency           time.Duration     `json:"latency_ns"`
	CreatedAt         time.Time         `json:"created_at"`
}
