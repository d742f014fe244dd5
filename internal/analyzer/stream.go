package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/loglens/pkg/models"
)

const sinkTimeout = 5 * time.Second

// Sink receives every analysis produced by a StreamAnalyzer.
type Sink interface {
	Publish(ctx context.Context, a models.Analysis) error
}

// StreamConfig configures a StreamAnalyzer.
type StreamConfig struct {
	BatchSize            int
	FlushInterval        time.Duration
	PatternCacheCapacity int
	// PatternReuseThreshold enables serving a flush from the pattern cache once
	// its dominant pattern has been seen this many times. Zero disables it.
	// Reused analyses are recorded in PerformanceMetrics as zero-latency
	// successes and counted in StreamStats.ReusedAnalyses.
	PatternReuseThreshold int
	Sink                  Sink
}

// StreamStats are running counters of a StreamAnalyzer.
type StreamStats struct {
	LinesAccepted  int64 `json:"lines_accepted"`
	Flushes        int64 `json:"flushes"`
	ReusedAnalyses int64 `json:"reused_analyses"`
	Pending        int   `json:"pending"`
	CachedPatterns int   `json:"cached_patterns"`
	Evictions      int64 `json:"evictions"`
}

// StreamAnalyzer batches single log lines and analyses each full batch with
// an EnhancedAnalyzer. Flushes run one at a time in the order their batches
// were closed, and each flush finishes its pattern cache update before the
// next begins.
//
// A batch holds lines from every producer, so its analysis runs under the
// stream's own lifetime rather than the context of the caller that closed
// it. Only Close ends that lifetime.
type StreamAnalyzer struct {
	enhanced *EnhancedAnalyzer
	cfg      StreamConfig
	cache    *PatternCache

	life context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	batch []string

	flushMu sync.Mutex

	linesAccepted atomic.Int64
	flushes       atomic.Int64
	reused        atomic.Int64
}

func NewStreamAnalyzer(enhanced *EnhancedAnalyzer, cfg StreamConfig) (*StreamAnalyzer, error) {
	if enhanced == nil {
		return nil, errors.New("stream analyzer requires an enhanced analyzer")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	pc, err := NewPatternCache(cfg.PatternCacheCapacity)
	if err != nil {
		return nil, err
	}
	life, stop := context.WithCancel(context.Background())
	return &StreamAnalyzer{
		enhanced: enhanced,
		cfg:      cfg,
		cache:    pc,
		life:     life,
		stop:     stop,
		batch:    make([]string, 0, cfg.BatchSize),
	}, nil
}

// ProcessLog appends line to the pending batch. When the batch reaches the
// configured size it is flushed on the caller's goroutine and the resulting
// analysis is returned; otherwise ProcessLog returns nil, nil.
func (s *StreamAnalyzer) ProcessLog(ctx context.Context, line string) (*models.Analysis, error) {
	s.mu.Lock()
	s.batch = append(s.batch, line)
	s.linesAccepted.Add(1)
	if len(s.batch) < s.cfg.BatchSize {
		s.mu.Unlock()
		return nil, nil
	}
	return s.flushLocked(ctx)
}

// Flush analyses the pending batch regardless of its size. It returns nil, nil
// when nothing is pending.
func (s *StreamAnalyzer) Flush(ctx context.Context) (*models.Analysis, error) {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	return s.flushLocked(ctx)
}

// flushLocked is called with s.mu held and releases it. flushMu is taken
// before s.mu is released so batches are analysed in the order they closed.
func (s *StreamAnalyzer) flushLocked(ctx context.Context) (*models.Analysis, error) {
	lines := s.batch
	s.batch = make([]string, 0, s.cfg.BatchSize)
	s.flushMu.Lock()
	s.mu.Unlock()
	defer s.flushMu.Unlock()

	chunk, err := models.NewLogChunk(lines)
	if err != nil {
		return nil, err
	}
	s.flushes.Add(1)

	a, ok := s.reuse(chunk)
	if !ok {
		actx, cancel := s.analysisContext(ctx)
		a, err = s.enhanced.AnalyzeChunk(actx, chunk)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	s.cache.Observe(a.Context.Patterns, a)
	s.publish(ctx, a)

	slog.Debug("batch flushed",
		"chunk_id", chunk.ID,
		"lines", chunk.Len(),
		"is_error", a.IsError,
		"cached", a.Cached,
	)
	return &a, nil
}

// reuse returns a copy of the cached analysis of the chunk's dominant pattern
// when the pattern has been seen often enough.
func (s *StreamAnalyzer) reuse(chunk models.LogChunk) (models.Analysis, bool) {
	if s.cfg.PatternReuseThreshold <= 0 {
		return models.Analysis{}, false
	}
	c := s.enhanced.GetContext(s.enhanced.ExtractPatterns(chunk))
	entry, ok := s.cache.Lookup(c.DominantSignature())
	if !ok || entry.LastAnalysis == nil || entry.Frequency < int64(s.cfg.PatternReuseThreshold) {
		return models.Analysis{}, false
	}

	a := *entry.LastAnalysis
	a.ID = uuid.New()
	a.ChunkID = chunk.ID
	a.Context = c
	a.ConfidenceScore = Confidence(c, a.Certainty)
	a.PerformanceImpact = Impact(c)
	a.RemediationSteps = append([]string{}, a.RemediationSteps...)
	a.Cached = true
	a.Latency = 0
	a.CreatedAt = time.Now().UTC()

	s.reused.Add(1)
	s.enhanced.recordReuse()
	return a, true
}

// analysisContext keeps ctx's values but not its cancellation or deadline.
// The returned context is cancelled when the stream's lifetime ends.
func (s *StreamAnalyzer) analysisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(s.life, cancel)
	return actx, func() {
		stopAfter()
		cancel()
	}
}

func (s *StreamAnalyzer) publish(ctx context.Context, a models.Analysis) {
	if s.cfg.Sink == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if err := s.cfg.Sink.Publish(pctx, a); err != nil {
		slog.Error("publishing analysis failed", "analysis_id", a.ID, "error", err)
	}
}

// Run flushes partially filled batches every FlushInterval until ctx is done.
// It returns immediately when the interval is zero.
func (s *StreamAnalyzer) Run(ctx context.Context) error {
	if s.cfg.FlushInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Flush(ctx); err != nil {
				return err
			}
		}
	}
}

// Close flushes whatever is pending and ends the stream's lifetime. When ctx
// is done before the flush completes, every in-flight analysis is cancelled.
// Flushes after Close resolve to degraded analyses.
func (s *StreamAnalyzer) Close(ctx context.Context) (*models.Analysis, error) {
	stopAfter := context.AfterFunc(ctx, s.stop)
	defer func() {
		stopAfter()
		s.stop()
	}()
	return s.Flush(ctx)
}

func (s *StreamAnalyzer) Metrics() MetricsSnapshot {
	return s.enhanced.Metrics()
}

// PatternCache returns a snapshot of the cache, most recently used first.
func (s *StreamAnalyzer) PatternCache() []PatternCacheEntry {
	return s.cache.Snapshot()
}

func (s *StreamAnalyzer) Stats() StreamStats {
	s.mu.Lock()
	pending := len(s.batch)
	s.mu.Unlock()

	return StreamStats{
		LinesAccepted:  s.linesAccepted.Load(),
		Flushes:        s.flushes.Load(),
		ReusedAnalyses: s.reused.Load(),
		Pending:        pending,
		CachedPatterns: s.cache.Len(),
		Evictions:      s.cache.Evictions(),
	}
}
