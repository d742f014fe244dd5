package analyzer

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/kiranshivaraju/loglens/pkg/models"
)

// PatternCacheEntry tracks one pattern across flushes.
type PatternCacheEntry struct {
	Pattern      models.Pattern   `json:"pattern"`
	Frequency    int64            `json:"frequency"`
	LastAnalysis *models.Analysis `json:"last_analysis,omitempty"`
	LastSeen     time.Time        `json:"last_seen"`
}

// PatternCache is a bounded LRU of pattern signatures. Frequency counts lines
// observed across all flushes; LastAnalysis is the most recent non-error
// analysis the pattern appeared in.
type PatternCache struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[string, *PatternCacheEntry]
	capacity  int
	evictions int64
}

func NewPatternCache(capacity int) (*PatternCache, error) {
	c := &PatternCache{capacity: capacity}
	l, err := simplelru.NewLRU[string, *PatternCacheEntry](capacity, func(string, *PatternCacheEntry) {
		c.evictions++
	})
	if err != nil {
		return nil, fmt.Errorf("pattern cache capacity %d: %w", capacity, err)
	}
	c.lru = l
	return c, nil
}

// Observe records the patterns of one flushed chunk. patterns are expected in
// dominance order; they are inserted weakest first so the dominant pattern
// ends up most recently used.
func (c *PatternCache) Observe(patterns []models.Pattern, a models.Analysis) {
	now := time.Now().UTC()
	var last *models.Analysis
	if !a.IsError {
		cp := cloneAnalysis(a)
		last = &cp
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(patterns) - 1; i >= 0; i-- {
		p := patterns[i]
		entry, ok := c.lru.Get(p.Signature)
		if !ok {
			entry = &PatternCacheEntry{Pattern: p}
		}
		entry.Pattern.Count = p.Count
		entry.Pattern.Example = p.Example
		if p.Severity > entry.Pattern.Severity {
			entry.Pattern.Severity = p.Severity
		}
		entry.Frequency += int64(p.Count)
		entry.LastSeen = now
		if last != nil {
			entry.LastAnalysis = last
		}
		c.lru.Add(p.Signature, entry)
	}
}

// Lookup returns a deep copy of the entry for signature without refreshing
// its recency.
func (c *PatternCache) Lookup(signature string) (PatternCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Peek(signature)
	if !ok {
		return PatternCacheEntry{}, false
	}
	return entry.clone(), true
}

// Snapshot returns deep copies of all entries, most recently used first.
func (c *PatternCache) Snapshot() []PatternCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.lru.Keys()
	out := make([]PatternCacheEntry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if entry, ok := c.lru.Peek(keys[i]); ok {
			out = append(out, entry.clone())
		}
	}
	return out
}

// clone copies e so that nothing in the result aliases the cached entry.
func (e *PatternCacheEntry) clone() PatternCacheEntry {
	out := *e
	if e.LastAnalysis != nil {
		a := cloneAnalysis(*e.LastAnalysis)
		out.LastAnalysis = &a
	}
	return out
}

func cloneAnalysis(a models.Analysis) models.Analysis {
	a.Context.Dominant = slices.Clone(a.Context.Dominant)
	a.Context.Patterns = slices.Clone(a.Context.Patterns)
	a.RemediationSteps = slices.Clone(a.RemediationSteps)
	if a.ErrorDetail != nil {
		detail := *a.ErrorDetail
		a.ErrorDetail = &detail
	}
	return a
}

func (c *PatternCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Evictions returns how many entries were dropped for capacity.
func (c *PatternCache) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}
