package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/pkg/models"
)

func pattern(sig string, count int) models.Pattern {
	return models.Pattern{Signature: sig, Template: sig, Count: count}
}

func TestNewPatternCache_InvalidCapacity(t *testing.T) {
	_, err := analyzer.NewPatternCache(0)
	assert.Error(t, err)
}

func TestPatternCache_NeverExceedsCapacity(t *testing.T) {
	c, err := analyzer.NewPatternCache(3)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Observe([]models.Pattern{pattern(string(rune('a'+i)), 1)}, models.Analysis{})
		assert.LessOrEqual(t, c.Len(), 3)
	}
	assert.Equal(t, int64(7), c.Evictions())
}

func TestPatternCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := analyzer.NewPatternCache(2)
	require.NoError(t, err)

	c.Observe([]models.Pattern{pattern("p1", 1)}, models.Analysis{})
	c.Observe([]models.Pattern{pattern("p2", 1)}, models.Analysis{})
	c.Observe([]models.Pattern{pattern("p1", 1)}, models.Analysis{}) // refresh p1
	c.Observe([]models.Pattern{pattern("p3", 1)}, models.Analysis{})

	_, ok := c.Lookup("p2")
	assert.False(t, ok)
	_, ok = c.Lookup("p1")
	assert.True(t, ok)
	_, ok = c.Lookup("p3")
	assert.True(t, ok)
}

func TestPatternCache_DominantIsMostRecent(t *testing.T) {
	c, err := analyzer.NewPatternCache(1)
	require.NoError(t, err)

	c.Observe([]models.Pattern{pattern("dominant", 5), pattern("minor", 1)}, models.Analysis{})

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "dominant", snap[0].Pattern.Signature)
}

func TestPatternCache_FrequencyAccumulates(t *testing.T) {
	c, err := analyzer.NewPatternCache(10)
	require.NoError(t, err)

	c.Observe([]models.Pattern{pattern("p", 3)}, models.Analysis{})
	c.Observe([]models.Pattern{pattern("p", 4)}, models.Analysis{})

	e, ok := c.Lookup("p")
	require.True(t, ok)
	assert.Equal(t, int64(7), e.Frequency)
	assert.Equal(t, 4, e.Pattern.Count)
}

func TestPatternCache_LastAnalysisSkipsErrors(t *testing.T) {
	c, err := analyzer.NewPatternCache(10)
	require.NoError(t, err)

	good := models.Analysis{Explanation: "good"}
	c.Observe([]models.Pattern{pattern("p", 1)}, good)
	c.Observe([]models.Pattern{pattern("p", 1)}, models.Analysis{IsError: true, Explanation: "bad"})

	e, ok := c.Lookup("p")
	require.True(t, ok)
	require.NotNil(t, e.LastAnalysis)
	assert.Equal(t, "good", e.LastAnalysis.Explanation)
	assert.Equal(t, int64(2), e.Frequency)
}

func TestPatternCache_SnapshotOrder(t *testing.T) {
	c, err := analyzer.NewPatternCache(5)
	require.NoError(t, err)

	c.Observe([]models.Pattern{pattern("a", 1)}, models.Analysis{})
	c.Observe([]models.Pattern{pattern("b", 1)}, models.Analysis{})
	c.Observe([]models.Pattern{pattern("c", 1)}, models.Analysis{})

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "c", snap[0].Pattern.Signature)
	assert.Equal(t, "a", snap[2].Pattern.Signature)
}

func TestPatternCache_CopiesDoNotAliasCache(t *testing.T) {
	c, err := analyzer.NewPatternCache(4)
	require.NoError(t, err)

	p := pattern("p1", 2)
	a := models.Analysis{
		Explanation:      "db down",
		Context:          models.Context{Dominant: []models.Pattern{p}, Patterns: []models.Pattern{p}},
		RemediationSteps: []string{"restart db"},
	}
	c.Observe([]models.Pattern{p}, a)

	// The caller's analysis is not shared with the cache.
	a.RemediationSteps[0] = "caller edit"

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].LastAnalysis)
	snap[0].LastAnalysis.RemediationSteps[0] = "snapshot edit"
	snap[0].LastAnalysis.Context.Patterns[0].Template = "snapshot edit"
	snap[0].LastAnalysis.Explanation = "snapshot edit"

	looked, ok := c.Lookup("p1")
	require.True(t, ok)
	looked.LastAnalysis.RemediationSteps[0] = "lookup edit"

	again, ok := c.Lookup("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"restart db"}, again.LastAnalysis.RemediationSteps)
	assert.Equal(t, "p1", again.LastAnalysis.Context.Patterns[0].Template)
	assert.Equal(t, "db down", again.LastAnalysis.Explanation)
}
