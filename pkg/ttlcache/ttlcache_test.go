package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New[string, int](time.Minute)
	now := time.Now()

	c.Set("a", 1, now)

	v, ok := c.Get("a", now)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New[string, int](10 * time.Second)
	start := time.Now()

	c.Set("a", 1, start)

	_, ok := c.Get("a", start.Add(20*time.Second))
	assert.False(t, ok)
}

func TestGetRefreshesLastSeen(t *testing.T) {
	c := New[string, int](10 * time.Second)
	start := time.Now()

	c.Set("a", 1, start)
	_, ok := c.Get("a", start.Add(8*time.Second))
	require.True(t, ok)

	// Touched at +8s, so +15s (7s after touch) is still within TTL even
	// though it is 15s after the original Set.
	_, ok = c.Get("a", start.Add(15*time.Second))
	assert.True(t, ok)
}

func TestSweepEvictsStaleEntriesOnly(t *testing.T) {
	c := New[string, int](10 * time.Second)
	start := time.Now()

	c.Set("stale", 1, start)
	c.Set("fresh", 2, start.Add(5*time.Second))

	evicted := c.Sweep(start.Add(12 * time.Second))

	assert.ElementsMatch(t, []string{"stale"}, evicted)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Peek("fresh", start.Add(12*time.Second))
	assert.True(t, ok)
}

func TestDeleteRemovesEntry(t *testing.T) {
	c := New[string, int](time.Minute)
	now := time.Now()

	c.Set("a", 1, now)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	_, ok := c.Get("a", now)
	assert.False(t, ok)
}

func TestStatsTrackHitsAndMisses(t *testing.T) {
	c := New[string, int](time.Minute)
	now := time.Now()

	c.Set("a", 1, now)
	c.Get("a", now)
	c.Get("missing", now)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
