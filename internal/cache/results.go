// Package cache memoizes computed position runs. Requests repeat heavily for
// popular satellites at the default cadence, and a run is pure function of
// (dataset, prn, window, step), so entries stay valid until the navigation
// dataset is swapped.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/navtrace/navtrace/internal/metrics"
	"github.com/navtrace/navtrace/internal/orbit"
)

// Key identifies one position run request.
type Key struct {
	PRN        string
	Start, End float64
	Dt         float64
}

// ResultCache memoizes position runs against a dataset generation. Safe for
// concurrent use.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[Key][]orbit.PositionSample
	generation time.Time // LoadedAt of the dataset the entries belong to
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a ResultCache holding at most maxEntries runs.
func New(maxEntries int) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &ResultCache{
		entries:    make(map[Key][]orbit.PositionSample),
		maxEntries: maxEntries,
	}
}

// Get returns the cached run for key under the given dataset generation.
// A generation mismatch is a miss: the entries belong to a stale dataset.
func (c *ResultCache) Get(generation time.Time, key Key) ([]orbit.PositionSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.generation.Equal(generation) {
		c.misses.Add(1)
		metrics.IncCacheMisses()
		return nil, false
	}
	samples, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		metrics.IncCacheMisses()
		return nil, false
	}

	c.hits.Add(1)
	metrics.IncCacheHits()
	return samples, true
}

// Put stores a run computed against the given dataset generation. A new
// generation drops all stale entries first. When full, an arbitrary entry
// is evicted.
func (c *ResultCache) Put(generation time.Time, key Key, samples []orbit.PositionSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.generation.Equal(generation) {
		c.entries = make(map[Key][]orbit.PositionSample)
		c.generation = generation
	}

	if len(c.entries) >= c.maxEntries {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = samples
}

// Stats reports cache counters and current size.
func (c *ResultCache) Stats() (entries int, hits, misses int64) {
	c.mu.Lock()
	entries = len(c.entries)
	c.mu.Unlock()
	return entries, c.hits.Load(), c.misses.Load()
}
