package metrics

import "sync/atomic"

// CacheMetric tracks hit/miss counts for a named cache.
type CacheMetric struct {
	name   string
	hits   int64
	misses int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (m *CacheMetric) Hit() {
	if !enabled {
		return
	}
	atomic.AddInt64(&m.hits, 1)
}

// Miss records a cache miss.
func (m *CacheMetric) Miss() {
	if !enabled {
		return
	}
	atomic.AddInt64(&m.misses, 1)
}

// Name returns the metric name.
func (m *CacheMetric) Name() string {
	return m.name
}

// Hits returns the hit count.
func (m *CacheMetric) Hits() int64 {
	return atomic.LoadInt64(&m.hits)
}

// Misses returns the miss count.
func (m *CacheMetric) Misses() int64 {
	return atomic.LoadInt64(&m.misses)
}

// HitRate returns hits / (hits + misses), or 0 with no data.
func (m *CacheMetric) HitRate() float64 {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Reset clears the counters.
func (m *CacheMetric) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
}

// Global cache metrics.
var (
	NodeCache = newCacheMetric("node_cache")
	LeafCache = newCacheMetric("leaf_cache")
)

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{NodeCache, LeafCache}
}
