package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks candidate retrieval statistics per layer source.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*SourceStats
}

// SourceStats holds metrics for a single source (a layer name or a remote host).
// Fields are accessed atomically.
type SourceStats struct {
	CacheHits   int64
	CacheMisses int64
	Requests    int64
	Failures    int64
	EmptyResult int64
	Features    int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*SourceStats),
	}
}

// getStats returns the stats object for a source, creating it if needed.
func (t *Tracker) getStats(source string) *SourceStats {
	t.mu.RLock()
	s, ok := t.stats[source]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[source]; ok {
		return s
	}
	s = &SourceStats{}
	t.stats[source] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).CacheMisses, 1)
}

func (t *Tracker) TrackRequest(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).Requests, 1)
}

func (t *Tracker) TrackFailure(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).Failures, 1)
}

// TrackFeatures records the number of candidates a source returned.
func (t *Tracker) TrackFeatures(source string, n int) {
	if t == nil {
		return
	}
	s := t.getStats(source)
	if n == 0 {
		atomic.AddInt64(&s.EmptyResult, 1)
		return
	}
	atomic.AddInt64(&s.Features, int64(n))
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]SourceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]SourceStats)
	for k, v := range t.stats {
		result[k] = SourceStats{
			CacheHits:   atomic.LoadInt64(&v.CacheHits),
			CacheMisses: atomic.LoadInt64(&v.CacheMisses),
			Requests:    atomic.LoadInt64(&v.Requests),
			Failures:    atomic.LoadInt64(&v.Failures),
			EmptyResult: atomic.LoadInt64(&v.EmptyResult),
			Features:    atomic.LoadInt64(&v.Features),
		}
	}
	return result
}
