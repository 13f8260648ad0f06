package monitor

import (
	"sync"
	"time"
)

// perfWindow bounds the number of recent query latencies retained.
const perfWindow = 256

// PerformanceSnapshot summarizes recent query performance.
type PerformanceSnapshot struct {
	QueryCount      int64         `json:"query_count"`
	ErrorCount      int64         `json:"error_count"`
	AvgLatency      time.Duration `json:"avg_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	CacheHits       uint64        `json:"cache_hits"`
	CacheMisses     uint64        `json:"cache_misses"`
	CacheHitRate    float64       `json:"cache_hit_rate"`
	WindowSize      int           `json:"window_size"`
	SnapshotTakenAt time.Time     `json:"snapshot_taken_at"`
}

// perfTracker keeps a ring of recent latencies plus lifetime counters.
type perfTracker struct {
	mu        sync.Mutex
	latencies []time.Duration
	next      int
	filled    bool
	queries   int64
	errors    int64
}

func newPerfTracker() *perfTracker {
	return &perfTracker{latencies: make([]time.Duration, perfWindow)}
}

func (p *perfTracker) record(latency time.Duration, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if failed {
		p.errors++
	}
	p.latencies[p.next] = latency
	p.next++
	if p.next == len(p.latencies) {
		p.next = 0
		p.filled = true
	}
}

func (p *perfTracker) snapshot() (count, errs int64, avg, maxLat time.Duration, window int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.next
	if p.filled {
		n = len(p.latencies)
	}
	var total time.Duration
	for i := 0; i < n; i++ {
		total += p.latencies[i]
		if p.latencies[i] > maxLat {
			maxLat = p.latencies[i]
		}
	}
	if n > 0 {
		avg = total / time.Duration(n)
	}
	return p.queries, p.errors, avg, maxLat, n
}

func (p *perfTracker) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.filled = false
	p.queries = 0
	p.errors = 0
}

// RecordQuery feeds one query's latency into the tracker. Handlers call
// this after every search.
func (m *Monitor) RecordQuery(latency time.Duration, failed bool) {
	m.perf.record(latency, failed)
}

// Snapshot returns current performance counters including embedding
// cache hit rate.
func (m *Monitor) Snapshot() PerformanceSnapshot {
	count, errs, avg, maxLat, window := m.perf.snapshot()
	hits, misses := m.store.CacheStats()

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	return PerformanceSnapshot{
		QueryCount:      count,
		ErrorCount:      errs,
		AvgLatency:      avg,
		MaxLatency:      maxLat,
		CacheHits:       hits,
		CacheMisses:     misses,
		CacheHitRate:    hitRate,
		WindowSize:      window,
		SnapshotTakenAt: m.now().UTC(),
	}
}
