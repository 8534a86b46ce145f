// Package metrics keeps in-process latency percentiles for jobs and routes.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// Latency Tracker
// =============================================================================

// LatencyTracker keeps the most recent samples in a ring and reports percentiles.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	count   int64
}

// NewLatencyTracker creates a tracker holding up to window samples.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 1000
	}
	return &LatencyTracker{samples: make([]time.Duration, window)}
}

// Record adds one measurement, overwriting the oldest when the ring is full.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.samples[lt.next] = d
	lt.next++
	if lt.next == len(lt.samples) {
		lt.next = 0
		lt.full = true
	}
	lt.count++
}

// Stats computes statistics over the samples currently in the ring.
// Count is the lifetime number of recordings.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	n := lt.next
	if lt.full {
		n = len(lt.samples)
	}
	window := make([]time.Duration, n)
	copy(window, lt.samples[:n])
	count := lt.count
	lt.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	return LatencyStats{
		Count:   count,
		Samples: n,
		Avg:     sum / time.Duration(n),
		P50:     percentile(window, 0.50),
		P95:     percentile(window, 0.95),
		P99:     percentile(window, 0.99),
		Max:     window[n-1],
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	return sorted[int(float64(len(sorted)-1)*p)]
}

// LatencyStats summarises a tracker.
type LatencyStats struct {
	Count   int64         `json:"count"`
	Samples int           `json:"samples"`
	Avg     time.Duration `json:"avg"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
	Max     time.Duration `json:"max"`
}

// ToMap renders the stats in milliseconds for JSON bodies.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":   s.Count,
		"samples": s.Samples,
		"avg_ms":  ms(s.Avg),
		"p50_ms":  ms(s.P50),
		"p95_ms":  ms(s.P95),
		"p99_ms":  ms(s.P99),
		"max_ms":  ms(s.Max),
	}
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds one tracker per name (job type, route).
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

func NewRegistry(window int) *Registry {
	return &Registry{
		trackers: make(map[string]*LatencyTracker),
		window:   window,
	}
}

// Record adds a measurement under name, creating its tracker on first use.
func (r *Registry) Record(name string, d time.Duration) {
	r.mu.RLock()
	tracker, ok := r.trackers[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[name]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[name] = tracker
		}
		r.mu.Unlock()
	}
	tracker.Record(d)
}

// Snapshot returns the stats of every tracker.
func (r *Registry) Snapshot() map[string]LatencyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]LatencyStats, len(r.trackers))
	for name, tracker := range r.trackers {
		out[name] = tracker.Stats()
	}
	return out
}
