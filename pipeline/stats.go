package pipeline

import (
	"sync"
	"time"
)

// Stats counts cycles and their timings.
type Stats struct {
	mu        sync.RWMutex
	cycles    int64
	dropped   int64
	failed    int64
	stale     int64
	results   int64
	totalTime float64
	started   time.Time
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Cycles        int64   `json:"cycles"`
	Dropped       int64   `json:"dropped_frames"`
	Failed        int64   `json:"failed_cycles"`
	Stale         int64   `json:"stale_cycles"`
	Results       int64   `json:"results"`
	TotalTimeMs   float64 `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	ThroughputFPS float64 `json:"throughput_fps"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func newStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) drop() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *Stats) observe(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles++
	s.totalTime += float64(o.Elapsed.Nanoseconds()) / 1e6
	switch {
	case o.Err != nil:
		s.failed++
	case o.Stale:
		s.stale++
	default:
		s.results += int64(len(o.Results))
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Cycles:        s.cycles,
		Dropped:       s.dropped,
		Failed:        s.failed,
		Stale:         s.stale,
		Results:       s.results,
		TotalTimeMs:   s.totalTime,
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if s.cycles > 0 {
		snap.AverageTimeMs = s.totalTime / float64(s.cycles)
		if snap.AverageTimeMs > 0 {
			snap.ThroughputFPS = 1000.0 / snap.AverageTimeMs
		}
	}
	return snap
}

// GetPerformanceMetrics returns the counters as a loosely typed map for logging.
func (s *Stats) GetPerformanceMetrics() map[string]interface{} {
	snap := s.Snapshot()
	metrics := map[string]interface{}{
		"inference_count": snap.Cycles,
		"dropped_frames":  snap.Dropped,
		"failed_cycles":   snap.Failed,
		"stale_cycles":    snap.Stale,
		"total_time_ms":   snap.TotalTimeMs,
	}
	if snap.Cycles > 0 {
		metrics["average_time_ms"] = snap.AverageTimeMs
		metrics["throughput_fps"] = snap.ThroughputFPS
	}
	return metrics
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycles, s.dropped, s.failed, s.stale, s.results = 0, 0, 0, 0, 0
	s.totalTime = 0
	s.started = time.Now()
}

// CollectMetrics reports the counters for periodic sampling.
func (s *Stats) CollectMetrics() map[string]float64 {
	snap := s.Snapshot()
	return map[string]float64{
		"cycles":          float64(snap.Cycles),
		"dropped_frames":  float64(snap.Dropped),
		"failed_cycles":   float64(snap.Failed),
		"average_time_ms": snap.AverageTimeMs,
		"throughput_fps":  snap.ThroughputFPS,
	}
}
