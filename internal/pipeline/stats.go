package pipeline

import (
	"sync"
	"time"
)

// Stats accumulates pipeline counters and the running average response time.
// The running-average formula (avg*(n-1)+x)/n is three operations, so every
// update runs under the mutex; readers take consistent snapshots.
type Stats struct {
	mu sync.Mutex

	totalListens        uint64
	recognized          uint64
	failures            uint64
	wakeHits            uint64
	dropped             uint64
	consecutiveFailures int
	avgResponseSecs     float64
}

// StatsSnapshot is a consistent point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalListens        uint64
	Recognized          uint64
	Failures            uint64
	WakeHits            uint64
	Dropped             uint64
	ConsecutiveFailures int
	AvgResponseTime     time.Duration
}

// NewStats returns zeroed statistics.
func NewStats() *Stats {
	return &Stats{}
}

// RecordListen counts one listen attempt.
func (s *Stats) RecordListen() {
	s.mu.Lock()
	s.totalListens++
	s.mu.Unlock()
}

// RecordRecognition counts a successful recognition, folds took into the
// running average and resets the consecutive-failure count.
func (s *Stats) RecordRecognition(took time.Duration) {
	s.mu.Lock()
	s.recognized++
	n := float64(s.recognized)
	s.avgResponseSecs = (s.avgResponseSecs*(n-1) + took.Seconds()) / n
	s.consecutiveFailures = 0
	s.mu.Unlock()
}

// RecordFailure counts a failed cycle and stores the loop's current
// consecutive-failure count.
func (s *Stats) RecordFailure(consecutive int) {
	s.mu.Lock()
	s.failures++
	s.consecutiveFailures = consecutive
	s.mu.Unlock()
}

// ResetConsecutiveFailures zeroes the consecutive-failure count, mirroring
// the loop's counter reset after an extended break.
func (s *Stats) ResetConsecutiveFailures() {
	s.mu.Lock()
	s.consecutiveFailures = 0
	s.mu.Unlock()
}

// RecordWakeHit counts one wake-phrase match.
func (s *Stats) RecordWakeHit() {
	s.mu.Lock()
	s.wakeHits++
	s.mu.Unlock()
}

// RecordDrop counts one command discarded by the queue's oldest-drop policy.
func (s *Stats) RecordDrop() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		TotalListens:        s.totalListens,
		Recognized:          s.recognized,
		Failures:            s.failures,
		WakeHits:            s.wakeHits,
		Dropped:             s.dropped,
		ConsecutiveFailures: s.consecutiveFailures,
		AvgResponseTime:     time.Duration(s.avgResponseSecs * float64(time.Second)),
	}
}
