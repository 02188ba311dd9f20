// Package metrics aggregates scheduler counters in process and exports them
// to Prometheus.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// DefaultSampleWindow is how many queue-length samples are kept.
const DefaultSampleWindow = 100

// Collector aggregates task outcomes. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	completed int
	failed    int
	timedOut  int
	canceled  int

	avgCompletion time.Duration
	timedSamples  int

	samples []int
	window  int
}

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	TasksCompleted    int
	TasksFailed       int
	TasksTimedOut     int
	TasksCanceled     int
	AvgCompletionTime time.Duration
	QueueSamples      []int
}

// NewCollector creates a collector keeping the last window queue samples.
func NewCollector(window int) *Collector {
	if window <= 0 {
		window = DefaultSampleWindow
	}
	return &Collector{window: window}
}

// TaskCompleted counts a success and folds d into the running average.
func (c *Collector) TaskCompleted(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed++
	c.timedSamples++
	c.avgCompletion += (d - c.avgCompletion) / time.Duration(c.timedSamples)
}

// TaskFailed counts a terminal failure.
func (c *Collector) TaskFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
}

// TaskTimedOut counts a timeout. Timeouts are failures as well.
func (c *Collector) TaskTimedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timedOut++
	c.failed++
}

// TaskCanceled counts a cancellation.
func (c *Collector) TaskCanceled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled++
}

// SampleQueue records one queue-length observation, dropping the oldest
// beyond the window.
func (c *Collector) SampleQueue(length int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, length)
	if over := len(c.samples) - c.window; over > 0 {
		c.samples = slices.Delete(c.samples, 0, over)
	}
}

// Snapshot returns a copy of the current values.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		TasksCompleted:    c.completed,
		TasksFailed:       c.failed,
		TasksTimedOut:     c.timedOut,
		TasksCanceled:     c.canceled,
		AvgCompletionTime: c.avgCompletion,
		QueueSamples:      slices.Clone(c.samples),
	}
}
