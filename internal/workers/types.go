// Package workers supervises the goroutines of a running scheduler: named,
// panic-safe, tied to one context and awaitable on shutdown.
package workers

import "time"

// Metrics tracks goroutines run by a Group.
type Metrics struct {
	Started  uint64
	Finished uint64
	Panics   uint64
	InFlight int64
}

// Constants for group shutdown
const (
	DefaultStopTimeout = 30 * time.Second
)
