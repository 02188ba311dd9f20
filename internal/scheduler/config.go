package scheduler

import (
	"time"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/task"
)

// Config tunes the manager. Zero values select the defaults below.
type Config struct {
	MaxAgents      int           // pool ceiling (default: 10)
	DefaultTimeout time.Duration // per-task timeout when the task sets none (default: 300s)
	MaxRetries     int           // attempts when the task sets none (default: 3)

	RetryBaseDelay time.Duration // default: 1s
	RetryMaxDelay  time.Duration // default: 10s

	DispatchInterval time.Duration // idle poll of the dispatch loop (default: 1s)
	MonitorInterval  time.Duration // timeout sweep and health check cadence (default: 10s)

	IdleThreshold        time.Duration // idle agents untouched longer than this become unhealthy (default: 300s)
	FailureRateThreshold float64       // agents failing more often than this become degraded (default: 0.5)

	CompletedRetention time.Duration // terminal tasks kept in memory (default: 1h)
	ArchiveSchedule    string        // cron expression for archiving (default: "@every 1m")
	PurgeSchedule      string        // cron expression for purging expired records (default: "@every 1h")

	MaxDispatchPerSecond float64 // 0 disables the throttle
	DispatchBurst        int     // default: 1

	// PreemptiveCancel also cancels the execution context of a task that is
	// canceled or times out while running. Off by default: the status is
	// reclassified and the execution runs to completion.
	PreemptiveCancel bool

	TaskTTL      time.Duration // persisted task expiry (default: 7 days)
	AgentTTL     time.Duration // persisted agent expiry (default: 1 day)
	MirrorBuffer int           // pending persistence writes (default: 1024)
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxAgents <= 0 {
		c.MaxAgents = agent.DefaultPoolSize
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 300 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = task.DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = time.Second
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 10 * time.Second
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 300 * time.Second
	}
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = 0.5
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = time.Hour
	}
	if c.ArchiveSchedule == "" {
		c.ArchiveSchedule = "@every 1m"
	}
	if c.PurgeSchedule == "" {
		c.PurgeSchedule = "@every 1h"
	}
	if c.DispatchBurst <= 0 {
		c.DispatchBurst = 1
	}
	if c.MirrorBuffer <= 0 {
		c.MirrorBuffer = 1024
	}
	return c
}
