// Package config provides configuration loading and validation for agentpool.
// It supports TOML configuration files with environment variable expansion,
// default values, environment overrides and validation.
//
// Configuration structure:
//   - [scheduler]: pool ceiling, timeouts, retry backoff, loop cadences, health thresholds
//   - [storage]: persistence backend URL and record TTLs
//   - [retention]: in-memory retention of finished tasks and janitor schedules
//   - [logging]: logging level, format, and output
//   - [metrics]: Prometheus endpoint
//   - [executors]: built-in executor per agent type
//
// Environment variables:
// Values can reference the environment using ${VAR} or ${VAR:default} syntax,
// for example: url = "${REDIS_URL:memory://}". AGENTPOOL_MAX_AGENTS,
// AGENTPOOL_TASK_TIMEOUT, AGENTPOOL_STORAGE_URL and AGENTPOOL_LOG_LEVEL
// override the file; REDIS_URL is used when no storage URL is configured.
package config

import "github.com/aatumaykin/agentpool/internal/executor"

// Config represents the main application configuration.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Storage   StorageConfig   `toml:"storage"`
	Retention RetentionConfig `toml:"retention"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Executors ExecutorsConfig `toml:"executors"`
}

// SchedulerConfig tunes dispatching, retries and the monitor loop.
type SchedulerConfig struct {
	MaxAgents              int     `toml:"max_agents"`
	TaskTimeoutSeconds     int     `toml:"task_timeout_seconds"`
	MaxRetries             int     `toml:"max_retries"`
	RetryBaseDelayMs       int     `toml:"retry_base_delay_ms"`
	RetryMaxDelayMs        int     `toml:"retry_max_delay_ms"`
	DispatchIntervalMs     int     `toml:"dispatch_interval_ms"`
	MonitorIntervalSeconds int     `toml:"monitor_interval_seconds"`
	IdleThresholdSeconds   int     `toml:"idle_threshold_seconds"`
	FailureRateThreshold   float64 `toml:"failure_rate_threshold"`
	MaxDispatchPerSecond   float64 `toml:"max_dispatch_per_second"`
	DispatchBurst          int     `toml:"dispatch_burst"`
	PreemptiveCancel       bool    `toml:"preemptive_cancel"`
}

// StorageConfig selects the persistence backend.
//
// Supported URLs: memory://, sqlite://<path>, redis://..., rediss://...
// and "none" to disable persistence.
type StorageConfig struct {
	URL           string `toml:"url"`
	TaskTTLHours  int    `toml:"task_ttl_hours"`
	AgentTTLHours int    `toml:"agent_ttl_hours"`
	MirrorBuffer  int    `toml:"mirror_buffer"`
}

// RetentionConfig controls the janitor.
type RetentionConfig struct {
	CompletedMinutes int    `toml:"completed_minutes"`
	ArchiveSchedule  string `toml:"archive_schedule"`
	PurgeSchedule    string `toml:"purge_schedule"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig configures the Prometheus endpoint of `serve`.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// ExecutorsConfig maps agent types to built-in executors ("echo", "command").
type ExecutorsConfig struct {
	Default string            `toml:"default"`
	Types   map[string]string `toml:"types"`
	Command CommandConfig     `toml:"command"`
}

// CommandConfig configures the "command" executor.
type CommandConfig struct {
	Shell          string `toml:"shell"`
	Dir            string `toml:"dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	// Patterns are "*", an exact command, a command name or "prefix *".
	DenyCommands     []string `toml:"deny_commands"`
	AllowedCommands  []string `toml:"allowed_commands"`
	AllowShellSyntax bool     `toml:"allow_shell_syntax"`
}

// Policy returns the executor policy described by c.
func (c CommandConfig) Policy() executor.CommandPolicy {
	return executor.CommandPolicy{
		Deny:             c.DenyCommands,
		Allowed:          c.AllowedCommands,
		AllowShellSyntax: c.AllowShellSyntax,
	}
}
