package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/executor"
	"github.com/aatumaykin/agentpool/internal/scheduler"
	"github.com/aatumaykin/agentpool/internal/storage"
)

var storageSchemes = map[string]bool{
	"memory": true, "mem": true,
	"sqlite": true, "sqlite3": true, "file": true,
	"redis": true, "rediss": true,
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateScheduler()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateRetention()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateMetrics()...)
	errs = append(errs, c.validateExecutors()...)
	return errs
}

func (c *Config) validateScheduler() []error {
	var errs []error
	s := c.Scheduler

	positive := []struct {
		field string
		value int
	}{
		{"scheduler.max_agents", s.MaxAgents},
		{"scheduler.task_timeout_seconds", s.TaskTimeoutSeconds},
		{"scheduler.max_retries", s.MaxRetries},
		{"scheduler.retry_base_delay_ms", s.RetryBaseDelayMs},
		{"scheduler.retry_max_delay_ms", s.RetryMaxDelayMs},
		{"scheduler.dispatch_interval_ms", s.DispatchIntervalMs},
		{"scheduler.monitor_interval_seconds", s.MonitorIntervalSeconds},
		{"scheduler.idle_threshold_seconds", s.IdleThresholdSeconds},
		{"scheduler.dispatch_burst", s.DispatchBurst},
	}
	for _, p := range positive {
		if p.value < 1 {
			errs = append(errs, fmt.Errorf("%s must be >= 1 (got %d)", p.field, p.value))
		}
	}

	if s.RetryBaseDelayMs > s.RetryMaxDelayMs {
		errs = append(errs, fmt.Errorf("scheduler.retry_base_delay_ms (%d) must not exceed scheduler.retry_max_delay_ms (%d)",
			s.RetryBaseDelayMs, s.RetryMaxDelayMs))
	}
	if s.FailureRateThreshold <= 0 || s.FailureRateThreshold > 1 {
		errs = append(errs, fmt.Errorf("scheduler.failure_rate_threshold must be in (0, 1] (got %g)", s.FailureRateThreshold))
	}
	if s.MaxDispatchPerSecond < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_dispatch_per_second must be >= 0 (got %g)", s.MaxDispatchPerSecond))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error
	url := strings.TrimSpace(c.Storage.URL)

	if url != "none" {
		scheme, rest, ok := strings.Cut(url, "://")
		switch {
		case !ok:
			errs = append(errs, formatValidationError("storage.url", "missing scheme (expected: memory://, sqlite://<path>, redis://<host>, none)", storage.Describe(url)))
		case !storageSchemes[strings.ToLower(scheme)]:
			errs = append(errs, formatValidationError("storage.url", fmt.Sprintf("unsupported scheme %q", scheme), storage.Describe(url)))
		case strings.HasPrefix(strings.ToLower(scheme), "sqlite") || scheme == "file":
			if rest == "" {
				errs = append(errs, formatValidationError("storage.url", "sqlite path is empty", ""))
			}
		}
	}

	if c.Storage.TaskTTLHours < 1 {
		errs = append(errs, fmt.Errorf("storage.task_ttl_hours must be >= 1 (got %d)", c.Storage.TaskTTLHours))
	}
	if c.Storage.AgentTTLHours < 1 {
		errs = append(errs, fmt.Errorf("storage.agent_ttl_hours must be >= 1 (got %d)", c.Storage.AgentTTLHours))
	}
	if c.Storage.MirrorBuffer < 1 {
		errs = append(errs, fmt.Errorf("storage.mirror_buffer must be >= 1 (got %d)", c.Storage.MirrorBuffer))
	}
	return errs
}

func (c *Config) validateRetention() []error {
	var errs []error
	if c.Retention.CompletedMinutes < 1 {
		errs = append(errs, fmt.Errorf("retention.completed_minutes must be >= 1 (got %d)", c.Retention.CompletedMinutes))
	}
	if err := scheduler.ValidateSchedule(c.Retention.ArchiveSchedule); err != nil {
		errs = append(errs, formatValidationError("retention.archive_schedule", err.Error(), c.Retention.ArchiveSchedule))
	}
	if err := scheduler.ValidateSchedule(c.Retention.PurgeSchedule); err != nil {
		errs = append(errs, formatValidationError("retention.purge_schedule", err.Error(), c.Retention.PurgeSchedule))
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if c.Logging.Output == "" {
		errs = append(errs, fmt.Errorf("logging.output is required"))
	}
	return errs
}

func (c *Config) validateMetrics() []error {
	if !c.Metrics.Enabled {
		return nil
	}

	var errs []error
	if c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path))
	}
	return errs
}

func (c *Config) validateExecutors() []error {
	var errs []error
	opts := executor.CommandOptions{}

	if c.Executors.Default != "" {
		if _, err := executor.Builtin(c.Executors.Default, opts); err != nil {
			errs = append(errs, fmt.Errorf("executors.default: %w", err))
		}
	}
	configured := make(map[agent.Type]bool)
	for name, builtin := range c.Executors.Types {
		t, err := agent.ParseType(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("executors.types: %w", err))
			continue
		}
		configured[t] = true
		if _, err := executor.Builtin(builtin, opts); err != nil {
			errs = append(errs, fmt.Errorf("executors.types.%s: %w", name, err))
		}
	}
	if c.Executors.Default == "" {
		for _, t := range agent.KnownTypes() {
			if !configured[t] {
				errs = append(errs, fmt.Errorf("executors.types has no entry for %s and executors.default is empty", t))
			}
		}
	}
	if c.Executors.Command.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("executors.command.timeout_seconds must be >= 0 (got %d)", c.Executors.Command.TimeoutSeconds))
	}
	return append(errs, c.Executors.Command.validatePolicy()...)
}

func (c CommandConfig) validatePolicy() []error {
	var errs []error
	lists := []struct {
		key      string
		patterns []string
	}{
		{"deny_commands", c.DenyCommands},
		{"allowed_commands", c.AllowedCommands},
	}
	for _, l := range lists {
		for _, p := range l.patterns {
			if err := executor.ValidatePattern(p); err != nil {
				errs = append(errs, fmt.Errorf("executors.command.%s: %w", l.key, err))
			}
		}
	}
	if c.AllowShellSyntax && (len(c.DenyCommands) > 0 || len(c.AllowedCommands) > 0) {
		errs = append(errs, errors.New("executors.command.allow_shell_syntax cannot be combined with deny_commands or allowed_commands"))
	}
	return errs
}
