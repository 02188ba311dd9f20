package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/scheduler"
)

// Environment variables that override the configuration file.
const (
	EnvMaxAgents   = "AGENTPOOL_MAX_AGENTS"
	EnvTaskTimeout = "AGENTPOOL_TASK_TIMEOUT"
	EnvStorageURL  = "AGENTPOOL_STORAGE_URL"
	EnvLogLevel    = "AGENTPOOL_LOG_LEVEL"
	EnvRedisURL    = "REDIS_URL"
)

// Load reads a TOML configuration file, expands ${VAR} references, applies
// environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	expandEnvVars(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	return Load(path)
}

// applyEnvOverrides copies AGENTPOOL_* variables over file values.
func applyEnvOverrides(c *Config) error {
	if v := os.Getenv(EnvMaxAgents); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q is not an integer", EnvMaxAgents, v)
		}
		c.Scheduler.MaxAgents = n
	}
	if v := os.Getenv(EnvTaskTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q is not a number of seconds", EnvTaskTimeout, v)
		}
		c.Scheduler.TaskTimeoutSeconds = n
	}
	if v := os.Getenv(EnvStorageURL); v != "" {
		c.Storage.URL = v
	} else if v := os.Getenv(EnvRedisURL); v != "" && c.Storage.URL == "" {
		c.Storage.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// expandEnvVars expands ${VAR:default} references in string settings.
func expandEnvVars(c *Config) {
	c.Storage.URL = expandEnv(c.Storage.URL)
	c.Logging.Output = expandHome(expandEnv(c.Logging.Output))
	c.Metrics.Addr = expandEnv(c.Metrics.Addr)
	c.Executors.Command.Dir = expandHome(expandEnv(c.Executors.Command.Dir))

	if strings.HasPrefix(c.Storage.URL, "sqlite://~/") {
		c.Storage.URL = "sqlite://" + expandHome(strings.TrimPrefix(c.Storage.URL, "sqlite://"))
	}
}

// expandEnv expands a value of the form ${VAR} or ${VAR:default}.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	rest := s[end+1:]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val + rest
		}
		return defaultVal + rest
	}

	return os.Getenv(content) + rest
}

// expandHome expands a leading ~/ in a path.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// SchedulerConfig converts the file settings to the manager configuration.
func (c *Config) SchedulerConfig() scheduler.Config {
	s := c.Scheduler
	return scheduler.Config{
		MaxAgents:            s.MaxAgents,
		DefaultTimeout:       time.Duration(s.TaskTimeoutSeconds) * time.Second,
		MaxRetries:           s.MaxRetries,
		RetryBaseDelay:       time.Duration(s.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:        time.Duration(s.RetryMaxDelayMs) * time.Millisecond,
		DispatchInterval:     time.Duration(s.DispatchIntervalMs) * time.Millisecond,
		MonitorInterval:      time.Duration(s.MonitorIntervalSeconds) * time.Second,
		IdleThreshold:        time.Duration(s.IdleThresholdSeconds) * time.Second,
		FailureRateThreshold: s.FailureRateThreshold,
		CompletedRetention:   time.Duration(c.Retention.CompletedMinutes) * time.Minute,
		ArchiveSchedule:      c.Retention.ArchiveSchedule,
		PurgeSchedule:        c.Retention.PurgeSchedule,
		MaxDispatchPerSecond: s.MaxDispatchPerSecond,
		DispatchBurst:        s.DispatchBurst,
		PreemptiveCancel:     s.PreemptiveCancel,
		TaskTTL:              time.Duration(c.Storage.TaskTTLHours) * time.Hour,
		AgentTTL:             time.Duration(c.Storage.AgentTTLHours) * time.Hour,
		MirrorBuffer:         c.Storage.MirrorBuffer,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}
