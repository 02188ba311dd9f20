package config

// Default values applied to zero fields.
const (
	DefaultMaxAgents              = 10
	DefaultTaskTimeoutSeconds     = 300
	DefaultMaxRetries             = 3
	DefaultRetryBaseDelayMs       = 1000
	DefaultRetryMaxDelayMs        = 10000
	DefaultDispatchIntervalMs     = 1000
	DefaultMonitorIntervalSeconds = 10
	DefaultIdleThresholdSeconds   = 300
	DefaultFailureRateThreshold   = 0.5
	DefaultDispatchBurst          = 1

	DefaultStorageURL    = "memory://"
	DefaultTaskTTLHours  = 7 * 24
	DefaultAgentTTLHours = 24
	DefaultMirrorBuffer  = 1024

	DefaultCompletedMinutes = 60
	DefaultArchiveSchedule  = "@every 1m"
	DefaultPurgeSchedule    = "@every 1h"

	DefaultMetricsAddr      = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "agentpool"

	DefaultExecutor = "echo"
)

// Default returns a configuration built only from defaults and the environment.
func Default() (*Config, error) {
	var cfg Config
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills zero values.
func applyDefaults(c *Config) {
	s := &c.Scheduler
	if s.MaxAgents == 0 {
		s.MaxAgents = DefaultMaxAgents
	}
	if s.TaskTimeoutSeconds == 0 {
		s.TaskTimeoutSeconds = DefaultTaskTimeoutSeconds
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.RetryBaseDelayMs == 0 {
		s.RetryBaseDelayMs = DefaultRetryBaseDelayMs
	}
	if s.RetryMaxDelayMs == 0 {
		s.RetryMaxDelayMs = DefaultRetryMaxDelayMs
	}
	if s.DispatchIntervalMs == 0 {
		s.DispatchIntervalMs = DefaultDispatchIntervalMs
	}
	if s.MonitorIntervalSeconds == 0 {
		s.MonitorIntervalSeconds = DefaultMonitorIntervalSeconds
	}
	if s.IdleThresholdSeconds == 0 {
		s.IdleThresholdSeconds = DefaultIdleThresholdSeconds
	}
	if s.FailureRateThreshold == 0 {
		s.FailureRateThreshold = DefaultFailureRateThreshold
	}
	if s.DispatchBurst == 0 {
		s.DispatchBurst = DefaultDispatchBurst
	}

	if c.Storage.URL == "" {
		c.Storage.URL = DefaultStorageURL
	}
	if c.Storage.TaskTTLHours == 0 {
		c.Storage.TaskTTLHours = DefaultTaskTTLHours
	}
	if c.Storage.AgentTTLHours == 0 {
		c.Storage.AgentTTLHours = DefaultAgentTTLHours
	}
	if c.Storage.MirrorBuffer == 0 {
		c.Storage.MirrorBuffer = DefaultMirrorBuffer
	}

	if c.Retention.CompletedMinutes == 0 {
		c.Retention.CompletedMinutes = DefaultCompletedMinutes
	}
	if c.Retention.ArchiveSchedule == "" {
		c.Retention.ArchiveSchedule = DefaultArchiveSchedule
	}
	if c.Retention.PurgeSchedule == "" {
		c.Retention.PurgeSchedule = DefaultPurgeSchedule
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}

	if c.Executors.Default == "" && len(c.Executors.Types) == 0 {
		c.Executors.Default = DefaultExecutor
	}
	if c.Executors.Command.Shell == "" {
		c.Executors.Command.Shell = "sh"
	}
}
