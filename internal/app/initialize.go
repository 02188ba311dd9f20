package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/executor"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/metrics"
	"github.com/aatumaykin/agentpool/internal/scheduler"
	"github.com/aatumaykin/agentpool/internal/storage"
)

// Initialize opens the store, builds the executor registry and the metrics
// registry, and creates the scheduler. It does not start anything.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil
	}

	// 1. Executors
	registry, err := BuildRegistry(a.config.Executors)
	if err != nil {
		return fmt.Errorf("failed to build executors: %w", err)
	}

	// 2. Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := metrics.NewPrometheus(a.config.Metrics.Namespace, promReg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// 3. Storage
	store, err := storage.Open(ctx, a.config.Storage.URL)
	if err != nil {
		return fmt.Errorf("failed to open storage %s: %w", a.config.MaskedStorageURL(), err)
	}
	if store == nil {
		a.logger.Warn("persistence disabled, state will not survive a restart")
	} else {
		a.logger.Info("storage opened", logger.Field{Key: "url", Value: a.config.MaskedStorageURL()})
	}

	// 4. Scheduler
	manager, err := scheduler.New(a.config.SchedulerConfig(), scheduler.Deps{
		Store:      store,
		Executors:  registry,
		Logger:     a.logger,
		Prometheus: prom,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	a.registry = registry
	a.promReg = promReg
	a.prom = prom
	a.store = store
	a.manager = manager
	a.initialized = true
	return nil
}

// Start starts the scheduler and, when enabled, the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return fmt.Errorf("app is not initialized")
	}
	if a.started {
		return nil
	}

	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if a.config.Metrics.Enabled {
		sv, err := startMetricsServer(a.config.Metrics.Addr, a.config.Metrics.Path, a.promReg, a.logger)
		if err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.manager.Stop(stopCtx)
			return err
		}
		a.metricsSv = sv
	}

	a.started = true
	return nil
}

// BuildRegistry maps the configured built-in executors onto agent types.
func BuildRegistry(cfg config.ExecutorsConfig) (*executor.Registry, error) {
	opts := executor.CommandOptions{
		Shell:   cfg.Command.Shell,
		Dir:     cfg.Command.Dir,
		Timeout: time.Duration(cfg.Command.TimeoutSeconds) * time.Second,
		Policy:  cfg.Command.Policy(),
	}

	reg := executor.NewRegistry()
	if cfg.Default != "" {
		fn, err := executor.Builtin(cfg.Default, opts)
		if err != nil {
			return nil, err
		}
		reg.SetDefault(fn)
	}

	for name, builtin := range cfg.Types {
		t, err := agent.ParseType(name)
		if err != nil {
			return nil, err
		}
		fn, err := executor.Builtin(builtin, opts)
		if err != nil {
			return nil, fmt.Errorf("agent type %s: %w", t, err)
		}
		if err := reg.Register(t, fn); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
