// Package app wires the configuration into a running scheduler: it opens the
// persistence store, builds the executor registry, registers Prometheus
// metrics and owns the lifecycle of the manager and the metrics endpoint.
package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/executor"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/metrics"
	"github.com/aatumaykin/agentpool/internal/scheduler"
	"github.com/aatumaykin/agentpool/internal/storage"
)

// App holds the components built from a Config.
type App struct {
	config *config.Config
	logger *logger.Logger

	store     storage.Store
	registry  *executor.Registry
	promReg   *prometheus.Registry
	prom      *metrics.Prometheus
	manager   *scheduler.Manager
	metricsSv *metricsServer

	mu          sync.Mutex
	initialized bool
	started     bool
}

// New creates an App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	if log == nil {
		log = logger.Discard()
	}
	return &App{
		config: cfg,
		logger: log,
	}
}

// Run initializes the components, starts the scheduler and the metrics
// endpoint, blocks until ctx is done and shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	a.logger.Info("agentpool is running")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Manager returns the scheduler, or nil before Initialize.
func (a *App) Manager() *scheduler.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manager
}

// Store returns the persistence store, or nil when persistence is disabled.
func (a *App) Store() storage.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store
}

// Gatherer exposes the metrics registry.
func (a *App) Gatherer() prometheus.Gatherer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.promReg
}

// MetricsAddr returns the address the metrics endpoint listens on, or "".
func (a *App) MetricsAddr() string {
	a.mu.Lock()
	sv := a.metricsSv
	a.mu.Unlock()
	if sv == nil {
		return ""
	}
	return sv.Addr()
}
