package app

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Shutdown stops the components in reverse start order:
//  1. the metrics endpoint
//  2. the scheduler (awaiting running executions until ctx is done)
//  3. the store
//
// It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return nil
	}

	var errs []error
	if a.metricsSv != nil {
		if err := a.metricsSv.stop(ctx); err != nil {
			a.logger.Error("failed to stop metrics endpoint", err)
			errs = append(errs, err)
		}
		a.metricsSv = nil
	}

	if err := a.manager.Stop(ctx); err != nil {
		a.logger.Error("failed to stop scheduler", err)
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", err)
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		a.store = nil
	}

	a.initialized = false
	a.started = false
	a.logger.Info("agentpool shutdown complete")
	return errors.Join(errs...)
}
