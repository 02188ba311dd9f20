package workers

import (
	"context"
	"sync"

	"github.com/aatumaykin/agentpool/internal/logger"
)

// Group runs named goroutines under a shared, cancellable context.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logger.Logger

	mu      sync.Mutex
	closed  bool
	metrics Metrics
}

// NewGroup creates a group whose context is derived from parent.
func NewGroup(parent context.Context, log *logger.Logger) *Group {
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
		logger: log,
	}
}

// Context returns the group context. It is cancelled by Cancel or Stop.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go starts fn in a new goroutine. It returns false without starting fn once
// the group has been stopped.
func (g *Group) Go(name string, fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Debug("group closed, goroutine not started",
			logger.Field{Key: "name", Value: name})
		return false
	}
	g.metrics.Started++
	g.metrics.InFlight++
	g.wg.Add(1)
	g.mu.Unlock()

	go g.run(name, fn)
	return true
}

// Cancel cancels the group context without waiting.
func (g *Group) Cancel() {
	g.cancel()
}

// Close stops accepting new goroutines. Running ones are not affected.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// Wait blocks until every goroutine has returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the group, cancels its context and waits for goroutines,
// bounded by ctx.
func (g *Group) Stop(ctx context.Context) error {
	g.Close()
	g.cancel()

	err := g.Wait(ctx)

	m := g.Metrics()
	if err != nil {
		g.logger.Warn("group stop timed out",
			logger.Field{Key: "in_flight", Value: m.InFlight})
		return err
	}
	g.logger.Debug("group stopped",
		logger.Field{Key: "started", Value: m.Started},
		logger.Field{Key: "panics", Value: m.Panics})
	return nil
}
