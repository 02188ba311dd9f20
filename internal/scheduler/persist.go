package scheduler

import (
	"context"
	"sync"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/metrics"
	"github.com/aatumaykin/agentpool/internal/storage"
	"github.com/aatumaykin/agentpool/internal/task"
)

// persistOp is one snapshot to write. flushed, when set, is closed once every
// earlier op has been applied.
type persistOp struct {
	task    *task.Task
	agent   *agent.Agent
	flushed chan struct{}
}

// persister applies snapshots to the mirror in order on a single goroutine.
// Failures are logged and counted, never returned. A nil persister drops
// everything.
type persister struct {
	mirror *storage.Mirror
	log    *logger.Logger
	prom   *metrics.Prometheus

	ops      chan persistOp
	done     chan struct{}
	finished chan struct{}

	// mu orders sends against close: no op enters ops once closed is set,
	// so run's final drain sees every accepted op.
	mu     sync.RWMutex
	closed bool
}

func newPersister(mirror *storage.Mirror, buffer int, log *logger.Logger, prom *metrics.Prometheus) *persister {
	if mirror == nil {
		return nil
	}
	p := &persister{
		mirror:   mirror,
		log:      log,
		prom:     prom,
		ops:      make(chan persistOp, buffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) run() {
	defer close(p.finished)
	for {
		select {
		case op := <-p.ops:
			p.apply(op)
		case <-p.done:
			for {
				select {
				case op := <-p.ops:
					p.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (p *persister) apply(op persistOp) {
	// Writes must complete even while the manager shuts down.
	ctx := context.Background()

	if op.task != nil {
		if err := p.mirror.SaveTask(ctx, op.task); err != nil {
			p.prom.RecordPersistenceError()
			p.log.Error("failed to persist task", err,
				logger.Field{Key: "task_id", Value: op.task.ID},
				logger.Field{Key: "status", Value: op.task.Status})
		}
	}
	if op.agent != nil {
		if err := p.mirror.SaveAgent(ctx, op.agent); err != nil {
			p.prom.RecordPersistenceError()
			p.log.Error("failed to persist agent", err,
				logger.Field{Key: "agent_id", Value: op.agent.ID})
		}
	}
	if op.flushed != nil {
		close(op.flushed)
	}
}

// send hands op to the writer goroutine. Ops sent after close are dropped.
func (p *persister) send(op persistOp) {
	if p == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("persister closed, dropping write")
		return
	}
	p.ops <- op
}

// saveTask queues a snapshot of t. Callers pass a clone taken under the manager lock.
func (p *persister) saveTask(t *task.Task) {
	p.send(persistOp{task: t})
}

func (p *persister) saveAgent(a *agent.Agent) {
	p.send(persistOp{agent: a})
}

// flush blocks until every write queued before it has been applied or ctx is done.
// After close it waits for the final drain instead.
func (p *persister) flush(ctx context.Context) error {
	if p == nil {
		return nil
	}

	ch := make(chan struct{})
	p.mu.RLock()
	closed := p.closed
	if !closed {
		select {
		case p.ops <- persistOp{flushed: ch}:
		case <-ctx.Done():
			p.mu.RUnlock()
			return ctx.Err()
		}
	}
	p.mu.RUnlock()

	wait := p.finished
	if !closed {
		wait = ch
	}
	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains pending writes and stops the goroutine.
func (p *persister) close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()

	select {
	case <-p.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
