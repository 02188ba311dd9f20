package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/task"
	"github.com/aatumaykin/agentpool/internal/workers"
)

// shutdownGrace bounds the wait for executions after their context was
// cancelled because Stop ran out of time.
const shutdownGrace = 2 * time.Second

// Start restores state from storage (or bootstraps the default pool), then
// launches the dispatch loop, the monitor loop and the janitor. The loops stop
// when ctx is done or Stop is called; running executions are only interrupted
// by Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	if m.stopping {
		m.mu.Unlock()
		return ErrStopped
	}
	m.started = true
	m.mu.Unlock()

	janitor, err := m.prepare(ctx)
	if err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.group = workers.NewGroup(context.WithoutCancel(ctx), m.log.Component("workers"))
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancelLoops = cancel
	m.cron = janitor
	m.mu.Unlock()

	m.group.Go("dispatch", func(context.Context) { m.dispatchLoop(loopCtx) })
	m.group.Go("monitor", func(context.Context) { m.monitorLoop(loopCtx) })
	janitor.Start()

	sm := m.Metrics()
	m.log.InfoCtx(ctx, "scheduler started",
		logger.Field{Key: "agents", Value: sm.TotalAgents},
		logger.Field{Key: "queued", Value: sm.QueueLength},
		logger.Field{Key: "persistence", Value: m.mirror != nil})
	return nil
}

func (m *Manager) prepare(ctx context.Context) (*cron.Cron, error) {
	if err := m.restore(ctx); err != nil {
		return nil, err
	}
	if err := m.checkExecutors(); err != nil {
		return nil, err
	}
	return m.newJanitor()
}

// Run starts the manager, blocks until ctx is done and stops it.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), workers.DefaultStopTimeout)
	defer cancel()
	return m.Stop(stopCtx)
}

// Stop halts the loops and the janitor, waits for running executions until ctx
// is done (then cancels them), and flushes pending writes to storage.
// Executions interrupted this way are left pending for the next start.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	group, janitor, cancelLoops := m.group, m.cron, m.cancelLoops
	m.mu.Unlock()

	if group != nil {
		cronCtx := janitor.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}

		cancelLoops()
		group.Close()
		if err := group.Wait(ctx); err != nil {
			m.log.Warn("executions still running at shutdown, cancelling",
				logger.Field{Key: "in_flight", Value: group.InFlight()})
			group.Cancel()

			graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			_ = group.Wait(graceCtx)
			cancel()
		}
		group.Cancel()
	}

	flushCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
	}
	if err := m.persist.close(flushCtx); err != nil {
		return fmt.Errorf("flush persistence: %w", err)
	}
	m.log.Info("scheduler stopped")
	return nil
}

// restore reloads agents and unfinished tasks from storage. Agents come back
// idle; running tasks come back pending so they are retried. Anything already
// known in memory is kept as is.
func (m *Manager) restore(ctx context.Context) error {
	if m.mirror != nil {
		if err := m.persist.flush(ctx); err != nil {
			return fmt.Errorf("flush before restore: %w", err)
		}

		agents, err := m.mirror.LoadAgents(ctx)
		if err != nil {
			m.log.Error("some agents could not be restored", err)
		}
		tasks, err := m.mirror.LoadTasks(ctx, task.StatusRunning, task.StatusPending)
		if err != nil {
			m.log.Error("some tasks could not be restored", err)
		}

		m.restoreAgents(agents)
		m.restoreTasks(tasks)
	}

	m.mu.Lock()
	empty := m.pool.Len() == 0
	m.mu.Unlock()
	if empty {
		m.bootstrap(ctx)
	}
	return nil
}

func (m *Manager) restoreAgents(agents []*agent.Agent) {
	m.mu.Lock()
	var restored []*agent.Agent
	now := m.now()
	for _, a := range agents {
		if _, ok := m.pool.Get(a.ID); ok {
			continue
		}
		if a.Status != agent.StatusIdle {
			a.Release(now)
		}
		m.pool.Add(a)
		restored = append(restored, a.Clone())
	}
	m.mu.Unlock()

	for _, a := range restored {
		m.persist.saveAgent(a)
	}
	if len(restored) > 0 {
		m.log.Info("agents restored", logger.Field{Key: "count", Value: len(restored)})
	}
}

// restoreTasks re-enqueues tasks oldest first, so interrupted and pending
// tasks of one priority keep their original FIFO order.
func (m *Manager) restoreTasks(tasks []*task.Task) {
	slices.SortStableFunc(tasks, func(a, b *task.Task) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	m.mu.Lock()
	var requeued []*task.Task
	for _, t := range tasks {
		if m.knownLocked(t.ID) {
			continue
		}
		if t.Status == task.StatusRunning {
			t.Requeue()
		}
		if t.TimeoutSeconds <= 0 {
			t.TimeoutSeconds = int(m.cfg.DefaultTimeout / time.Second)
		}
		m.queue.Push(t)
		requeued = append(requeued, t.Clone())
	}
	m.mu.Unlock()

	for _, t := range requeued {
		m.persist.saveTask(t)
	}
	if len(requeued) > 0 {
		m.log.Info("tasks restored", logger.Field{Key: "count", Value: len(requeued)})
	}
}

// bootstrap fills an empty pool with DefaultMix(MaxAgents).
func (m *Manager) bootstrap(ctx context.Context) {
	mix := agent.DefaultMix(m.cfg.MaxAgents)

	m.mu.Lock()
	var created []*agent.Agent
	for _, t := range agent.KnownTypes() {
		for i := 0; i < mix[t]; i++ {
			a := agent.New(t, nil)
			m.pool.Add(a)
			created = append(created, a.Clone())
		}
	}
	m.mu.Unlock()

	for _, a := range created {
		m.persist.saveAgent(a)
	}
	m.log.InfoCtx(ctx, "default agent pool created",
		logger.Field{Key: "count", Value: len(created)},
		logger.Field{Key: "ceiling", Value: m.cfg.MaxAgents})
}

// checkExecutors fails when a built-in type or a pooled agent's type has no executor.
func (m *Manager) checkExecutors() error {
	types := agent.KnownTypes()
	m.mu.Lock()
	for _, a := range m.pool.All() {
		types = append(types, a.Type)
	}
	m.mu.Unlock()

	if missing := m.executors.Missing(types...); len(missing) > 0 {
		return fmt.Errorf("%w for agent types %v", ErrNoExecutor, missing)
	}
	return nil
}
