package scheduler

import (
	"context"
	"time"

	"github.com/aatumaykin/agentpool/internal/logger"
)

// dispatchLoop hands queued tasks to idle agents. It wakes on enqueue and on
// agent release, and polls every DispatchInterval in case a wake-up was missed.
func (m *Manager) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.DispatchInterval)
	defer ticker.Stop()

	m.log.Debug("dispatch loop started",
		logger.Field{Key: "interval", Value: m.cfg.DispatchInterval.String()})

	for {
		m.dispatchReady(ctx)

		select {
		case <-ctx.Done():
			m.log.Debug("dispatch loop stopped")
			return
		case <-m.wake:
		case <-ticker.C:
		}
	}
}

// dispatchReady dispatches until the queue is empty or its head has no
// candidate agent. It returns how many tasks were dispatched.
func (m *Manager) dispatchReady(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		if m.limiter != nil {
			if !m.dispatchable() {
				return n
			}
			if err := m.limiter.Wait(ctx); err != nil {
				return n
			}
		}
		if !m.dispatchOne() {
			return n
		}
		n++
	}
	return n
}

// dispatchable reports whether the queue head currently has a candidate agent.
func (m *Manager) dispatchable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	head := m.queue.Peek()
	return head != nil && !m.stopping && m.pool.Select(head.Type) != nil
}

// dispatchOne pops the queue head, reserves the best agent for it and starts
// its execution. Only the head is considered: when no agent scores positively
// for it the queue waits.
func (m *Manager) dispatchOne() bool {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return false
	}
	head := m.queue.Peek()
	if head == nil {
		m.mu.Unlock()
		return false
	}
	a := m.pool.Select(head.Type)
	if a == nil {
		m.mu.Unlock()
		return false
	}
	fn, err := m.executors.Lookup(a.Type)
	if err != nil {
		m.mu.Unlock()
		m.log.Error("selected agent has no executor", err,
			logger.Field{Key: "agent_id", Value: a.ID})
		return false
	}

	t := m.queue.Pop()
	now := m.now()
	a.Reserve(t.ID, now)
	t.Start(a.ID, now)

	execCtx, cancel := context.WithCancel(m.group.Context())
	m.running[t.ID] = &runningTask{task: t, agent: a, cancel: cancel}

	taskSnap, agentSnap := t.Clone(), a.Clone()
	score := a.Score(t.Type)
	m.mu.Unlock()

	m.log.Info("task dispatched",
		logger.Field{Key: "task_id", Value: t.ID},
		logger.Field{Key: "type", Value: taskSnap.Type},
		logger.Field{Key: "priority", Value: taskSnap.Priority.String()},
		logger.Field{Key: "agent_id", Value: agentSnap.ID},
		logger.Field{Key: "score", Value: score})

	m.persist.saveTask(taskSnap)
	m.persist.saveAgent(agentSnap)

	started := m.group.Go("task:"+t.ID, func(context.Context) {
		defer cancel()
		m.execute(execCtx, t, a, fn)
	})
	if !started {
		cancel()
		m.undispatch(t.ID)
		return false
	}
	return true
}

// undispatch puts a task whose execution could not be started back on the queue.
func (m *Manager) undispatch(id string) {
	m.mu.Lock()
	rt, ok := m.running[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.running, id)
	rt.task.Requeue()
	m.queue.Push(rt.task)
	rt.agent.Release(m.now())
	taskSnap, agentSnap := rt.task.Clone(), rt.agent.Clone()
	m.mu.Unlock()

	m.persist.saveTask(taskSnap)
	m.persist.saveAgent(agentSnap)
}
