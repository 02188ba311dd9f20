package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/executor"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/retry"
	"github.com/aatumaykin/agentpool/internal/task"
)

// execute runs t on a with retry. The agent stays reserved for the whole
// sequence, including backoff sleeps.
func (m *Manager) execute(ctx context.Context, t *task.Task, a *agent.Agent, fn executor.Func) {
	cfg := retry.Config{
		MaxAttempts:    t.MaxRetries,
		InitialBackoff: m.cfg.RetryBaseDelay,
		MaxBackoff:     m.cfg.RetryMaxDelay,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			m.prom.RecordRetry()
			m.log.Warn("task attempt failed, retrying",
				logger.Field{Key: "task_id", Value: t.ID},
				logger.Field{Key: "agent_id", Value: a.ID},
				logger.Field{Key: "attempt", Value: attempt + 1},
				logger.Field{Key: "backoff", Value: backoff.String()},
				logger.Field{Key: "error", Value: err.Error()})
		},
	}

	err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		return m.attempt(ctx, t, a, fn, attempt)
	})
	m.finish(t, a, err)
}

// attempt performs one execution. Each attempt restarts the task on the agent.
func (m *Manager) attempt(ctx context.Context, t *task.Task, a *agent.Agent, fn executor.Func, attempt int) error {
	m.mu.Lock()
	if superseded(t) {
		m.mu.Unlock()
		return retry.Permanent(errSuperseded)
	}
	t.Start(a.ID, m.now())
	t.RetryCount = attempt
	req := executor.Request{
		TaskID:    t.ID,
		TaskType:  t.Type,
		Payload:   maps.Clone(t.Payload),
		AgentID:   a.ID,
		AgentType: a.Type,
		Attempt:   attempt,
	}
	startSnap := t.Clone()
	m.mu.Unlock()

	m.persist.saveTask(startSnap)

	begin := time.Now()
	result, err := call(ctx, fn, req)
	runtime := time.Since(begin)

	m.mu.Lock()
	now := m.now()
	if err != nil {
		a.RecordFailure(runtime)
	} else {
		a.RecordSuccess(runtime)
	}
	a.LastActive = now

	if superseded(t) {
		agentSnap := a.Clone()
		m.mu.Unlock()
		m.persist.saveAgent(agentSnap)
		return retry.Permanent(errSuperseded)
	}

	if err != nil {
		t.Fail(err.Error(), now)
	} else {
		t.Complete(result, now)
	}
	taskSnap, agentSnap := t.Clone(), a.Clone()
	m.mu.Unlock()

	m.persist.saveTask(taskSnap)
	m.persist.saveAgent(agentSnap)
	return err
}

// call invokes fn and turns a panic into an error.
func call(ctx context.Context, fn executor.Func, req executor.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return fn(ctx, req)
}

// superseded reports whether the task was reclassified while it was running.
// Later execution outcomes must not overwrite that status.
func superseded(t *task.Task) bool {
	return t.Status == task.StatusCanceled || t.Status == task.StatusTimeout
}

// finish records the outcome of a retry sequence, moves the task to the
// completed set and releases the agent.
func (m *Manager) finish(t *task.Task, a *agent.Agent, err error) {
	m.mu.Lock()
	now := m.now()

	var (
		record   bool
		requeued bool
	)
	switch {
	case t.Status == task.StatusTimeout:
		// Already moved by the monitor.
	case t.Status == task.StatusCanceled:
		delete(m.running, t.ID)
		m.completed[t.ID] = t
	case err == nil:
		delete(m.running, t.ID)
		m.completed[t.ID] = t
		m.collector.TaskCompleted(t.Duration())
		record = true
	case m.stopping && errors.Is(err, context.Canceled):
		// Interrupted by shutdown: leave it pending for the next start.
		delete(m.running, t.ID)
		t.Requeue()
		m.queue.Push(t)
		requeued = true
	default:
		msg := err.Error()
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			msg = fmt.Sprintf("%s: %v", retry.ErrExhausted, exhausted.Last)
		}
		t.Fail(msg, now)
		delete(m.running, t.ID)
		m.completed[t.ID] = t
		m.collector.TaskFailed()
		record = true
	}

	a.Release(now)
	taskSnap, agentSnap := t.Clone(), a.Clone()
	m.mu.Unlock()

	if record {
		m.prom.RecordTask(string(taskSnap.Status), taskSnap.Duration())
	}

	fields := []logger.Field{
		{Key: "task_id", Value: taskSnap.ID},
		{Key: "agent_id", Value: agentSnap.ID},
		{Key: "status", Value: taskSnap.Status},
		{Key: "retry_count", Value: taskSnap.RetryCount},
	}
	switch {
	case requeued:
		m.log.Warn("task interrupted by shutdown, requeued", fields...)
	case taskSnap.Status == task.StatusFailed:
		m.log.Error("task failed", errors.New(taskSnap.Error), fields...)
	default:
		m.log.Info("task finished", fields...)
	}

	m.persist.saveTask(taskSnap)
	m.persist.saveAgent(agentSnap)
	m.signal()
}
