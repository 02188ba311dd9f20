package scheduler

import (
	"context"

	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/task"
)

// CancelTask cancels a queued or running task and reports whether it did.
//
// A queued task is removed from the queue and completed as canceled at once.
// A running task is only marked canceled: its execution continues unless
// PreemptiveCancel is set, and its outcome is discarded. The agent is
// released when the execution returns. Terminal and unknown tasks yield false.
func (m *Manager) CancelTask(ctx context.Context, id string) bool {
	m.mu.Lock()
	now := m.now()

	if t := m.queue.Remove(id); t != nil {
		t.Cancel(now)
		m.completed[id] = t
		m.collector.TaskCanceled()
		snap := t.Clone()
		m.mu.Unlock()

		m.prom.RecordTask(string(task.StatusCanceled), 0)
		m.log.InfoCtx(ctx, "queued task canceled", logger.Field{Key: "task_id", Value: id})
		m.persist.saveTask(snap)
		return true
	}

	rt, ok := m.running[id]
	if !ok || superseded(rt.task) {
		m.mu.Unlock()
		return false
	}
	rt.task.Cancel(now)
	m.collector.TaskCanceled()
	if m.cfg.PreemptiveCancel {
		rt.cancel()
	}
	snap := rt.task.Clone()
	m.mu.Unlock()

	m.prom.RecordTask(string(task.StatusCanceled), snap.Duration())
	m.log.InfoCtx(ctx, "running task canceled",
		logger.Field{Key: "task_id", Value: id},
		logger.Field{Key: "agent_id", Value: snap.AgentID},
		logger.Field{Key: "preemptive", Value: m.cfg.PreemptiveCancel})
	m.persist.saveTask(snap)
	return true
}
