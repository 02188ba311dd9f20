package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/task"
)

// monitorLoop runs a sweep every MonitorInterval.
func (m *Manager) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	m.log.Debug("monitor loop started",
		logger.Field{Key: "interval", Value: m.cfg.MonitorInterval.String()})

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("monitor loop stopped")
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweepResult is what one sweep changed.
type sweepResult struct {
	timedOut []*task.Task
	demoted  []*agent.Agent
}

// sweep reclassifies overdue running tasks as timed out, demotes idle or
// failing agents, samples the queue length and refreshes the gauges.
func (m *Manager) sweep() sweepResult {
	m.mu.Lock()
	now := m.now()
	var res sweepResult

	for id, rt := range m.running {
		if !rt.task.Overdue(now) {
			continue
		}
		rt.task.TimeOut(fmt.Sprintf("task exceeded timeout of %ds", rt.task.TimeoutSeconds), now)
		delete(m.running, id)
		m.completed[id] = rt.task
		m.collector.TaskTimedOut()
		if m.cfg.PreemptiveCancel {
			rt.cancel()
		}
		res.timedOut = append(res.timedOut, rt.task.Clone())
	}

	health := make(map[string]int)
	for _, a := range m.pool.All() {
		if m.assessHealth(a, now) {
			res.demoted = append(res.demoted, a.Clone())
		}
		health[string(a.Health)]++
	}

	queued, running := m.queue.Len(), len(m.running)
	m.collector.SampleQueue(queued)
	m.mu.Unlock()

	m.prom.SetQueueState(queued, running)
	m.prom.SetAgentHealth(health)

	for _, t := range res.timedOut {
		m.prom.RecordTask(string(task.StatusTimeout), t.Duration())
		m.log.Warn("task timed out",
			logger.Field{Key: "task_id", Value: t.ID},
			logger.Field{Key: "agent_id", Value: t.AgentID},
			logger.Field{Key: "timeout_seconds", Value: t.TimeoutSeconds})
		m.persist.saveTask(t)
	}
	for _, a := range res.demoted {
		m.log.Warn("agent health demoted",
			logger.Field{Key: "agent_id", Value: a.ID},
			logger.Field{Key: "health", Value: a.Health},
			logger.Field{Key: "failure_rate", Value: a.FailureRate()})
		m.persist.saveAgent(a)
	}
	return res
}

// assessHealth demotes a and reports whether its health changed. Health is
// never raised here.
func (m *Manager) assessHealth(a *agent.Agent, now time.Time) bool {
	prev := a.Health
	if a.Idle() && now.Sub(a.LastActive) > m.cfg.IdleThreshold {
		a.Health = agent.HealthUnhealthy
	}
	if a.FailureRate() > m.cfg.FailureRateThreshold && a.Health != agent.HealthUnhealthy {
		a.Health = agent.HealthDegraded
	}
	return a.Health != prev
}
