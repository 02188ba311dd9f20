package scheduler

import (
	"github.com/aatumaykin/agentpool/internal/agent"
)

// SystemMetrics is a point-in-time view of the scheduler.
type SystemMetrics struct {
	QueueLength              int            `json:"queue_length"`
	RunningCount             int            `json:"running_count"`
	CompletedCount           int            `json:"completed_count"`
	ActiveAgents             int            `json:"active_agents"`
	HealthyAgents            int            `json:"healthy_agents"`
	TotalAgents              int            `json:"total_agents"`
	AgentTypeHistogram       map[string]int `json:"agent_type_histogram"`
	TasksCompleted           int            `json:"tasks_completed"`
	TasksFailed              int            `json:"tasks_failed"`
	TasksTimedOut            int            `json:"tasks_timed_out"`
	TasksCanceled            int            `json:"tasks_canceled"`
	AvgCompletionTime        float64        `json:"avg_completion_time"` // seconds
	RecentQueueLengthSamples []int          `json:"recent_queue_length_samples"`
}

// Metrics returns the current system metrics. ActiveAgents counts busy agents.
func (m *Manager) Metrics() SystemMetrics {
	m.mu.Lock()
	sm := SystemMetrics{
		QueueLength:        m.queue.Len(),
		RunningCount:       len(m.running),
		CompletedCount:     len(m.completed),
		TotalAgents:        m.pool.Len(),
		AgentTypeHistogram: make(map[string]int),
	}
	for _, a := range m.pool.All() {
		if !a.Idle() {
			sm.ActiveAgents++
		}
		if a.Health == agent.HealthHealthy {
			sm.HealthyAgents++
		}
	}
	for t, n := range m.pool.Histogram() {
		sm.AgentTypeHistogram[string(t)] = n
	}
	m.mu.Unlock()

	s := m.collector.Snapshot()
	sm.TasksCompleted = s.TasksCompleted
	sm.TasksFailed = s.TasksFailed
	sm.TasksTimedOut = s.TasksTimedOut
	sm.TasksCanceled = s.TasksCanceled
	sm.AvgCompletionTime = s.AvgCompletionTime.Seconds()
	sm.RecentQueueLengthSamples = s.QueueSamples
	if sm.RecentQueueLengthSamples == nil {
		sm.RecentQueueLengthSamples = []int{}
	}
	return sm
}
