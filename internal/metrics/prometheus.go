package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "agentpool"

// Prometheus exports scheduler state. A nil *Prometheus is a valid no-op.
type Prometheus struct {
	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	taskRetries       prometheus.Counter
	queueLength       prometheus.Gauge
	runningTasks      prometheus.Gauge
	agents            *prometheus.GaugeVec
	persistenceErrors prometheus.Counter
}

// NewPrometheus creates and registers the collectors on reg
// (prometheus.DefaultRegisterer when nil).
func NewPrometheus(namespace string, reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Prometheus{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Tasks that reached a terminal status",
			},
			[]string{"status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Time from start to terminal status",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		taskRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_retries_total",
				Help:      "Execution attempts retried after a failure",
			},
		),
		queueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_length",
				Help:      "Tasks waiting for an agent",
			},
		),
		runningTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "running_tasks",
				Help:      "Tasks currently running",
			},
		),
		agents: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "agents",
				Help:      "Registered agents by health",
			},
			[]string{"health"},
		),
		persistenceErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_errors_total",
				Help:      "Failed writes to the persistence store",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.tasksTotal,
		m.taskDuration,
		m.taskRetries,
		m.queueLength,
		m.runningTasks,
		m.agents,
		m.persistenceErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordTask counts a terminal task and observes its duration.
func (m *Prometheus) RecordTask(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status).Inc()
	m.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRetry counts one retried attempt.
func (m *Prometheus) RecordRetry() {
	if m == nil {
		return
	}
	m.taskRetries.Inc()
}

// RecordPersistenceError counts one failed store write.
func (m *Prometheus) RecordPersistenceError() {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}

// SetQueueState sets the queue and running gauges.
func (m *Prometheus) SetQueueState(queued, running int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(queued))
	m.runningTasks.Set(float64(running))
}

// SetAgentHealth replaces the per-health agent gauges.
func (m *Prometheus) SetAgentHealth(counts map[string]int) {
	if m == nil {
		return
	}
	m.agents.Reset()
	for health, n := range counts {
		m.agents.WithLabelValues(health).Set(float64(n))
	}
}
