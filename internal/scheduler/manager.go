// Package scheduler matches queued tasks to the best-fit idle agent, runs them
// with retry, sweeps for timeouts and degraded agents, and mirrors every state
// change to the persistence store so a restart can resume the work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/executor"
	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/metrics"
	"github.com/aatumaykin/agentpool/internal/storage"
	"github.com/aatumaykin/agentpool/internal/task"
	"github.com/aatumaykin/agentpool/internal/workers"
)

// Deps are the collaborators of a Manager.
type Deps struct {
	Store      storage.Store // nil disables persistence
	Executors  *executor.Registry
	Logger     *logger.Logger
	Prometheus *metrics.Prometheus // optional
}

// Manager owns the task queue and the agent pool.
//
// One mutex guards the queue, the pool and the running and completed sets.
// Storage is never touched while it is held: state changes are cloned under
// the lock and handed to the persister afterwards.
type Manager struct {
	cfg       Config
	log       *logger.Logger
	executors *executor.Registry
	mirror    *storage.Mirror
	persist   *persister
	collector *metrics.Collector
	prom      *metrics.Prometheus
	limiter   *rate.Limiter
	now       func() time.Time

	mu        sync.Mutex
	queue     *task.Queue
	pool      *agent.Pool
	running   map[string]*runningTask
	completed map[string]*task.Task
	started   bool
	stopping  bool

	wake        chan struct{}
	group       *workers.Group
	cancelLoops context.CancelFunc
	cron        *cron.Cron
}

// runningTask binds a dispatched task to the agent reserved for it.
type runningTask struct {
	task   *task.Task
	agent  *agent.Agent
	cancel context.CancelFunc
}

// New creates a manager. It does not start any goroutine except the
// persistence writer; call Start or Run.
func New(cfg Config, deps Deps) (*Manager, error) {
	if deps.Executors == nil {
		return nil, fmt.Errorf("executor registry is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.Component("scheduler")
	cfg = cfg.withDefaults()

	m := &Manager{
		cfg:       cfg,
		log:       log,
		executors: deps.Executors,
		collector: metrics.NewCollector(metrics.DefaultSampleWindow),
		prom:      deps.Prometheus,
		now:       func() time.Time { return time.Now().UTC() },
		queue:     task.NewQueue(),
		pool:      agent.NewPool(),
		running:   make(map[string]*runningTask),
		completed: make(map[string]*task.Task),
		wake:      make(chan struct{}, 1),
	}

	if deps.Store != nil {
		m.mirror = storage.NewMirror(deps.Store, storage.WithTTL(cfg.TaskTTL, cfg.AgentTTL))
		m.persist = newPersister(m.mirror, cfg.MirrorBuffer, log.Component("persister"), deps.Prometheus)
	}
	if cfg.MaxDispatchPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.MaxDispatchPerSecond), cfg.DispatchBurst)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// signal wakes the dispatch loop without blocking.
func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// RegisterAgent adds an agent of type t. A nil specialties slice selects the
// type's defaults.
func (m *Manager) RegisterAgent(ctx context.Context, t agent.Type, specialties []string) (*agent.Agent, error) {
	if !m.executors.Has(t) {
		return nil, fmt.Errorf("%w for agent type %s", ErrNoExecutor, t)
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	if m.pool.Len() >= m.cfg.MaxAgents {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d agents registered", ErrPoolFull, m.cfg.MaxAgents)
	}
	a := agent.New(t, specialties)
	m.pool.Add(a)
	snap := a.Clone()
	m.mu.Unlock()

	m.log.InfoCtx(ctx, "agent registered",
		logger.Field{Key: "agent_id", Value: snap.ID},
		logger.Field{Key: "type", Value: snap.Type},
		logger.Field{Key: "specialties", Value: snap.Specialties})

	m.persist.saveAgent(snap)
	m.signal()
	return snap.Clone(), nil
}

// AddTask queues t and returns its id. Missing id, retry limit and timeout
// are filled from the configuration. The manager keeps its own copy of t.
func (m *Manager) AddTask(ctx context.Context, t *task.Task) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: nil task", ErrInvalidTask)
	}
	t = t.Clone()
	if t.Type = agent.NormalizeTag(t.Type); t.Type == "" {
		return "", fmt.Errorf("%w: type is required", ErrInvalidTask)
	}
	if t.Priority == 0 {
		t.Priority = task.PriorityMedium
	}
	if !t.Priority.Valid() {
		return "", fmt.Errorf("%w: priority %d", ErrInvalidTask, t.Priority)
	}
	if t.ID == "" {
		t.ID = task.NewID()
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = m.cfg.MaxRetries
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = int(m.cfg.DefaultTimeout / time.Second)
	}
	if t.Payload == nil {
		t.Payload = map[string]any{}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	t.Requeue()
	t.RetryCount = 0

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return "", ErrStopped
	}
	if m.knownLocked(t.ID) {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: duplicate id %s", ErrInvalidTask, t.ID)
	}
	m.queue.Push(t)
	snap := t.Clone()
	m.mu.Unlock()

	m.log.DebugCtx(ctx, "task queued",
		logger.Field{Key: "task_id", Value: snap.ID},
		logger.Field{Key: "type", Value: snap.Type},
		logger.Field{Key: "priority", Value: snap.Priority.String()})

	m.persist.saveTask(snap)
	m.signal()
	return snap.ID, nil
}

func (m *Manager) knownLocked(id string) bool {
	if m.queue.Get(id) != nil {
		return true
	}
	if _, ok := m.running[id]; ok {
		return true
	}
	_, ok := m.completed[id]
	return ok
}

// GetTaskStatus returns a copy of the task. Tasks no longer held in memory
// are read back from storage.
func (m *Manager) GetTaskStatus(ctx context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	if t := m.queue.Get(id); t != nil {
		defer m.mu.Unlock()
		return t.Clone(), nil
	}
	if rt, ok := m.running[id]; ok {
		defer m.mu.Unlock()
		return rt.task.Clone(), nil
	}
	if t, ok := m.completed[id]; ok {
		defer m.mu.Unlock()
		return t.Clone(), nil
	}
	m.mu.Unlock()

	if m.mirror == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t, err := m.mirror.LoadTask(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return t, nil
}

// Settled reports whether the task has left the queue and the running set for
// good. A FAILED status alone is not final: the task keeps it between retry
// attempts. Tasks no longer held in memory have been archived and are settled.
func (m *Manager) Settled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.completed[id]; ok {
		return true
	}
	if m.queue.Get(id) != nil {
		return false
	}
	_, running := m.running[id]
	return !running
}

// SetAgentHealth records the result of an external health check. It is the
// only way an agent's health improves.
func (m *Manager) SetAgentHealth(ctx context.Context, id string, h agent.Health) error {
	h, err := agent.ParseHealth(string(h))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHealth, err)
	}

	m.mu.Lock()
	a, ok := m.pool.Get(id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	prev := a.Health
	a.Health = h
	a.LastActive = m.now()
	snap := a.Clone()
	m.mu.Unlock()

	m.log.InfoCtx(ctx, "agent health set",
		logger.Field{Key: "agent_id", Value: id},
		logger.Field{Key: "from", Value: prev},
		logger.Field{Key: "to", Value: h})

	m.persist.saveAgent(snap)
	m.signal()
	return nil
}

// Agents returns copies of all agents in registration order.
func (m *Manager) Agents() []*agent.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.pool.All()
	out := make([]*agent.Agent, len(all))
	for i, a := range all {
		out[i] = a.Clone()
	}
	return out
}

// Agent returns a copy of the agent with id.
func (m *Manager) Agent(id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.pool.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a.Clone(), nil
}

// Tasks returns copies of every task held in memory: queued in dispatch
// order, then running and completed ones by creation time.
func (m *Manager) Tasks() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	queued := make([]*task.Task, 0, m.queue.Len())
	for _, id := range m.queue.IDs() {
		queued = append(queued, m.queue.Get(id).Clone())
	}

	rest := make([]*task.Task, 0, len(m.running)+len(m.completed))
	for _, rt := range m.running {
		rest = append(rest, rt.task.Clone())
	}
	for _, t := range m.completed {
		rest = append(rest, t.Clone())
	}
	slices.SortFunc(rest, func(a, b *task.Task) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return append(queued, rest...)
}

// Flush blocks until every state change made so far has been written to storage.
func (m *Manager) Flush(ctx context.Context) error {
	return m.persist.flush(ctx)
}
