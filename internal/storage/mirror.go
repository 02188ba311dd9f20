package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/task"
)

// Key layout and retention of mirrored records.
const (
	TaskKeyPrefix  = "task:"
	AgentKeyPrefix = "agent:"

	IndexPending   = "tasks:pending"
	IndexRunning   = "tasks:running"
	IndexCompleted = "tasks:completed"

	DefaultTaskTTL  = 7 * 24 * time.Hour
	DefaultAgentTTL = 24 * time.Hour
)

var indexes = []string{IndexPending, IndexRunning, IndexCompleted}

// TaskKey returns the key a task record is stored under.
func TaskKey(id string) string { return TaskKeyPrefix + id }

// AgentKey returns the key an agent record is stored under.
func AgentKey(id string) string { return AgentKeyPrefix + id }

// IndexFor returns the index set a task in status s belongs to.
func IndexFor(s task.Status) string {
	switch s {
	case task.StatusPending:
		return IndexPending
	case task.StatusRunning:
		return IndexRunning
	default:
		return IndexCompleted
	}
}

// Mirror maps tasks and agents onto a Store.
type Mirror struct {
	store    Store
	taskTTL  time.Duration
	agentTTL time.Duration
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithTTL overrides the record expiries. Non-positive values keep the defaults.
func WithTTL(taskTTL, agentTTL time.Duration) MirrorOption {
	return func(m *Mirror) {
		if taskTTL > 0 {
			m.taskTTL = taskTTL
		}
		if agentTTL > 0 {
			m.agentTTL = agentTTL
		}
	}
}

// NewMirror creates a mirror over store.
func NewMirror(store Store, opts ...MirrorOption) *Mirror {
	m := &Mirror{store: store, taskTTL: DefaultTaskTTL, agentTTL: DefaultAgentTTL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Mirror) Store() Store {
	return m.store
}

// SaveTask upserts the task record and moves its id into the index set for
// its status. The id is added to the new set before it is removed from the
// others, so a crash in between leaves a duplicate rather than a gap.
func (m *Mirror) SaveTask(ctx context.Context, t *task.Task) error {
	data, err := task.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	if err := m.store.Set(ctx, TaskKey(t.ID), data, m.taskTTL); err != nil {
		return err
	}

	target := IndexFor(t.Status)
	if err := m.store.ZAdd(ctx, target, t.ID, indexScore(t)); err != nil {
		return err
	}
	for _, idx := range indexes {
		if idx == target {
			continue
		}
		if err := m.store.ZRem(ctx, idx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func indexScore(t *task.Task) float64 {
	ts := t.CreatedAt
	switch {
	case t.Status == task.StatusRunning && t.StartedAt != nil:
		ts = *t.StartedAt
	case t.Status.IsTerminal() && t.CompletedAt != nil:
		ts = *t.CompletedAt
	}
	return float64(ts.Unix())
}

// LoadTask reads one task record. Missing records return ErrNotFound.
func (m *Mirror) LoadTask(ctx context.Context, id string) (*task.Task, error) {
	data, err := m.store.Get(ctx, TaskKey(id))
	if err != nil {
		return nil, err
	}
	return task.Unmarshal(data)
}

// LoadTasks reads every task indexed under the given statuses' sets, in index
// order, without duplicates. Ids whose record has expired are pruned from the
// index. Undecodable records are skipped and reported in the returned error
// alongside the tasks that did load.
func (m *Mirror) LoadTasks(ctx context.Context, statuses ...task.Status) ([]*task.Task, error) {
	var sets []string
	for _, s := range statuses {
		idx := IndexFor(s)
		if !slices.Contains(sets, idx) {
			sets = append(sets, idx)
		}
	}

	seen := make(map[string]bool)
	var (
		out  []*task.Task
		errs []error
	)
	for _, set := range sets {
		ids, err := m.store.ZRange(ctx, set)
		if err != nil {
			return out, err
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			t, err := m.LoadTask(ctx, id)
			if errors.Is(err, ErrNotFound) {
				if err := m.store.ZRem(ctx, set, id); err != nil {
					errs = append(errs, err)
				}
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("task %s: %w", id, err))
				continue
			}
			seen[id] = true
			out = append(out, t)
		}
	}
	return out, errors.Join(errs...)
}

// PruneIndexes removes index members whose task record no longer exists and
// returns how many were removed.
func (m *Mirror) PruneIndexes(ctx context.Context) (int, error) {
	removed := 0
	for _, set := range indexes {
		ids, err := m.store.ZRange(ctx, set)
		if err != nil {
			return removed, err
		}
		for _, id := range ids {
			if _, err := m.store.Get(ctx, TaskKey(id)); !errors.Is(err, ErrNotFound) {
				continue
			}
			if err := m.store.ZRem(ctx, set, id); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// SaveAgent upserts the agent record.
func (m *Mirror) SaveAgent(ctx context.Context, a *agent.Agent) error {
	data, err := agent.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode agent %s: %w", a.ID, err)
	}
	return m.store.Set(ctx, AgentKey(a.ID), data, m.agentTTL)
}

// LoadAgents reads every live agent record, ordered by creation time.
func (m *Mirror) LoadAgents(ctx context.Context) ([]*agent.Agent, error) {
	keys, err := m.store.Keys(ctx, AgentKeyPrefix)
	if err != nil {
		return nil, err
	}

	var (
		out  []*agent.Agent
		errs []error
	)
	for _, key := range keys {
		data, err := m.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a, err := agent.Unmarshal(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.TrimPrefix(key, AgentKeyPrefix), err))
			continue
		}
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b *agent.Agent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, errors.Join(errs...)
}

