package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/task"
)

func TestMirror_SaveTaskMovesIndex(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	m := NewMirror(st)

	tk := task.New("research", task.PriorityHigh, map[string]any{"q": "x"})
	require.NoError(t, m.SaveTask(ctx, tk))
	assertIndexes(t, st, tk.ID, IndexPending)

	tk.Start("researcher-1", time.Now().UTC())
	require.NoError(t, m.SaveTask(ctx, tk))
	assertIndexes(t, st, tk.ID, IndexRunning)

	tk.Complete("done", time.Now().UTC())
	require.NoError(t, m.SaveTask(ctx, tk))
	assertIndexes(t, st, tk.ID, IndexCompleted)

	got, err := m.LoadTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "done", got.Result)
}

func assertIndexes(t *testing.T, st Store, id, want string) {
	t.Helper()
	for _, idx := range []string{IndexPending, IndexRunning, IndexCompleted} {
		members, err := st.ZRange(context.Background(), idx)
		require.NoError(t, err)
		if idx == want {
			assert.Contains(t, members, id, idx)
		} else {
			assert.NotContains(t, members, id, idx)
		}
	}
}

func TestMirror_TaskTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	st := NewMemoryStore()
	st.SetClock(func() time.Time { return now })
	m := NewMirror(st)

	tk := task.New("x", task.PriorityLow, nil)
	require.NoError(t, m.SaveTask(ctx, tk))

	now = now.Add(DefaultTaskTTL - time.Minute)
	_, err := m.LoadTask(ctx, tk.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.LoadTask(ctx, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirror_LoadTasksPrunesExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	st := NewMemoryStore()
	st.SetClock(func() time.Time { return now })
	m := NewMirror(st, WithTTL(time.Hour, time.Hour))

	old := task.New("x", task.PriorityLow, nil)
	require.NoError(t, m.SaveTask(ctx, old))
	now = now.Add(50 * time.Minute)

	fresh := task.New("x", task.PriorityLow, nil)
	require.NoError(t, m.SaveTask(ctx, fresh))
	now = now.Add(20 * time.Minute)

	tasks, err := m.LoadTasks(ctx, task.StatusPending)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, fresh.ID, tasks[0].ID)

	members, err := st.ZRange(ctx, IndexPending)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, members)
}

func TestMirror_LoadTasksDeduplicates(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	m := NewMirror(st)

	tk := task.New("x", task.PriorityLow, nil)
	tk.Start("general-1", time.Now().UTC())
	require.NoError(t, m.SaveTask(ctx, tk))
	// Simulate a crash between ZAdd and ZRem.
	require.NoError(t, st.ZAdd(ctx, IndexPending, tk.ID, 1))

	tasks, err := m.LoadTasks(ctx, task.StatusRunning, task.StatusPending)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestMirror_LoadTasksReportsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	m := NewMirror(st)

	good := task.New("x", task.PriorityLow, nil)
	require.NoError(t, m.SaveTask(ctx, good))
	require.NoError(t, st.Set(ctx, TaskKey("bad"), []byte("{"), 0))
	require.NoError(t, st.ZAdd(ctx, IndexPending, "bad", 0))

	tasks, err := m.LoadTasks(ctx, task.StatusPending)
	assert.Error(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, good.ID, tasks[0].ID)
}

func TestMirror_PruneIndexes(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	m := NewMirror(st)

	tk := task.New("x", task.PriorityLow, nil)
	require.NoError(t, m.SaveTask(ctx, tk))
	require.NoError(t, st.ZAdd(ctx, IndexCompleted, "gone", 1))

	n, err := m.PruneIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	members, err := st.ZRange(ctx, IndexCompleted)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMirror_Agents(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	st := NewMemoryStore()
	st.SetClock(func() time.Time { return now })
	m := NewMirror(st)

	first := agent.New(agent.TypeCoder, nil)
	second := agent.New(agent.TypeWriter, nil)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.Health = agent.HealthDegraded

	require.NoError(t, m.SaveAgent(ctx, second))
	require.NoError(t, m.SaveAgent(ctx, first))

	agents, err := m.LoadAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, first.ID, agents[0].ID)
	assert.Equal(t, second.ID, agents[1].ID)
	assert.Equal(t, agent.HealthDegraded, agents[1].Health)

	now = now.Add(DefaultAgentTTL + time.Second)
	agents, err = m.LoadAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)
}
