package app

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/agentpool/internal/agent"
	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/executor"
	"github.com/aatumaykin/agentpool/internal/task"
)

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, k := range []string{config.EnvMaxAgents, config.EnvTaskTimeout, config.EnvStorageURL, config.EnvLogLevel, config.EnvRedisURL} {
		t.Setenv(k, "")
	}
	cfg, err := config.Default()
	require.NoError(t, err)

	cfg.Scheduler.RetryBaseDelayMs = 1
	cfg.Scheduler.RetryMaxDelayMs = 5
	cfg.Scheduler.DispatchIntervalMs = 10
	cfg.Scheduler.MonitorIntervalSeconds = 1
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a := New(cfg, nil)
	require.NoError(t, a.Initialize(context.Background()))
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestBuildRegistry(t *testing.T) {
	reg, err := BuildRegistry(config.ExecutorsConfig{
		Default: "echo",
		Types:   map[string]string{"coder": "command"},
		Command: config.CommandConfig{Shell: "sh"},
	})
	require.NoError(t, err)
	assert.Empty(t, reg.Missing(agent.KnownTypes()...))
	assert.Contains(t, reg.Types(), agent.TypeCoder)

	fn, err := reg.Lookup(agent.TypeCoder)
	require.NoError(t, err)
	out, err := fn(context.Background(), executor.Request{Payload: map[string]any{"command": "echo hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)

	reg, err = BuildRegistry(config.ExecutorsConfig{
		Default: "command",
		Command: config.CommandConfig{AllowedCommands: []string{"echo"}},
	})
	require.NoError(t, err)
	fn, err = reg.Lookup(agent.TypeGeneral)
	require.NoError(t, err)
	_, err = fn(context.Background(), executor.Request{Payload: map[string]any{"command": "id"}})
	assert.ErrorIs(t, err, executor.ErrNotAllowed)
	_, err = fn(context.Background(), executor.Request{Payload: map[string]any{"command": "echo hi; id"}})
	assert.ErrorIs(t, err, executor.ErrShellSyntax)

	_, err = BuildRegistry(config.ExecutorsConfig{Default: "docker"})
	assert.Error(t, err)

	reg, err = BuildRegistry(config.ExecutorsConfig{Types: map[string]string{"writer": "echo"}})
	require.NoError(t, err)
	assert.Equal(t, []agent.Type{agent.TypeGeneral, agent.TypeResearcher, agent.TypeCoder, agent.TypeAnalyst},
		reg.Missing(agent.KnownTypes()...))
}

func TestInitialize_RejectsBadStorage(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Storage.URL = "postgres://user:secret@db"

	err := New(cfg, nil).Initialize(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestStart_RequiresInitialize(t *testing.T) {
	assert.Error(t, New(createTestConfig(t), nil).Start(context.Background()))
}

func TestRunBatch(t *testing.T) {
	a := startApp(t, createTestConfig(t))

	tasks, err := ParseTaskFile([]byte(`
tasks:
  - id: ok-1
    type: research
    priority: high
    payload:
      query: queue theory
  - id: broken-1
    type: coding
    priority: 1
    max_retries: 2
    payload:
      fail: true
      error: compiler exploded
`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := a.RunBatch(ctx, tasks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "ok-1", results[0].ID)
	assert.Equal(t, task.StatusCompleted, results[0].Status)
	assert.Equal(t, map[string]any{"query": "queue theory"}, results[0].Result)

	assert.Equal(t, "broken-1", results[1].ID)
	assert.Equal(t, task.StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "maximum retries exceeded: compiler exploded")
	assert.Equal(t, 1, results[1].RetryCount)
}

func TestRunBatch_WaitsForRetries(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Scheduler.RetryBaseDelayMs = 300
	cfg.Scheduler.RetryMaxDelayMs = 300
	cfg.Executors.Types = map[string]string{"researcher": "command"}
	cfg.Executors.Command.Dir = t.TempDir()
	cfg.Executors.Command.AllowShellSyntax = true
	a := startApp(t, cfg)

	tasks, err := ParseTaskFile([]byte(`
tasks:
  - id: flaky-1
    type: research
    max_retries: 3
    payload:
      command: "if [ -f attempted ]; then echo recovered; else touch attempted; exit 1; fi"
`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := a.RunBatch(ctx, tasks)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, task.StatusCompleted, results[0].Status, "a failed attempt with retries left is not final")
	assert.Equal(t, "recovered\n", results[0].Result)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, 1, results[0].RetryCount)
}

func TestRunBatch_SurvivesRestartWithSQLite(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Storage.URL = "sqlite://" + filepath.Join(t.TempDir(), "state.db")

	first := New(cfg, nil)
	require.NoError(t, first.Initialize(context.Background()))
	require.NoError(t, first.Start(context.Background()))

	tasks, err := ParseTaskFile([]byte("tasks:\n  - {id: persisted-1, type: writing}\n"))
	require.NoError(t, err)
	_, err = first.RunBatch(context.Background(), tasks)
	require.NoError(t, err)
	require.NoError(t, first.Shutdown(context.Background()))

	second := New(cfg, nil)
	require.NoError(t, second.Initialize(context.Background()))
	t.Cleanup(func() { _ = second.Shutdown(context.Background()) })

	got, err := second.Manager().GetTaskStatus(context.Background(), "persisted-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "writing", got.Type)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:0"
	a := startApp(t, cfg)

	addr := a.MetricsAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + cfg.Metrics.Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "agentpool_queue_length")
	assert.Contains(t, string(body), "go_goroutines")

	health, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := New(createTestConfig(t), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		m := a.Manager()
		return m != nil && m.Metrics().TotalAgents == config.DefaultMaxAgents
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a := New(createTestConfig(t), nil)
	assert.NoError(t, a.Shutdown(context.Background()), "never initialized")

	require.NoError(t, a.Initialize(context.Background()))
	assert.NoError(t, a.Shutdown(context.Background()))
	assert.NoError(t, a.Shutdown(context.Background()))
}
