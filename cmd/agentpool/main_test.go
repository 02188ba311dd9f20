package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/storage"
	"github.com/aatumaykin/agentpool/internal/task"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvMaxAgents, config.EnvTaskTimeout, config.EnvStorageURL, config.EnvLogLevel, config.EnvRedisURL} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommandStructure(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{"version", "config", "serve", "run", "tasks"} {
		assert.True(t, found[name], "missing command %q", name)
	}

	sub := func(parent string) []string {
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() != parent {
				continue
			}
			var names []string
			for _, c := range cmd.Commands() {
				names = append(names, c.Name())
			}
			return names
		}
		return nil
	}
	assert.Contains(t, sub("config"), "validate")
	assert.ElementsMatch(t, []string{"show", "list"}, sub("tasks"))
}

func TestPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	cfgFlag := flags.Lookup("config")
	require.NotNil(t, cfgFlag)
	assert.Equal(t, "c", cfgFlag.Shorthand)
	assert.Equal(t, "./config.toml", cfgFlag.DefValue)

	levelFlag := flags.Lookup("log-level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "l", levelFlag.Shorthand)

	assert.NotNil(t, runCmd.Flags().Lookup("timeout"))
	assert.NotNil(t, tasksListCmd.Flags().Lookup("status"))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: ")
	assert.Contains(t, out, "Go Version: go")
}

func TestConfigValidate(t *testing.T) {
	clearEnv(t)

	valid := writeConfig(t, "[scheduler]\nmax_agents = 4\n")
	out, err := execute(t, "config", "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	invalid := writeConfig(t, "[scheduler]\nfailure_rate_threshold = 2.0\n\n[storage]\nurl = \"ftp://nowhere\"\n")
	out, err = execute(t, "config", "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, out, "failure_rate_threshold")
	assert.Contains(t, out, "storage.url")

	_, err = execute(t, "config", "validate", filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadConfig_LogLevelOverride(t *testing.T) {
	clearEnv(t)
	configPath = writeConfig(t, "[logging]\nlevel = \"info\"\n")
	logLevel = "debug"
	t.Cleanup(func() {
		configPath = "./config.toml"
		logLevel = ""
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	logLevel = "loud"
	_, err = loadConfig()
	var verr *validationErrors
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "logging.level")
}

func seedTasks(t *testing.T, url string, tasks ...*task.Task) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	m := storage.NewMirror(store)
	for _, tk := range tasks {
		require.NoError(t, m.SaveTask(ctx, tk))
	}
}

func TestTasksCommands(t *testing.T) {
	clearEnv(t)
	url := "sqlite://" + filepath.Join(t.TempDir(), "state.db")
	cfgPath := writeConfig(t, "[storage]\nurl = \""+url+"\"\n")

	now := time.Now().UTC()
	done := task.New("research", task.PriorityHigh, map[string]any{"q": "x"})
	done.ID = "task-done"
	done.Start("researcher-1", now)
	done.Complete("answer", now.Add(time.Second))

	queued := task.New("coding", task.PriorityLow, nil)
	queued.ID = "task-queued"
	seedTasks(t, url, done, queued)

	out, err := execute(t, "tasks", "show", "task-done", "-c", cfgPath)
	require.NoError(t, err)
	var rec task.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "task-done", rec.ID)
	assert.Equal(t, task.StatusCompleted, rec.Status)
	assert.Equal(t, "answer", rec.Result)

	out, err = execute(t, "tasks", "show", "nope", "-c", cfgPath)
	assert.Error(t, err)
	assert.Contains(t, out, "task nope not found")

	out, err = execute(t, "tasks", "list", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "task-done")
	assert.Contains(t, out, "task-queued")
	assert.Contains(t, out, "researcher-1")
}

func TestTasks_PersistenceDisabled(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, "[storage]\nurl = \"none\"\n")

	_, err := execute(t, "tasks", "show", "x", "-c", cfgPath)
	assert.ErrorContains(t, err, "persistence is disabled")
}

func TestParseStatuses(t *testing.T) {
	all, err := parseStatuses(nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	got, err := parseStatuses([]string{"FAILED", " timeout "})
	require.NoError(t, err)
	assert.Equal(t, []task.Status{task.StatusFailed, task.StatusTimeout}, got)

	_, err = parseStatuses([]string{"done"})
	assert.Error(t, err)
}

func TestPrintTasks(t *testing.T) {
	failed := task.New("coding", task.PriorityCritical, nil)
	failed.ID = "t-failed"
	failed.Fail("boom", time.Now())
	completed := task.New("coding", task.PriorityLow, nil)
	completed.ID = "t-completed"
	completed.Complete(nil, time.Now())

	var buf bytes.Buffer
	printTasks(&buf, []*task.Task{failed, completed}, []task.Status{task.StatusFailed})
	assert.Contains(t, buf.String(), "t-failed")
	assert.Contains(t, buf.String(), "CRITICAL")
	assert.NotContains(t, buf.String(), "t-completed", "shares the index but not the status")

	buf.Reset()
	printTasks(&buf, nil, allStatuses)
	assert.Equal(t, "no tasks found\n", buf.String())
}

func TestPrintResults(t *testing.T) {
	ok := task.New("research", task.PriorityMedium, nil)
	ok.Complete("fine", time.Now())
	bad := task.New("coding", task.PriorityMedium, nil)
	bad.Fail("broken", time.Now())

	var buf bytes.Buffer
	runCmd.SetOut(&buf)
	t.Cleanup(func() { runCmd.SetOut(nil) })

	require.NoError(t, printResults(runCmd, []*task.Task{ok}))
	var recs []task.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "fine", recs[0].Result)

	buf.Reset()
	assert.ErrorContains(t, printResults(runCmd, []*task.Task{ok, bad}), "1 of 2")
}

func TestRunCommand(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, `[scheduler]
max_agents = 2
retry_base_delay_ms = 1
retry_max_delay_ms = 5
dispatch_interval_ms = 10

[logging]
output = "discard"
`)
	tasksPath := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(tasksPath, []byte("tasks:\n  - {id: batch-1, type: research, payload: {n: 1}}\n"), 0o644))

	out, err := execute(t, "run", tasksPath, "-c", cfgPath)
	require.NoError(t, err)

	var recs []task.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "batch-1", recs[0].ID)
	assert.Equal(t, task.StatusCompleted, recs[0].Status)
}
