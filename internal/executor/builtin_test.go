package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/agentpool/internal/retry"
)

func TestEcho_ReturnsPayloadCopy(t *testing.T) {
	payload := map[string]any{"topic": "queues"}
	got, err := Echo(context.Background(), Request{Payload: payload})
	require.NoError(t, err)

	out, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, payload, out)

	out["topic"] = "changed"
	assert.Equal(t, "queues", payload["topic"])
}

func TestEcho_Fail(t *testing.T) {
	_, err := Echo(context.Background(), Request{Payload: map[string]any{"fail": true}})
	assert.EqualError(t, err, "echo failure requested")

	_, err = Echo(context.Background(), Request{Payload: map[string]any{"fail": true, "error": "quota"}})
	assert.EqualError(t, err, "quota")
}

func TestEcho_DelayRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Echo(ctx, Request{Payload: map[string]any{"delay_ms": 5000.0}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommand(t *testing.T) {
	run := Command(CommandOptions{Policy: CommandPolicy{AllowShellSyntax: true}})

	got, err := run(context.Background(), Request{Payload: map[string]any{"command": "echo hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", got)

	_, err = run(context.Background(), Request{Payload: map[string]any{"command": "echo oops >&2; exit 3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "oops")

	_, err = run(context.Background(), Request{Payload: map[string]any{}})
	assert.Error(t, err)
}

func TestCommand_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	run := Command(CommandOptions{Dir: dir})

	got, err := run(context.Background(), Request{Payload: map[string]any{"command": "pwd"}})
	require.NoError(t, err)
	assert.Contains(t, got, dir)
}

func TestCommand_Timeout(t *testing.T) {
	run := Command(CommandOptions{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := run(context.Background(), Request{Payload: map[string]any{"command": "sleep 5"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestCommand_TimeoutKillsChildren(t *testing.T) {
	run := Command(CommandOptions{
		Timeout: 50 * time.Millisecond,
		Policy:  CommandPolicy{AllowShellSyntax: true},
	})

	// The shell forks sleep, which holds stdout open after the shell dies.
	start := time.Now()
	_, err := run(context.Background(), Request{Payload: map[string]any{"command": "sleep 4; echo done"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommand_Cancel(t *testing.T) {
	run := Command(CommandOptions{Policy: CommandPolicy{AllowShellSyntax: true}})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := run(ctx, Request{Payload: map[string]any{"command": "sleep 4 | cat"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommand_PolicyRejectsBeforeRunning(t *testing.T) {
	dir := t.TempDir()
	run := Command(CommandOptions{Dir: dir, Policy: CommandPolicy{Deny: []string{"rm"}}})

	_, err := run(context.Background(), Request{Payload: map[string]any{"command": "touch marker; echo hi"}})
	assert.ErrorIs(t, err, ErrShellSyntax)

	_, err = run(context.Background(), Request{Payload: map[string]any{"command": "rm -rf ."}})
	assert.ErrorIs(t, err, ErrDenied)
	assert.True(t, retry.IsPermanent(err), "a rejected command is not retried")

	assert.NoFileExists(t, filepath.Join(dir, "marker"))
}

func TestCommand_PayloadDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "work"), 0o755))
	run := Command(CommandOptions{Dir: base})

	got, err := run(context.Background(), Request{Payload: map[string]any{"command": "pwd", "dir": "work"}})
	require.NoError(t, err)
	assert.Contains(t, got, filepath.Join(base, "work"))

	for _, dir := range []string{"../", "work/../..", "/etc"} {
		_, err = run(context.Background(), Request{Payload: map[string]any{"command": "pwd", "dir": dir}})
		assert.ErrorIs(t, err, ErrPathTraversal, dir)
	}

	unbased := Command(CommandOptions{})
	_, err = unbased(context.Background(), Request{Payload: map[string]any{"command": "pwd", "dir": "/tmp/../etc"}})
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestBuiltin(t *testing.T) {
	fn, err := Builtin("Echo", CommandOptions{})
	require.NoError(t, err)
	assert.NotNil(t, fn)

	fn, err = Builtin("command", CommandOptions{})
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = Builtin("llm", CommandOptions{})
	assert.Error(t, err)
}
