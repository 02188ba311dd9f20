package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os/exec"
	"strings"
	"time"

	"github.com/aatumaykin/agentpool/internal/retry"
)

// Built-in executor names accepted by Builtin.
const (
	NameEcho    = "echo"
	NameCommand = "command"
)

// Builtin returns the built-in executor called name.
func Builtin(name string, opts CommandOptions) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameEcho:
		return Echo, nil
	case NameCommand:
		return Command(opts), nil
	default:
		return nil, fmt.Errorf("unknown executor %q (expected: %s, %s)", name, NameEcho, NameCommand)
	}
}

// Echo returns the payload. A "delay_ms" number makes it sleep first
// (respecting ctx); "fail": true makes it return an error instead.
func Echo(ctx context.Context, req Request) (any, error) {
	if d := durationMillis(req.Payload["delay_ms"]); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	if fail, _ := req.Payload["fail"].(bool); fail {
		msg, _ := req.Payload["error"].(string)
		if msg == "" {
			msg = "echo failure requested"
		}
		return nil, errors.New(msg)
	}

	return maps.Clone(req.Payload), nil
}

func durationMillis(v any) time.Duration {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Millisecond
	case int64:
		return time.Duration(n) * time.Millisecond
	case uint64:
		return time.Duration(n) * time.Millisecond
	case float64:
		return time.Duration(n * float64(time.Millisecond))
	}
	return 0
}

// commandWaitDelay bounds how long Run waits for output pipes after the
// process group was killed.
const commandWaitDelay = 500 * time.Millisecond

// CommandOptions configures the Command executor.
type CommandOptions struct {
	Shell   string        // default "sh"
	Dir     string        // working directory; "" keeps the process cwd
	Timeout time.Duration // per attempt; 0 relies on the task context only

	// Policy restricts which commands may run. The zero value rejects shell
	// syntax and path traversal and allows every command name.
	Policy CommandPolicy
}

// Command runs payload["command"] through "<shell> -c" and returns the
// combined stdout/stderr. A non-zero exit status is an error carrying the output.
// On timeout or cancellation the whole process group is killed. Commands the
// policy rejects fail permanently and are not retried.
func Command(opts CommandOptions) Func {
	shell := opts.Shell
	if shell == "" {
		shell = "sh"
	}

	return func(ctx context.Context, req Request) (any, error) {
		command, _ := req.Payload["command"].(string)
		command = strings.TrimSpace(command)
		if command == "" {
			return nil, retry.Permanent(fmt.Errorf("payload field \"command\" is required"))
		}
		if err := opts.Policy.Check(command); err != nil {
			return nil, retry.Permanent(fmt.Errorf("command rejected: %w", err))
		}

		dir := opts.Dir
		if d, ok := req.Payload["dir"].(string); ok && d != "" {
			var err error
			if dir, err = resolveDir(opts.Dir, d); err != nil {
				return nil, retry.Permanent(fmt.Errorf("command rejected: %w", err))
			}
		}

		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, shell, "-c", command)
		cmd.Dir = dir
		cmd.WaitDelay = commandWaitDelay
		killProcessGroup(cmd)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()

		output := stdout.String()
		if stderr.Len() > 0 {
			output += stderr.String()
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("command interrupted: %w: %s", ctxErr, strings.TrimSpace(output))
		}
		if err != nil {
			return nil, fmt.Errorf("command exited with code %d: %w: %s",
				exitCode(err), err, strings.TrimSpace(output))
		}
		return output, nil
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
