package scheduler

import (
	"errors"

	"github.com/aatumaykin/agentpool/internal/executor"
)

var (
	// ErrTaskNotFound is returned when a task id is unknown to memory and storage.
	ErrTaskNotFound = errors.New("task not found")
	// ErrAgentNotFound is returned for an unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrNoExecutor is returned when an agent type has no execution callback.
	ErrNoExecutor = executor.ErrNoExecutor
	// ErrPoolFull is returned by RegisterAgent once the pool ceiling is reached.
	ErrPoolFull = errors.New("agent pool is full")
	// ErrInvalidHealth is returned by SetAgentHealth for an unknown health value.
	ErrInvalidHealth = errors.New("invalid agent health")
	// ErrInvalidTask is returned by AddTask for tasks that cannot be queued.
	ErrInvalidTask = errors.New("invalid task")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrStopped is returned by operations after Stop.
	ErrStopped = errors.New("scheduler stopped")

	// errSuperseded ends a retry sequence whose task was canceled or timed out.
	errSuperseded = errors.New("task no longer running")
)
