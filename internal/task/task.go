// Package task defines the unit of work handled by the scheduler: its
// priority, its lifecycle state machine and the priority queue that orders it.
package task

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is used when a task does not set MaxRetries.
const DefaultMaxRetries = 3

// Priority orders tasks in the queue; higher values dispatch first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 20
)

// String returns the upper-case priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return strconv.Itoa(int(p))
	}
}

// ParsePriority accepts a priority name (any case) or its numeric value.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "", "MEDIUM":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	case "CRITICAL":
		return PriorityCritical, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid priority %q (expected: low, medium, high, critical)", s)
	}
	p := Priority(n)
	if !p.Valid() {
		return 0, fmt.Errorf("invalid priority %d (expected: 1, 5, 10, 20)", n)
	}
	return p, nil
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status is a task lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCanceled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusRunning || s.IsTerminal()
}

// Task is one unit of asynchronous work. Only the scheduler mutates a task;
// everything handed to callers is a Clone.
type Task struct {
	ID       string
	Type     string
	Priority Priority
	Payload  map[string]any
	Status   Status

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Result any    // set only when Status == StatusCompleted
	Error  string // set only when Status is failed or timeout

	AgentID        string
	RetryCount     int
	MaxRetries     int
	TimeoutSeconds int
}

// New creates a pending task with a fresh id.
func New(taskType string, priority Priority, payload map[string]any) *Task {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Task{
		ID:         NewID(),
		Type:       taskType,
		Priority:   priority,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewID returns a new task identifier.
func NewID() string {
	return uuid.NewString()
}

// Start records an execution attempt on agentID.
func (t *Task) Start(agentID string, now time.Time) {
	started := now
	t.Status = StatusRunning
	t.StartedAt = &started
	t.CompletedAt = nil
	t.AgentID = agentID
	t.Result = nil
	t.Error = ""
}

// Complete records a successful execution.
func (t *Task) Complete(result any, now time.Time) {
	t.finish(StatusCompleted, now)
	t.Result = result
	t.Error = ""
}

// Fail records a failed execution.
func (t *Task) Fail(msg string, now time.Time) {
	t.finish(StatusFailed, now)
	t.Result = nil
	t.Error = msg
}

// TimeOut records that the task overran its timeout.
func (t *Task) TimeOut(msg string, now time.Time) {
	t.finish(StatusTimeout, now)
	t.Result = nil
	t.Error = msg
}

// Cancel records a cancellation. A canceled task carries neither result nor error.
func (t *Task) Cancel(now time.Time) {
	t.finish(StatusCanceled, now)
	t.Result = nil
	t.Error = ""
}

// Requeue returns the task to pending so it can be dispatched again.
func (t *Task) Requeue() {
	t.Status = StatusPending
	t.StartedAt = nil
	t.CompletedAt = nil
	t.AgentID = ""
	t.Result = nil
	t.Error = ""
}

func (t *Task) finish(status Status, now time.Time) {
	completed := now
	t.Status = status
	t.CompletedAt = &completed
}

// Timeout returns TimeoutSeconds as a duration.
func (t *Task) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Overdue reports whether a running task exceeded its timeout at now.
func (t *Task) Overdue(now time.Time) bool {
	if t.Status != StatusRunning || t.StartedAt == nil || t.TimeoutSeconds <= 0 {
		return false
	}
	return now.Sub(*t.StartedAt) > t.Timeout()
}

// Duration returns completed_at - started_at, or 0 when either is unset.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// Clone returns a copy that shares no mutable state with t. Payload values
// are copied one level deep.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Payload = maps.Clone(t.Payload)
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
