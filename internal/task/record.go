package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted shape of a task.
type Record struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Priority       Priority       `json:"priority"`
	Payload        map[string]any `json:"payload"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Result         any            `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

// ToRecord converts t to its persisted shape.
func (t *Task) ToRecord() Record {
	c := t.Clone()
	return Record{
		ID:             c.ID,
		Type:           c.Type,
		Priority:       c.Priority,
		Payload:        c.Payload,
		Status:         c.Status,
		CreatedAt:      c.CreatedAt,
		StartedAt:      c.StartedAt,
		CompletedAt:    c.CompletedAt,
		Result:         c.Result,
		Error:          c.Error,
		AgentID:        c.AgentID,
		RetryCount:     c.RetryCount,
		MaxRetries:     c.MaxRetries,
		TimeoutSeconds: c.TimeoutSeconds,
	}
}

// Task rebuilds a task from its record.
func (r Record) Task() *Task {
	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	t := &Task{
		ID:             r.ID,
		Type:           r.Type,
		Priority:       r.Priority,
		Payload:        payload,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Result:         r.Result,
		Error:          r.Error,
		AgentID:        r.AgentID,
		RetryCount:     r.RetryCount,
		MaxRetries:     r.MaxRetries,
		TimeoutSeconds: r.TimeoutSeconds,
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = DefaultMaxRetries
	}
	return t
}

// Marshal serializes t as a JSON record.
func Marshal(t *Task) ([]byte, error) {
	return json.Marshal(t.ToRecord())
}

// Unmarshal parses a JSON record.
func Unmarshal(data []byte) (*Task, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode task record: %w", err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("task record has no id")
	}
	if !r.Status.Valid() {
		return nil, fmt.Errorf("task record %s has unknown status %q", r.ID, r.Status)
	}
	return r.Task(), nil
}
