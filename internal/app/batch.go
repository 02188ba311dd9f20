package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/task"
)

// batchPollInterval is how often RunBatch checks for unfinished tasks.
const batchPollInterval = 50 * time.Millisecond

// TaskFile is the YAML document accepted by `agentpool run`.
//
//	tasks:
//	  - type: research
//	    priority: high
//	    payload: {query: "queue theory"}
//	    max_retries: 2
//	    timeout_seconds: 60
type TaskFile struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// TaskSpec describes one task of a batch.
type TaskSpec struct {
	ID             string         `yaml:"id"`
	Type           string         `yaml:"type"`
	Priority       string         `yaml:"priority"`
	Payload        map[string]any `yaml:"payload"`
	MaxRetries     int            `yaml:"max_retries"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
}

// LoadTaskFile reads and converts a YAML task file.
func LoadTaskFile(path string) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return ParseTaskFile(data)
}

// ParseTaskFile converts a YAML task document into tasks.
func ParseTaskFile(data []byte) ([]*task.Task, error) {
	var file TaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("task file contains no tasks")
	}

	tasks := make([]*task.Task, 0, len(file.Tasks))
	for i, spec := range file.Tasks {
		if spec.Type == "" {
			return nil, fmt.Errorf("tasks[%d]: type is required", i)
		}
		p, err := task.ParsePriority(spec.Priority)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}

		t := task.New(spec.Type, p, spec.Payload)
		if spec.ID != "" {
			t.ID = spec.ID
		}
		t.MaxRetries = spec.MaxRetries
		t.TimeoutSeconds = spec.TimeoutSeconds
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// RunBatch submits tasks to the started scheduler and waits until every one
// of them is settled, retries included. It returns the final state of each
// task in input order.
func (a *App) RunBatch(ctx context.Context, tasks []*task.Task) ([]*task.Task, error) {
	m := a.Manager()
	if m == nil {
		return nil, fmt.Errorf("app is not initialized")
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		id, err := m.AddTask(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("submit task %s: %w", t.ID, err)
		}
		ids = append(ids, id)
	}
	a.logger.Info("batch submitted", logger.Field{Key: "tasks", Value: len(ids)})

	ticker := time.NewTicker(batchPollInterval)
	defer ticker.Stop()

	for {
		results, done, err := a.collect(ctx, ids)
		if err != nil {
			return nil, err
		}
		if done {
			return results, nil
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) collect(ctx context.Context, ids []string) ([]*task.Task, bool, error) {
	m := a.Manager()
	results := make([]*task.Task, 0, len(ids))
	done := true
	for _, id := range ids {
		// Checked before the read so a settled task's copy is its final state.
		settled := m.Settled(id)
		t, err := m.GetTaskStatus(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !settled {
			done = false
		}
		results = append(results, t)
	}
	return results, done, nil
}
