// Package executor holds the execution callbacks the scheduler dispatches to,
// keyed by agent type.
package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aatumaykin/agentpool/internal/agent"
)

// ErrNoExecutor is returned by Lookup when neither the type nor a default is registered.
var ErrNoExecutor = errors.New("no executor registered")

// Request is handed to a Func for one execution attempt. Payload is a copy
// owned by the execution.
type Request struct {
	TaskID    string
	TaskType  string
	Payload   map[string]any
	AgentID   string
	AgentType agent.Type
	Attempt   int
}

// Func performs the work of a task and returns its result.
type Func func(ctx context.Context, req Request) (any, error)

// Registry maps agent types to execution callbacks.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	funcs    map[agent.Type]Func
	fallback Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[agent.Type]Func)}
}

// Register binds fn to agent type t, replacing any previous binding.
func (r *Registry) Register(t agent.Type, fn Func) error {
	if fn == nil {
		return fmt.Errorf("cannot register nil executor for %s", t)
	}
	if t == "" {
		return fmt.Errorf("agent type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[t] = fn
	return nil
}

// SetDefault sets the executor used for types without their own binding.
func (r *Registry) SetDefault(fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Lookup returns the executor for t, falling back to the default.
func (r *Registry) Lookup(t agent.Type) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.funcs[t]; ok {
		return fn, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w for agent type %s", ErrNoExecutor, t)
}

// Has reports whether Lookup(t) would succeed.
func (r *Registry) Has(t agent.Type) bool {
	_, err := r.Lookup(t)
	return err == nil
}

// Missing returns the types among ts that have no executor, in input order.
func (r *Registry) Missing(ts ...agent.Type) []agent.Type {
	var missing []agent.Type
	for _, t := range ts {
		if !r.Has(t) && !slices.Contains(missing, t) {
			missing = append(missing, t)
		}
	}
	return missing
}

// Types returns the explicitly registered types, sorted.
func (r *Registry) Types() []agent.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]agent.Type, 0, len(r.funcs))
	for t := range r.funcs {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
