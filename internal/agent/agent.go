// Package agent models the worker handles that execute tasks: their type,
// specialties, health and load counters, and the pool that selects among them.
package agent

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type is the agent kind. The set is open; KnownTypes lists the built-in ones.
type Type string

const (
	TypeGeneral    Type = "GENERAL"
	TypeResearcher Type = "RESEARCHER"
	TypeWriter     Type = "WRITER"
	TypeCoder      Type = "CODER"
	TypeAnalyst    Type = "ANALYST"
)

var knownTypes = []Type{TypeGeneral, TypeResearcher, TypeWriter, TypeCoder, TypeAnalyst}

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// KnownTypes returns the built-in agent types in bootstrap order.
func KnownTypes() []Type {
	return slices.Clone(knownTypes)
}

// ParseType normalises s to an upper-case Type. Unknown names are accepted.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("agent type is empty")
	}
	return Type(upper.String(s)), nil
}

// Known reports whether t is one of the built-in types.
func (t Type) Known() bool {
	return slices.Contains(knownTypes, t)
}

// Status is the agent's availability.
type Status string

const (
	StatusIdle Status = "idle"
	StatusBusy Status = "busy"
)

// Health is the agent's health signal.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// ParseHealth validates a health name.
func ParseHealth(s string) (Health, error) {
	h := Health(lower.String(strings.TrimSpace(s)))
	switch h {
	case HealthHealthy, HealthDegraded, HealthUnhealthy:
		return h, nil
	}
	return "", fmt.Errorf("invalid health %q (expected: healthy, degraded, unhealthy)", s)
}

// DefaultSpecialties returns the task-type tags a built-in agent type is preferred for.
func DefaultSpecialties(t Type) []string {
	switch t {
	case TypeResearcher:
		return []string{"research", "analysis"}
	case TypeWriter:
		return []string{"writing", "content"}
	case TypeCoder:
		return []string{"coding", "programming"}
	case TypeAnalyst:
		return []string{"analysis", "data"}
	default:
		return []string{}
	}
}

// Agent is a worker handle. Counters are monotonic and never reset.
type Agent struct {
	ID          string
	Type        Type
	Specialties []string
	Status      Status
	Health      Health

	CompletedCount int
	FailedCount    int
	TotalRuntime   float64 // seconds

	LastActive  time.Time
	CurrentTask string
	CreatedAt   time.Time
}

// New creates an idle, healthy agent. A nil specialties slice selects
// DefaultSpecialties for the type.
func New(t Type, specialties []string) *Agent {
	if specialties == nil {
		specialties = DefaultSpecialties(t)
	}
	now := time.Now().UTC()
	return &Agent{
		ID:          NewID(t),
		Type:        t,
		Specialties: NormalizeSpecialties(specialties),
		Status:      StatusIdle,
		Health:      HealthHealthy,
		LastActive:  now,
		CreatedAt:   now,
	}
}

// NewID returns "<type>-<8 hex chars>".
func NewID(t Type) string {
	return lower.String(string(t)) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NormalizeTag returns the canonical form of a task-type tag.
func NormalizeTag(tag string) string {
	return lower.String(strings.TrimSpace(tag))
}

// NormalizeSpecialties normalises and de-duplicates tags keeping first-seen order.
func NormalizeSpecialties(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = NormalizeTag(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// HasSpecialty reports whether taskType is one of the agent's specialties.
func (a *Agent) HasSpecialty(taskType string) bool {
	return slices.Contains(a.Specialties, taskType)
}

// Idle reports whether the agent can take a task.
func (a *Agent) Idle() bool {
	return a.Status == StatusIdle
}

// Reserve marks the agent busy with taskID.
func (a *Agent) Reserve(taskID string, now time.Time) {
	a.Status = StatusBusy
	a.CurrentTask = taskID
	a.LastActive = now
}

// Release returns the agent to idle.
func (a *Agent) Release(now time.Time) {
	a.Status = StatusIdle
	a.CurrentTask = ""
	a.LastActive = now
}

// RecordSuccess counts one completed execution.
func (a *Agent) RecordSuccess(runtime time.Duration) {
	a.CompletedCount++
	a.TotalRuntime += runtime.Seconds()
}

// RecordFailure counts one failed execution.
func (a *Agent) RecordFailure(runtime time.Duration) {
	a.FailedCount++
	a.TotalRuntime += runtime.Seconds()
}

// FailureRate returns failed/(failed+completed), or 0 without history.
func (a *Agent) FailureRate() float64 {
	total := a.FailedCount + a.CompletedCount
	if total == 0 {
		return 0
	}
	return float64(a.FailedCount) / float64(total)
}

// Clone returns a copy that shares no mutable state with a.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := *a
	c.Specialties = slices.Clone(a.Specialties)
	return &c
}
