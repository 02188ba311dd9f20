package agent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted shape of an agent.
type Record struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Status         Status    `json:"status"`
	LastActive     time.Time `json:"last_active"`
	CompletedCount int       `json:"completed_count"`
	FailedCount    int       `json:"failed_count"`
	TotalRuntime   float64   `json:"total_runtime"`
	HealthStatus   Health    `json:"health_status"`
	Specialties    []string  `json:"specialties"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToRecord converts a to its persisted shape.
func (a *Agent) ToRecord() Record {
	c := a.Clone()
	return Record{
		ID:             c.ID,
		Type:           c.Type,
		Status:         c.Status,
		LastActive:     c.LastActive,
		CompletedCount: c.CompletedCount,
		FailedCount:    c.FailedCount,
		TotalRuntime:   c.TotalRuntime,
		HealthStatus:   c.Health,
		Specialties:    c.Specialties,
		CreatedAt:      c.CreatedAt,
	}
}

// Agent rebuilds an agent from its record.
func (r Record) Agent() *Agent {
	a := &Agent{
		ID:             r.ID,
		Type:           r.Type,
		Specialties:    NormalizeSpecialties(r.Specialties),
		Status:         r.Status,
		Health:         r.HealthStatus,
		CompletedCount: r.CompletedCount,
		FailedCount:    r.FailedCount,
		TotalRuntime:   r.TotalRuntime,
		LastActive:     r.LastActive,
		CreatedAt:      r.CreatedAt,
	}
	if a.Status == "" {
		a.Status = StatusIdle
	}
	if a.Health == "" {
		a.Health = HealthHealthy
	}
	return a
}

// Marshal serializes a as a JSON record.
func Marshal(a *Agent) ([]byte, error) {
	return json.Marshal(a.ToRecord())
}

// Unmarshal parses a JSON agent record.
func Unmarshal(data []byte) (*Agent, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode agent record: %w", err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("agent record has no id")
	}
	return r.Agent(), nil
}
