package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "coder", want: TypeCoder},
		{in: " Researcher ", want: TypeResearcher},
		{in: "GENERAL", want: TypeGeneral},
		{in: "translator", want: Type("TRANSLATOR")},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, TypeAnalyst.Known())
	assert.False(t, Type("TRANSLATOR").Known())
}

func TestParseHealth(t *testing.T) {
	h, err := ParseHealth("Degraded")
	require.NoError(t, err)
	assert.Equal(t, HealthDegraded, h)

	_, err = ParseHealth("sick")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	a := New(TypeResearcher, nil)

	assert.True(t, strings.HasPrefix(a.ID, "researcher-"))
	assert.Len(t, a.ID, len("researcher-")+8)
	assert.Equal(t, []string{"research", "analysis"}, a.Specialties)
	assert.Equal(t, StatusIdle, a.Status)
	assert.Equal(t, HealthHealthy, a.Health)
	assert.False(t, a.CreatedAt.IsZero())

	custom := New(TypeGeneral, []string{"Translation", "translation", " ", "ops"})
	assert.Equal(t, []string{"translation", "ops"}, custom.Specialties)

	assert.NotEqual(t, New(TypeCoder, nil).ID, New(TypeCoder, nil).ID)
}

func TestDefaultSpecialties(t *testing.T) {
	assert.Equal(t, []string{"coding", "programming"}, DefaultSpecialties(TypeCoder))
	assert.Equal(t, []string{"writing", "content"}, DefaultSpecialties(TypeWriter))
	assert.Equal(t, []string{"analysis", "data"}, DefaultSpecialties(TypeAnalyst))
	assert.Empty(t, DefaultSpecialties(TypeGeneral))
}

func TestReserveRelease(t *testing.T) {
	a := New(TypeGeneral, nil)
	now := time.Now().UTC()

	a.Reserve("task-1", now)
	assert.False(t, a.Idle())
	assert.Equal(t, "task-1", a.CurrentTask)

	a.Release(now.Add(time.Second))
	assert.True(t, a.Idle())
	assert.Empty(t, a.CurrentTask)
	assert.Equal(t, now.Add(time.Second), a.LastActive)
}

func TestCountersAndFailureRate(t *testing.T) {
	a := New(TypeGeneral, nil)
	assert.Zero(t, a.FailureRate())

	a.RecordSuccess(1500 * time.Millisecond)
	a.RecordFailure(500 * time.Millisecond)
	a.RecordFailure(time.Second)

	assert.Equal(t, 1, a.CompletedCount)
	assert.Equal(t, 2, a.FailedCount)
	assert.InDelta(t, 3.0, a.TotalRuntime, 1e-9)
	assert.InDelta(t, 2.0/3.0, a.FailureRate(), 1e-9)
}

func TestClone(t *testing.T) {
	a := New(TypeCoder, nil)
	c := a.Clone()
	c.Specialties[0] = "changed"
	c.Status = StatusBusy

	assert.Equal(t, "coding", a.Specialties[0])
	assert.Equal(t, StatusIdle, a.Status)
}
