package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OrdersByPriority(t *testing.T) {
	q := NewQueue()
	low := New("x", PriorityLow, nil)
	high := New("x", PriorityHigh, nil)
	medium := New("x", PriorityMedium, nil)

	q.Push(low)
	q.Push(high)
	q.Push(medium)

	assert.Equal(t, []string{high.ID, medium.ID, low.ID}, q.IDs())
	assert.Equal(t, high, q.Peek())
}

func TestQueue_FIFOWithinTier(t *testing.T) {
	q := NewQueue()
	var want []string
	for i := 0; i < 5; i++ {
		tk := New("x", PriorityMedium, nil)
		want = append(want, tk.ID)
		q.Push(tk)
	}
	critical := New("x", PriorityCritical, nil)
	q.Push(critical)

	require.Equal(t, critical, q.Pop())
	for _, id := range want {
		assert.Equal(t, id, q.Pop().ID)
	}
	assert.Nil(t, q.Pop())
	assert.Nil(t, q.Peek())
}

func TestQueue_RemoveAndGet(t *testing.T) {
	q := NewQueue()
	a := New("x", PriorityLow, nil)
	b := New("x", PriorityLow, nil)
	q.Push(a)
	q.Push(b)

	assert.Equal(t, b, q.Get(b.ID))
	assert.Equal(t, a, q.Remove(a.ID))
	assert.Nil(t, q.Remove(a.ID))
	assert.Nil(t, q.Get(a.ID))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, []string{b.ID}, q.IDs())
}
