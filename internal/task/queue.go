package task

import (
	"cmp"
	"slices"
)

// Queue keeps pending tasks ordered by descending priority. Tasks of equal
// priority keep insertion order. Queue is not safe for concurrent use; the
// scheduler guards it with its own mutex.
type Queue struct {
	items []*Task
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends t and re-sorts with a stable sort.
func (q *Queue) Push(t *Task) {
	q.items = append(q.items, t)
	slices.SortStableFunc(q.items, func(a, b *Task) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
}

// Peek returns the head task without removing it.
func (q *Queue) Peek() *Task {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head task.
func (q *Queue) Pop() *Task {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

// Remove deletes the task with id and returns it, or nil when absent.
func (q *Queue) Remove(id string) *Task {
	for i, t := range q.items {
		if t.ID == id {
			q.items = slices.Delete(q.items, i, i+1)
			return t
		}
	}
	return nil
}

// Get returns the queued task with id, or nil.
func (q *Queue) Get(id string) *Task {
	for _, t := range q.items {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.items)
}

// IDs returns queued ids in dispatch order.
func (q *Queue) IDs() []string {
	ids := make([]string, len(q.items))
	for i, t := range q.items {
		ids[i] = t.ID
	}
	return ids
}
