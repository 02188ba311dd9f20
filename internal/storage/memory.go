package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store. Expired keys are dropped lazily on
// access or by PurgeExpired.
type MemoryStore struct {
	mu    sync.RWMutex
	kv    map[string]memEntry
	zsets map[string]map[string]float64
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string]memEntry),
		zsets: make(map[string]map[string]float64),
		now:   time.Now,
	}
}

// SetClock replaces the time source used for expiry. Intended for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.kv[key] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(e) {
		delete(m.kv, key)
		return nil, ErrNotFound
	}
	return slices.Clone(e.value), nil
}

func (m *MemoryStore) expired(e memEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

func (m *MemoryStore) ZAdd(_ context.Context, set, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zsets[set]
	if !ok {
		z = make(map[string]float64)
		m.zsets[set] = z
	}
	z[member] = score
	return nil
}

func (m *MemoryStore) ZRem(_ context.Context, set string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	z, ok := m.zsets[set]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(z, member)
	}
	if len(z) == 0 {
		delete(m.zsets, set)
	}
	return nil
}

// ZRange orders by score, then member, matching Redis.
func (m *MemoryStore) ZRange(_ context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	z := m.zsets[set]
	members := make([]string, 0, len(z))
	for member := range z {
		members = append(members, member)
	}
	slices.SortFunc(members, func(a, b string) int {
		if z[a] != z[b] {
			if z[a] < z[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return members, nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, e := range m.kv {
		if strings.HasPrefix(k, prefix) && !m.expired(e) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// PurgeExpired drops every expired key and returns how many were removed.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.kv {
		if m.expired(e) {
			delete(m.kv, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
