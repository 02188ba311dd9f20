// Package storage is the persistence port: a small key-value store with TTL
// and sorted index sets, plus the task/agent mirror built on top of it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("key not found")

// Store is a durable key-value store with expiring keys and sorted sets.
// Implementations must be safe for concurrent use.
type Store interface {
	// Set writes value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns ErrNotFound when key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error

	ZAdd(ctx context.Context, set, member string, score float64) error
	ZRem(ctx context.Context, set string, members ...string) error
	// ZRange returns all members of set ordered by ascending score.
	ZRange(ctx context.Context, set string) ([]string, error)

	// Keys returns live keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by stores that keep expired rows until told to drop them.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Open connects to the store described by url:
//
//	memory://
//	sqlite:///var/lib/agentpool/state.db
//	redis://localhost:6379/0  (or rediss://)
//
// An empty url or "none" disables persistence and returns a nil Store.
func Open(ctx context.Context, url string) (Store, error) {
	url = strings.TrimSpace(url)
	if url == "" || url == "none" {
		return nil, nil
	}

	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return nil, fmt.Errorf("invalid storage url %q: missing scheme", url)
	}

	var (
		st  Store
		err error
	)
	switch strings.ToLower(scheme) {
	case "memory", "mem":
		st = NewMemoryStore()
	case "sqlite", "sqlite3", "file":
		st, err = OpenSQLite(ctx, rest)
	case "redis", "rediss":
		st, err = OpenRedis(url)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q (expected: memory, sqlite, redis)", scheme)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("storage ping failed: %w", err)
	}
	return st, nil
}

// Describe returns url with any password replaced, for logging.
func Describe(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return url
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":***@" + host
	}
	return url
}
