package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/agentpool/internal/logger"
	"github.com/aatumaykin/agentpool/internal/storage"
)

const purgeTimeout = time.Minute

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks a janitor cron expression ("@every 1m", "0 */5 * * * *", ...).
func ValidateSchedule(expr string) error {
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, err, pairs(keysAndValues)...)
}

func pairs(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}

// newJanitor schedules archiving of old terminal tasks and purging of
// expired records.
func (m *Manager) newJanitor() (*cron.Cron, error) {
	cl := cronLogger{log: m.log.Component("janitor")}
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(m.cfg.ArchiveSchedule, func() { m.archive() }); err != nil {
		return nil, fmt.Errorf("archive schedule %q: %w", m.cfg.ArchiveSchedule, err)
	}
	if _, err := c.AddFunc(m.cfg.PurgeSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		_, _ = m.purge(ctx)
	}); err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", m.cfg.PurgeSchedule, err)
	}
	return c, nil
}

// archive drops terminal tasks completed more than CompletedRetention ago
// from memory. Their records stay queryable from storage until they expire.
func (m *Manager) archive() int {
	m.mu.Lock()
	cutoff := m.now().Add(-m.cfg.CompletedRetention)
	n := 0
	for id, t := range m.completed {
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(m.completed, id)
			n++
		}
	}
	m.mu.Unlock()

	if n > 0 {
		m.log.Info("completed tasks archived",
			logger.Field{Key: "count", Value: n},
			logger.Field{Key: "retention", Value: m.cfg.CompletedRetention.String()})
	}
	return n
}

// purge removes expired records from stores that keep them and drops index
// entries that point at expired tasks.
func (m *Manager) purge(ctx context.Context) (int, error) {
	if m.mirror == nil {
		return 0, nil
	}

	purged := 0
	if p, ok := m.mirror.Store().(storage.Purger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			m.log.Error("failed to purge expired records", err)
			return 0, err
		}
		purged = n
	}

	pruned, err := m.mirror.PruneIndexes(ctx)
	if err != nil {
		m.log.Error("failed to prune task indexes", err)
		return purged, err
	}

	if purged+pruned > 0 {
		m.log.Info("expired records purged",
			logger.Field{Key: "records", Value: purged},
			logger.Field{Key: "index_entries", Value: pruned})
	}
	return purged + pruned, nil
}
