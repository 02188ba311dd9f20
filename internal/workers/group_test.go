package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_RunsAndWaits(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, g.Go("job", func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			count.Add(1)
		}))
	}

	require.NoError(t, g.Wait(context.Background()))
	assert.Equal(t, int32(10), count.Load())

	m := g.Metrics()
	assert.Equal(t, uint64(10), m.Started)
	assert.Equal(t, uint64(10), m.Finished)
	assert.Zero(t, m.InFlight)
}

func TestGroup_RecoversPanic(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	g.Go("boom", func(ctx context.Context) { panic("boom") })
	ran := make(chan struct{})
	g.Go("after", func(ctx context.Context) { close(ran) })

	require.NoError(t, g.Wait(context.Background()))
	<-ran
	assert.Equal(t, uint64(1), g.Metrics().Panics)
	assert.Zero(t, g.InFlight())
}

func TestGroup_StopCancelsContext(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	started := make(chan struct{})
	g.Go("loop", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	assert.Equal(t, 1, g.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Stop(ctx))

	assert.False(t, g.Go("late", func(ctx context.Context) {}))
	assert.Error(t, g.Context().Err())
}

func TestGroup_WaitBoundedByContext(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	release := make(chan struct{})
	g.Go("stuck", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, g.Wait(context.Background()))
}

func TestGroup_CloseKeepsRunningGoroutines(t *testing.T) {
	g := NewGroup(context.Background(), nil)

	release := make(chan struct{})
	g.Go("running", func(ctx context.Context) { <-release })
	g.Close()

	assert.False(t, g.Go("rejected", func(ctx context.Context) {}))
	assert.NoError(t, g.Context().Err())

	close(release)
	require.NoError(t, g.Wait(context.Background()))
}
