package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2026, 4, 1, 10, 15, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC), s.nextTick(now))
	assert.Equal(t, time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC), s.nextTick(now.Truncate(time.Hour).Add(time.Hour-time.Nanosecond)))
	assert.Equal(t, time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC), s.nextTick(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), s.bucketStart(now))
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	now := time.Date(2026, 4, 1, 10, 15, 0, 0, time.UTC)

	assert.Equal(t, now.Add(time.Hour), s.nextTick(now))
	assert.Equal(t, now, s.bucketStart(now))
}

func TestNewRejectsZeroInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}

func TestRunTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		ticks []time.Time
	)
	s := New(Options{Interval: 10 * time.Millisecond, RunOnStart: true}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, at time.Time) error {
			mu.Lock()
			defer mu.Unlock()
			ticks = append(ticks, at)
			if len(ticks) == 3 {
				cancel()
			}
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ticks, 3)
	assert.True(t, ticks[1].After(ticks[0]))
}

func TestRunHonoursStartupCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	err := s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick should not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
