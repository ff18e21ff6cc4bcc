package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/scheduler"
)

func TestScheduler(t *testing.T) {
	t.Parallel()

	t.Run("runs due tasks and survives failures", func(t *testing.T) {
		t.Parallel()
		s := scheduler.New(
			scheduler.WithCheckInterval(5*time.Millisecond),
			scheduler.WithLogger(logger.Discard()),
		)

		var ok, failing atomic.Int32
		require.NoError(t, s.AddTask("ok", scheduler.Every(5*time.Millisecond), func(context.Context) error {
			ok.Add(1)
			return nil
		}))
		require.NoError(t, s.AddTask("failing", scheduler.Every(5*time.Millisecond), func(context.Context) error {
			failing.Add(1)
			if failing.Load() == 1 {
				panic("boom")
			}
			return errors.New("still broken")
		}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Start(ctx) }()

		assert.Eventually(t, func() bool { return ok.Load() >= 3 && failing.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		t.Parallel()
		s := scheduler.New(scheduler.WithLogger(logger.Discard()))
		noop := func(context.Context) error { return nil }
		require.NoError(t, s.AddTask("sweep", scheduler.Every(time.Minute), noop))
		assert.ErrorIs(t, s.AddTask("sweep", scheduler.Every(time.Minute), noop), scheduler.ErrTaskAlreadyRegistered)
	})

	t.Run("start without tasks", func(t *testing.T) {
		t.Parallel()
		s := scheduler.New(scheduler.WithLogger(logger.Discard()))
		assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrSchedulerNotConfigured)
	})

	t.Run("run now", func(t *testing.T) {
		t.Parallel()
		s := scheduler.New(scheduler.WithLogger(logger.Discard()))
		var calls atomic.Int32
		require.NoError(t, s.AddTask("sweep", scheduler.Every(time.Hour), func(context.Context) error {
			calls.Add(1)
			return nil
		}, scheduler.WithTimeout(time.Second)))

		require.NoError(t, s.RunNow(context.Background(), "sweep"))
		assert.Equal(t, int32(1), calls.Load())
		assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), scheduler.ErrTaskNotFound)
	})
}
