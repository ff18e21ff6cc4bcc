package locker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/pkg/locker"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
)

func newRedisLocker(t *testing.T, opts ...locker.RedisOption) (*locker.Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	opts = append([]locker.RedisOption{
		locker.WithRetryInterval(5 * time.Millisecond),
		locker.WithLogger(logger.Discard()),
	}, opts...)
	return locker.NewRedis(client, opts...), srv
}

// exercise checks that concurrent holders of one key never overlap.
func exercise(t *testing.T, l locker.Locker) {
	t.Helper()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
		counter int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), l, "tenant:1", func(context.Context) error {
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				counter++
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	assert.Equal(t, 20, counter)
}

func TestMemory(t *testing.T) {
	t.Parallel()

	t.Run("serializes holders", func(t *testing.T) {
		t.Parallel()
		m := locker.NewMemory()
		exercise(t, m)
		assert.Zero(t, m.Size(), "idle keys are dropped")
	})

	t.Run("different keys do not block", func(t *testing.T) {
		t.Parallel()
		m := locker.NewMemory()
		release, err := m.Lock(context.Background(), "a")
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		other, err := m.Lock(ctx, "b")
		require.NoError(t, err)
		other()
	})

	t.Run("waiter gives up on context", func(t *testing.T) {
		t.Parallel()
		m := locker.NewMemory()
		release, err := m.Lock(context.Background(), "a")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = m.Lock(ctx, "a")
		assert.ErrorIs(t, err, locker.ErrLockTimeout)

		release()
		release()
		assert.Zero(t, m.Size())
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()
		_, err := locker.NewMemory().Lock(context.Background(), "")
		assert.ErrorIs(t, err, locker.ErrEmptyKey)
	})
}

func TestRedis(t *testing.T) {
	t.Parallel()

	t.Run("serializes holders", func(t *testing.T) {
		t.Parallel()
		l, _ := newRedisLocker(t)
		exercise(t, l)
	})

	t.Run("release deletes key", func(t *testing.T) {
		t.Parallel()
		l, srv := newRedisLocker(t, locker.WithPrefix("test:"))
		release, err := l.Lock(context.Background(), "tenant:2")
		require.NoError(t, err)
		assert.True(t, srv.Exists("test:tenant:2"))

		release()
		assert.False(t, srv.Exists("test:tenant:2"))
	})

	t.Run("release keeps a lock taken over by someone else", func(t *testing.T) {
		t.Parallel()
		l, srv := newRedisLocker(t)
		release, err := l.Lock(context.Background(), "k")
		require.NoError(t, err)

		require.NoError(t, srv.Set("lock:k", "foreign"))
		release()
		got, err := srv.Get("lock:k")
		require.NoError(t, err)
		assert.Equal(t, "foreign", got)
	})

	t.Run("lease expires", func(t *testing.T) {
		t.Parallel()
		l, srv := newRedisLocker(t, locker.WithTTL(time.Second))
		_, err := l.Lock(context.Background(), "k")
		require.NoError(t, err)

		srv.FastForward(2 * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		release, err := l.Lock(ctx, "k")
		require.NoError(t, err)
		release()
	})

	t.Run("waiter gives up on context", func(t *testing.T) {
		t.Parallel()
		l, _ := newRedisLocker(t)
		release, err := l.Lock(context.Background(), "k")
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.Lock(ctx, "k")
		assert.ErrorIs(t, err, locker.ErrLockTimeout)
	})
}
