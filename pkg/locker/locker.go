// Package locker provides keyed mutual exclusion used to serialize
// state changes per tenant. Memory works inside one process; Redis
// coordinates several instances sharing one store.
package locker

import (
	"context"
	"errors"
)

var (
	ErrLockTimeout = errors.New("locker: timed out waiting for lock")
	ErrEmptyKey    = errors.New("locker: empty key")
)

// Releaser releases a held lock. Calling it more than once is a no-op.
type Releaser func()

// Locker acquires exclusive locks by key. Lock blocks until the lock is
// held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Releaser, error)
}

// WithLock runs fn while holding the lock for key.
func WithLock(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	release, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
