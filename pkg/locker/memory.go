package locker

import (
	"context"
	"errors"
	"sync"
)

type memoryLock struct {
	ch   chan struct{}
	refs int
}

// Memory is an in-process keyed mutex. Entries are removed once no
// goroutine holds or waits for them.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*memoryLock)}
}

func (m *Memory) Lock(ctx context.Context, key string) (Releaser, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, l)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.unref(key, l)
		})
	}, nil
}

func (m *Memory) unref(key string, l *memoryLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// size reports the number of tracked keys; used by tests.
func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
