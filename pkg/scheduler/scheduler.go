// Package scheduler runs in-process periodic jobs such as the billing
// sweepers. A job never overlaps with itself; a failing run is logged and
// retried on the next tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/qrmenu/pkg/logger"
)

// TaskFunc is one run of a periodic job.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	schedule Schedule
	fn       TaskFunc
	timeout  time.Duration
	nextRun  time.Time
	running  bool
}

// Scheduler checks registered tasks every tick and starts the due ones.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[string]*task
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCheckInterval sets how often due tasks are looked up.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// TaskOption configures a single task.
type TaskOption func(*task)

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) TaskOption {
	return func(t *task) { t.timeout = d }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:    make(map[string]*task),
		interval: time.Second,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTask registers fn under name. The first run happens on the first
// check after Start.
func (s *Scheduler) AddTask(name string, schedule Schedule, fn TaskFunc, opts ...TaskOption) error {
	t := &task{name: name, schedule: schedule, fn: fn}
	for _, opt := range opts {
		opt(t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}
	s.tasks[name] = t

	s.log.Info("registered periodic task",
		logger.Job(name),
		slog.String("schedule", schedule.String()),
	)
	return nil
}

// Start blocks until ctx is done, then waits for running tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.tasks)
	s.mu.Unlock()
	if n == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// RunNow runs the named task synchronously, unless it is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.running {
		s.mu.Unlock()
		return nil
	}
	t.running = true
	s.mu.Unlock()

	return s.execute(ctx, t)
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if t.running || (!t.nextRun.IsZero() && now.Before(t.nextRun)) {
			continue
		}
		t.running = true
		t.nextRun = t.schedule.Next(now)
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		s.wg.Add(1)
		go func(t *task) {
			defer s.wg.Done()
			_ = s.execute(ctx, t)
		}(t)
	}
}

// execute runs t and clears its running flag. t.running must be set.
func (s *Scheduler) execute(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "periodic task failed", logger.Job(t.name), logger.Error(err))
		}
		s.mu.Lock()
		t.running = false
		s.mu.Unlock()
	}()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	started := time.Now()
	err = t.fn(ctx)
	if err == nil {
		s.log.DebugContext(ctx, "periodic task finished", logger.Job(t.name), logger.Duration(time.Since(started)))
	}
	return err
}
