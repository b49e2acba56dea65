// Package mainloop provides serialized execution contexts.
//
// A Loop runs posted closures one at a time, in order, on a single goroutine.
// State owned by a loop is only touched from closures running on it, so it
// needs no further locking.
package mainloop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop is a serialized executor backed by an unbounded FIFO.
type Loop struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []func()
	started bool
	stopped bool

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// New creates a loop. It does not run tasks until Start is called.
func New(name string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		name:   name,
		logger: logger.With("loop", name),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Start begins draining tasks. The loop stops when ctx is cancelled or Stop
// is called.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.run(ctx)
}

// Stop stops the loop and waits for the running task to finish. Tasks still
// queued are discarded. Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	started := l.started
	l.tasks = nil
	l.mu.Unlock()

	l.stopOnce.Do(func() { close(l.stopCh) })
	if started {
		<-l.doneCh
	}
}

// Post enqueues fn. It returns false if the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync runs fn on the loop and waits for it to return. It returns false if
// the loop stopped before fn ran. Sync must not be called from the loop
// itself.
func (l *Loop) Sync(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(done)
	}) {
		return false
	}

	select {
	case <-done:
		return true
	case <-l.stopCh:
		// The task may have completed just before the stop.
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// AfterFunc posts fn onto the loop once d has elapsed. A zero or negative d
// still goes through the timer, so fn never runs inline.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.begin() {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	l.logger.Debug("loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped", "reason", ctx.Err())
			l.mu.Lock()
			l.stopped = true
			l.tasks = nil
			l.mu.Unlock()
			l.stopOnce.Do(func() { close(l.stopCh) })
			return
		case <-l.stopCh:
			l.logger.Debug("loop stopped")
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if l.stopped || len(l.tasks) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.tasks[0]
			l.tasks[0] = nil
			l.tasks = l.tasks[1:]
			l.mu.Unlock()

			l.runTask(fn)
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", r)
		}
	}()
	fn()
}

// Timer is a cancellable delayed task created by Loop.AfterFunc.
type Timer struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
	fired     bool
}

func (t *Timer) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.fired = true
	return true
}

// Cancel prevents the task from running, even if the timer already expired
// and the task is queued on the loop. It reports whether the task was still
// pending; when it returns true the task never runs.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	t.timer.Stop()
	return !t.fired
}

// Fired reports whether the task has started.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
