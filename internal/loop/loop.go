// Package loop provides a single-goroutine event loop. Everything posted to a
// Loop runs sequentially on the goroutine executing Run, so state owned by
// callbacks needs no locking.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned when work is submitted after the loop finished.
var ErrStopped = errors.New("event loop stopped")

// DefaultBacklog is the number of callbacks that may be queued before Post blocks.
const DefaultBacklog = 64

// Loop runs posted functions in order.
type Loop struct {
	logger *slog.Logger
	queue  chan func()

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// New creates a Loop. Call Run to start processing.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger,
		queue:  make(chan func(), DefaultBacklog),
		done:   make(chan struct{}),
	}
}

// Post queues fn. It reports false when the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return false
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Poster returns Post without its result, for APIs that take a func(func()).
func (l *Loop) Poster() func(func()) {
	return func(fn func()) { l.Post(fn) }
}

// Invoke runs fn on the loop and waits for it to return. It must not be
// called from a loop callback.
func (l *Loop) Invoke(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes callbacks until ctx is done. Callbacks still queued at that
// point are discarded.
func (l *Loop) Run(ctx context.Context) {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop callback panicked", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) stop() {
	close(l.done)
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
