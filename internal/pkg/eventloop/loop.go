// Package eventloop runs tasks one at a time on a dedicated goroutine.
//
// Viewer components that share a Loop never run concurrently with each other,
// so state they own is only touched from the loop goroutine. Other goroutines
// (engine load signals, network callbacks, HTTP handlers) hand work over with
// Post.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when waiting on a loop that has shut down.
var ErrClosed = errors.New("eventloop: closed")

// Loop is a single-threaded cooperative task queue.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// New starts a loop.
func New() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn. It returns false if the loop is closed; fn is then dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
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

// Flush waits until every task posted before the call has run.
// It must not be called from the loop goroutine.
func (l *Loop) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	if !l.Post(func() { close(ch) }) {
		select {
		case <-l.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks. Tasks already queued still run.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		closed := l.closed
		l.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-l.wake
			continue
		}
		for _, fn := range batch {
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("eventloop task panicked", "panic", r)
		}
	}()
	fn()
}
