// Package dispatch provides the single serialized execution context that
// owns all observable state mutation.
package dispatch

import (
	"context"
	"errors"
	"sync"
)

// Executor runs posted functions one at a time, in posting order.
type Executor interface {
	Post(fn func())
}

var ErrStopped = errors.New("dispatch queue stopped")

// Queue is an unbounded FIFO drained by a single Run loop. Post never blocks.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post schedules fn. Posts after the queue has stopped are dropped.
func (q *Queue) Post(fn func()) {
	q.post(fn)
}

func (q *Queue) post(fn func()) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits for it to run. It must not be called from inside
// the queue itself.
func (q *Queue) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !q.post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-ran:
		return nil
	case <-q.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is cancelled. Functions still
// pending at that point are dropped. A queue can only be run once.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.stopped = true
			q.pending = nil
			q.mu.Unlock()
			close(q.done)
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Start runs the queue on its own goroutine and returns a stop function
// that waits for the loop to exit.
func (q *Queue) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
