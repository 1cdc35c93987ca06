// Package worker provides the serial task queue that owns the recording resource.
package worker

import (
	"log/slog"
	"sync"

	"github.com/gammazero/workerpool"
)

// Queue runs submitted tasks one at a time, in submission order, on a
// single-worker pool. The backlog is unbounded.
type Queue struct {
	pool *workerpool.WorkerPool

	mu     sync.Mutex
	closed bool
	queued int // submitted tasks that have not started

	onExit func()
	done   chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithExitHook runs fn once after ShutdownNow, when the in-flight task (if
// any) has finished. No task runs concurrently with or after fn.
func WithExitHook(fn func()) Option {
	return func(q *Queue) {
		q.onExit = fn
	}
}

// New creates a Queue and starts its worker.
func New(opts ...Option) *Queue {
	q := &Queue{
		pool: workerpool.New(1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit enqueues a task. It returns false if the queue has been shut down,
// in which case the task is dropped.
func (q *Queue) Submit(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		slog.Warn("task rejected, queue is shut down")
		return false
	}
	q.queued++
	// Held across Submit so ShutdownNow cannot stop the pool in between.
	q.pool.Submit(func() {
		if !q.start() {
			return
		}
		task()
	})
	return true
}

// start marks a task as running. Tasks reached after ShutdownNow are skipped.
func (q *Queue) start() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.queued--
	return true
}

// ShutdownNow stops accepting tasks and discards all tasks that have not
// started yet. A task that is already running finishes, then the exit hook
// runs. It does not wait for either; use Wait. It returns the number of
// discarded tasks and is safe to call more than once.
func (q *Queue) ShutdownNow() int {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	q.closed = true
	dropped := q.queued
	q.queued = 0
	q.mu.Unlock()

	if dropped > 0 {
		slog.Info("discarded queued tasks", "count", dropped)
	}

	go func() {
		defer close(q.done)
		// Stop abandons waiting tasks and returns once the running one is done.
		q.pool.Stop()
		if q.onExit != nil {
			q.onExit()
		}
	}()
	return dropped
}

// Wait blocks until the in-flight task and the exit hook have finished
// after ShutdownNow.
func (q *Queue) Wait() {
	<-q.done
}
