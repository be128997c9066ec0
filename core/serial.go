package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// SerialQueue: strictly ordered execution on top of a pool
// =============================================================================

// SerialQueue runs submitted runnables one at a time, in submission order, on
// the workers of an underlying dispatcher. Between consecutive runnables it
// yields back to the scheduler so a busy serial queue cannot monopolize a
// worker.
type SerialQueue struct {
	dispatcher Dispatcher
	queue      *RunnableQueue
	mu         sync.Mutex
	isRunning  bool
	activeRuns int32       // atomic guard for the single-flight assertion
	closed     atomic.Bool
}

// NewSerialQueue creates a serial queue executing on the given dispatcher.
func NewSerialQueue(d Dispatcher) *SerialQueue {
	return &SerialQueue{
		dispatcher: d,
		queue:      NewRunnableQueue(),
	}
}

// Post enqueues a runnable for ordered execution.
func (q *SerialQueue) Post(r Runnable) error {
	if q.closed.Load() {
		return ErrPoolShutdown
	}
	q.mu.Lock()
	q.queue.Push(r)
	q.mu.Unlock()
	return q.scheduleRunLoop()
}

// PostDelayed enqueues a runnable for ordered execution after delay. Ordering
// is relative to other runnables present when the delay fires.
func (q *SerialQueue) PostDelayed(r Runnable, delay time.Duration) error {
	if q.closed.Load() {
		return ErrPoolShutdown
	}
	return q.dispatcher.PostDelayedInternal(func(ctx context.Context) {
		// Delivery goes through Post so the runnable joins the FIFO.
		_ = q.Post(r)
	}, delay)
}

func (q *SerialQueue) runLoop(ctx context.Context) {
	if n := atomic.AddInt32(&q.activeRuns, 1); n > 1 {
		panic(fmt.Sprintf("SerialQueue: concurrent runLoop detected (count=%d)", n))
	}
	defer atomic.AddInt32(&q.activeRuns, -1)

	q.mu.Lock()
	r, ok := q.queue.Pop()
	if !ok {
		q.isRunning = false
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	func() {
		defer func() { recover() }()
		r(ctx)
	}()

	// Yield: repost instead of looping so other work interleaves.
	q.mu.Lock()
	more := !q.queue.IsEmpty()
	if !more {
		q.isRunning = false
	}
	q.mu.Unlock()

	if more {
		if err := q.dispatcher.PostInternal(q.runLoop); err != nil {
			q.mu.Lock()
			q.isRunning = false
			q.mu.Unlock()
		}
	}
}

func (q *SerialQueue) scheduleRunLoop() error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = true
	q.mu.Unlock()

	if err := q.dispatcher.PostInternal(q.runLoop); err != nil {
		q.mu.Lock()
		q.isRunning = false
		q.mu.Unlock()
		return err
	}
	return nil
}

// Len returns the number of runnables waiting in the queue.
func (q *SerialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}

// Shutdown marks the queue closed and drops pending runnables. The runnable
// currently executing, if any, is not interrupted. Repeating tasks stop on
// their next tick.
func (q *SerialQueue) Shutdown() {
	q.closed.Store(true)

	q.mu.Lock()
	q.queue.Clear()
	q.isRunning = false
	q.mu.Unlock()
}

// IsClosed returns true if the queue has been shut down.
func (q *SerialQueue) IsClosed() bool {
	return q.closed.Load()
}

// =============================================================================
// Repeating tasks
// =============================================================================

// RepeatingHandle controls a repeating task posted to a SerialQueue.
type RepeatingHandle struct {
	stopped atomic.Bool
}

// Stop prevents further executions. The current execution, if any, finishes.
func (h *RepeatingHandle) Stop() {
	h.stopped.Store(true)
}

// IsStopped reports whether Stop has been called.
func (h *RepeatingHandle) IsStopped() bool {
	return h.stopped.Load()
}

// PostRepeating schedules r to run on this queue every interval until the
// returned handle is stopped or the queue is shut down.
func (q *SerialQueue) PostRepeating(r Runnable, interval time.Duration) *RepeatingHandle {
	return q.PostRepeatingWithInitialDelay(r, 0, interval)
}

// PostRepeatingWithInitialDelay schedules r to first run after initialDelay,
// then every interval.
func (q *SerialQueue) PostRepeatingWithInitialDelay(r Runnable, initialDelay, interval time.Duration) *RepeatingHandle {
	handle := &RepeatingHandle{}

	var tick Runnable
	tick = func(ctx context.Context) {
		if q.IsClosed() || handle.IsStopped() {
			return
		}

		r(ctx)

		if !handle.IsStopped() && !q.IsClosed() {
			_ = q.PostDelayed(tick, interval)
		}
	}

	if initialDelay > 0 {
		_ = q.PostDelayed(tick, initialDelay)
	} else {
		_ = q.Post(tick)
	}

	return handle
}
