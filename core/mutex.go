package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// =============================================================================
// Mutex: asynchronous mutual exclusion over one SharedBuffer
// =============================================================================

// Mutex guards exactly one SharedBuffer. Lock suspends the calling task on a
// channel (no busy-wait; the worker's goroutine parks) until the lock is
// free. Waiters are served strictly in arrival order: release hands the lock
// directly to the longest-waiting acquirer, so no acquirer starves under
// contention.
type Mutex[T any] struct {
	mu      sync.Mutex
	locked  bool
	holder  TaskID
	waiters *queue.Queue // of *mutexWaiter, FIFO
	shared  *SharedBuffer[T]
}

type mutexWaiter struct {
	ready     chan struct{}
	id        TaskID
	abandoned bool // set under Mutex.mu when the waiter's ctx is cancelled
}

// NewMutex creates a mutex guarding the given shared buffer.
func NewMutex[T any](shared *SharedBuffer[T]) *Mutex[T] {
	return &Mutex[T]{
		waiters: queue.New(),
		shared:  shared,
	}
}

// Lock acquires the mutex, suspending until it is free. The returned Guard
// must be released on every exit path; prefer WithLock unless the critical
// section spans suspension points.
//
// A task that already holds the mutex (task identity taken from ctx) gets a
// *ReentrancyError immediately instead of deadlocking on itself.
func (m *Mutex[T]) Lock(ctx context.Context) (*Guard[T], error) {
	id := CurrentTaskID(ctx)

	m.mu.Lock()
	if m.locked && id != "" && m.holder == id {
		m.mu.Unlock()
		return nil, &ReentrancyError{TaskID: id}
	}
	if !m.locked {
		m.locked = true
		m.holder = id
		m.mu.Unlock()
		return &Guard[T]{m: m}, nil
	}

	w := &mutexWaiter{ready: make(chan struct{}), id: id}
	m.waiters.Add(w)
	m.mu.Unlock()

	select {
	case <-w.ready:
		return &Guard[T]{m: m}, nil
	case <-ctx.Done():
		m.mu.Lock()
		select {
		case <-w.ready:
			// Handoff raced the cancellation: we own the lock, give it back.
			m.unlockLocked()
			m.mu.Unlock()
		default:
			w.abandoned = true
			m.mu.Unlock()
		}
		return nil, ctx.Err()
	}
}

// TryLock acquires the mutex only if it is free right now. Task identity is
// taken from ctx like Lock, so a later Lock by the same holder still fails
// with a *ReentrancyError instead of deadlocking.
func (m *Mutex[T]) TryLock(ctx context.Context) (*Guard[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return nil, false
	}
	m.locked = true
	m.holder = CurrentTaskID(ctx)
	return &Guard[T]{m: m}, true
}

// WithLock runs fn with exclusive access to the shared value. The lock is
// released on every exit path, including an error return and a panic in fn.
func (m *Mutex[T]) WithLock(ctx context.Context, fn func(value *T) error) error {
	guard, err := m.Lock(ctx)
	if err != nil {
		return err
	}
	defer guard.Unlock()
	return fn(guard.Value())
}

// unlockLocked releases the lock or hands it to the next live waiter.
// Callers hold m.mu.
func (m *Mutex[T]) unlockLocked() {
	for m.waiters.Length() > 0 {
		w := m.waiters.Remove().(*mutexWaiter)
		if w.abandoned {
			continue
		}
		m.holder = w.id
		close(w.ready)
		return
	}
	m.locked = false
	m.holder = ""
}

// Shared returns the guarded buffer. Reading its value without holding the
// lock is only safe through Snapshot.
func (m *Mutex[T]) Shared() *SharedBuffer[T] {
	return m.shared
}

// =============================================================================
// Guard: scoped exclusive access
// =============================================================================

// Guard represents held exclusive access to the mutex's shared buffer.
// Unlock is safe to call more than once; only the first call releases.
type Guard[T any] struct {
	m        *Mutex[T]
	released atomic.Bool
}

// Value returns the guarded value for mutation.
func (g *Guard[T]) Value() *T {
	return g.m.shared.Value()
}

// Shared returns the guarded buffer, for Touch and Encode during the
// critical section.
func (g *Guard[T]) Shared() *SharedBuffer[T] {
	return g.m.shared
}

// Unlock releases the mutex, waking the longest-waiting suspended acquirer.
func (g *Guard[T]) Unlock() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.m.mu.Lock()
	g.m.unlockLocked()
	g.m.mu.Unlock()
}
