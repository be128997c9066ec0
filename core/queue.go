package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// =============================================================================
// RunnableQueue: FIFO queue of dispatched work
// =============================================================================

// RunnableQueue is the pool's internal FIFO task queue. Submission order is
// dispatch order; completion always drains the queue, so there is no
// starvation. It is touched by the control goroutine and by workers and does
// its own locking; it is never exposed to callers.
type RunnableQueue struct {
	mu    sync.Mutex
	items []Runnable
}

func NewRunnableQueue() *RunnableQueue {
	return &RunnableQueue{
		items: make([]Runnable, 0, defaultQueueCap),
	}
}

func (q *RunnableQueue) Push(r Runnable) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
}

func (q *RunnableQueue) Pop() (Runnable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = nil
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *RunnableQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]Runnable, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Runnable, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *RunnableQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *RunnableQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all queued work and releases references.
func (q *RunnableQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]Runnable, 0, defaultQueueCap)
}
