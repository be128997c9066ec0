package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// delayedRunnable is work scheduled for the future.
type delayedRunnable struct {
	runAt time.Time
	run   Runnable
	index int // for heap interface
}

// delayedHeap implements heap.Interface ordered by runAt.
type delayedHeap []*delayedRunnable

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedRunnable)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *delayedHeap) Peek() *delayedRunnable {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager holds future work in a time-ordered heap and posts it to the
// scheduler when due. Backs SpawnAfter.
type DelayManager struct {
	pq        delayedHeap
	mu        sync.Mutex
	wakeup    chan struct{}
	scheduler *Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewDelayManager(scheduler *Scheduler) *DelayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:        make(delayedHeap, 0),
		wakeup:    make(chan struct{}, 1),
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

func (dm *DelayManager) Add(run Runnable, delay time.Duration) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := &delayedRunnable{
		runAt: time.Now().Add(delay),
		run:   run,
	}
	heap.Push(&dm.pq, item)

	if item.index == 0 {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *DelayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		nextRun, pending := dm.calculateNextRun()
		if pending && nextRun <= 0 {
			// Head of the heap is already due.
			dm.processExpired()
			continue
		}
		if !pending {
			// No tasks, wait indefinitely
			nextRun = 1000 * time.Hour
		}

		timer.Reset(nextRun)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// Timer fired, process all expired work in one go
			dm.processExpired()
		case <-dm.wakeup:
			// New work added, need to recalculate
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// calculateNextRun determines how long to wait until the next due item.
// The second return is false when the heap is empty.
func (dm *DelayManager) calculateNextRun() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		return 0, false
	}
	return time.Until(item.runAt), true
}

// processExpired posts all due work to the scheduler.
func (dm *DelayManager) processExpired() {
	dm.mu.Lock()

	now := time.Now()
	// Collect due items first to avoid holding the lock while posting
	var expired []*delayedRunnable

	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.runAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		expired = append(expired, item)
	}

	dm.mu.Unlock()

	for _, item := range expired {
		// A post rejected during shutdown is dropped; the scheduler already
		// recorded the rejection.
		_ = dm.scheduler.Post(item.run)
	}
}

func (dm *DelayManager) Stop() {
	dm.cancel()

	// Clear the heap to release all runnable references
	dm.mu.Lock()
	dm.pq = make(delayedHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()
}

func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
