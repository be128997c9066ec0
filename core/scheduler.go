package core

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// =============================================================================
// Scheduler: FIFO work source for pool workers
// =============================================================================

// Scheduler owns the pool's internal task queue and the delayed-submission
// heap. Workers pull from it via GetWork; the submitting side pushes via
// Post. Busy/queued counters feed the observability layer.
type Scheduler struct {
	queue       *RunnableQueue
	signal      chan struct{}
	workerCount int

	delayManager *DelayManager

	metricQueued int32 // Waiting in the ready queue
	metricBusy   int32 // Executing on a worker

	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	shuttingDown int32 // atomic flag
}

// NewScheduler creates a FIFO scheduler for workerCount workers with default
// handlers.
func NewScheduler(workerCount int) *Scheduler {
	return NewSchedulerWithConfig(workerCount, DefaultSchedulerConfig())
}

// NewSchedulerWithConfig creates a FIFO scheduler with the given handlers;
// nil entries fall back to defaults.
func NewSchedulerWithConfig(workerCount int, config *SchedulerConfig) *Scheduler {
	s := &Scheduler{
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
		queue:       NewRunnableQueue(),
	}
	s.delayManager = NewDelayManager(s)

	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}

	return s
}

// Post enqueues work for the next idle worker. After shutdown it rejects with
// ErrPoolShutdown so the caller sees a structured failure instead of a
// silently dropped task.
func (s *Scheduler) Post(r Runnable) error {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.rejectedTaskHandler.HandleRejectedTask("scheduler", "shutting down")
		s.metrics.RecordTaskRejected("scheduler", "shutting down")
		return ErrPoolShutdown
	}

	s.queue.Push(r)
	atomic.AddInt32(&s.metricQueued, 1)
	s.metrics.RecordQueueDepth("scheduler", s.queue.Len())

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full; the work is already queued, the hint is
		// best-effort.
	}
	return nil
}

// PostDelayed schedules work to be enqueued after delay.
func (s *Scheduler) PostDelayed(r Runnable, delay time.Duration) error {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		return ErrPoolShutdown
	}
	s.delayManager.Add(r, delay)
	return nil
}

// GetWork blocks until work is available or stopCh closes. Called by workers.
func (s *Scheduler) GetWork(stopCh <-chan struct{}) (Runnable, bool) {
	for {
		if item, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return item, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// Shutdown stops accepting work and drops everything still queued.
func (s *Scheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()
	// Clear the queue to release all runnable references
	s.queue.Clear()
	atomic.StoreInt32(&s.metricQueued, 0)
}

// ShutdownGraceful waits for queued and busy work to finish, up to timeout.
func (s *Scheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			s.queue.Clear()
			atomic.StoreInt32(&s.metricQueued, 0)
			return errors.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.BusyWorkers() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *Scheduler) WorkerCount() int     { return s.workerCount }
func (s *Scheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *Scheduler) BusyWorkers() int     { return int(atomic.LoadInt32(&s.metricBusy)) }
func (s *Scheduler) DelayedTaskCount() int {
	return s.delayManager.TaskCount()
}

func (s *Scheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricBusy, 1)
}

func (s *Scheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricBusy, -1)
}

// GetPanicHandler returns the panic handler for this scheduler.
func (s *Scheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler.
func (s *Scheduler) GetMetrics() Metrics {
	return s.metrics
}
