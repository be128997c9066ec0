package taskcore

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/taskcore/go-taskcore/core"
)

// WorkerPool manages a fixed set of long-lived worker goroutines.
// Workers pull runnables from the internal scheduler and execute them;
// a failure inside a task never terminates the worker or the pool.
type WorkerPool struct {
	id        string
	workers   int
	scheduler *core.Scheduler
	registry  *core.TaskRegistry
	history   *core.ExecutionHistory
	logger    core.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.Dispatcher = (*WorkerPool)(nil)

// NewWorkerPool creates a pool with the given worker count.
// workers <= 0 defaults to the CPU core count.
func NewWorkerPool(id string, workers int) *WorkerPool {
	return NewWorkerPoolWithConfig(id, workers, core.DefaultSchedulerConfig(), nil)
}

// NewWorkerPoolWithConfig creates a pool with explicit scheduler handlers and
// logger. A nil logger defaults to zerolog on stderr.
func NewWorkerPoolWithConfig(id string, workers int, config *core.SchedulerConfig, logger core.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = core.NewZerologLogger(nil)
	}
	return &WorkerPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewSchedulerWithConfig(workers, config),
		registry:  core.NewTaskRegistry(),
		history:   core.NewExecutionHistory(0),
		logger:    logger,
	}
}

// Start starts all worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return // Already running
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i, p.ctx)
	}
	p.logger.Info("worker pool started", core.F("pool", p.id), core.F("workers", p.workers))
}

// Stop stops the pool immediately, dropping queued work.
func (p *WorkerPool) Stop() {
	// Always shutdown the scheduler to clean up resources (queue, delayed
	// work) even if the pool was never started
	p.scheduler.Shutdown()

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		p.abortUnfinished()
		return
	}
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()
	p.abortUnfinished()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()
	p.logger.Info("worker pool stopped", core.F("pool", p.id))
}

// abortUnfinished resolves the handle of every task whose runnable was
// dropped at shutdown. Called only after the workers have drained.
func (p *WorkerPool) abortUnfinished() {
	if aborted := p.registry.FailUnfinished(core.ErrPoolShutdown); aborted > 0 {
		p.logger.Warn("tasks aborted at shutdown", core.F("pool", p.id), core.F("count", aborted))
	}
}

// StopGraceful stops the pool, waiting for queued and busy tasks to complete.
// Returns an error if timeout is exceeded before the work drains.
func (p *WorkerPool) StopGraceful(timeout time.Duration) error {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return nil
	}
	p.runningMu.Unlock()

	// Gracefully shutdown the scheduler first (waits for queues to drain)
	if err := p.scheduler.ShutdownGraceful(timeout); err != nil {
		// Timeout occurred, but we still need to cancel workers
		if p.cancel != nil {
			p.cancel()
		}
		p.Join()
		p.abortUnfinished()

		p.runningMu.Lock()
		p.running = false
		p.runningMu.Unlock()

		p.logger.Warn("worker pool graceful stop timed out", core.F("pool", p.id))
		return err
	}

	if p.cancel != nil {
		p.cancel()
	}
	p.Join()
	p.abortUnfinished()

	p.runningMu.Lock()
	p.running = false
	p.runningMu.Unlock()
	p.logger.Info("worker pool stopped", core.F("pool", p.id))

	return nil
}

// ID returns the ID of the pool.
func (p *WorkerPool) ID() string {
	return p.id
}

// IsRunning returns whether the pool is running.
func (p *WorkerPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// workerLoop is the main loop for each worker.
func (p *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()
	workerCtx := core.WithWorkerID(ctx, id)
	stopCh := ctx.Done()

	for {
		run, ok := p.scheduler.GetWork(stopCh)
		if !ok {
			// Scheduler closed or context canceled
			return
		}

		p.scheduler.OnTaskStart()

		// Submitted closures carry their own recovery; this is the last line
		// of defense so a stray runnable can never kill the worker.
		func() {
			defer func() {
				p.scheduler.OnTaskEnd()
				if r := recover(); r != nil {
					p.scheduler.GetPanicHandler().HandlePanic(workerCtx, p.id, id, r, debug.Stack())
					p.scheduler.GetMetrics().RecordTaskPanic(p.id, r)
				}
			}()
			run(workerCtx)
		}()
	}
}

// Join waits for all worker goroutines to finish.
func (p *WorkerPool) Join() {
	p.wg.Wait()
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// BusyWorkers returns the number of workers currently executing a task.
func (p *WorkerPool) BusyWorkers() int {
	return p.scheduler.BusyWorkers()
}

func (p *WorkerPool) QueuedTaskCount() int {
	return p.scheduler.QueuedTaskCount()
}

func (p *WorkerPool) DelayedTaskCount() int {
	return p.scheduler.DelayedTaskCount()
}

// Stats returns current observability data for this pool.
func (p *WorkerPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      p.id,
		Workers: p.workers,
		Queued:  p.QueuedTaskCount(),
		Busy:    p.BusyWorkers(),
		Delayed: p.DelayedTaskCount(),
		Running: p.IsRunning(),
	}
}

// PostInternal enqueues a runnable on the scheduler.
func (p *WorkerPool) PostInternal(r core.Runnable) error {
	return p.scheduler.Post(r)
}

// PostDelayedInternal enqueues a runnable after a delay.
func (p *WorkerPool) PostDelayedInternal(r core.Runnable, delay time.Duration) error {
	return p.scheduler.PostDelayed(r, delay)
}

// GetScheduler returns the pool's scheduler.
func (p *WorkerPool) GetScheduler() *core.Scheduler {
	return p.scheduler
}

// Registry returns the pool's task registry.
func (p *WorkerPool) Registry() *core.TaskRegistry {
	return p.registry
}

// History returns the pool's execution history ring.
func (p *WorkerPool) History() *core.ExecutionHistory {
	return p.history
}
