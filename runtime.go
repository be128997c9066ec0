package taskcore

import (
	"context"
	"sync"
	"time"

	"github.com/taskcore/go-taskcore/core"
)

// Config controls global runtime initialization.
type Config struct {
	// PoolID names the default pool in logs and metrics. Defaults to "default".
	PoolID string
	// Workers is the worker goroutine count. <= 0 means the CPU core count.
	Workers int
	// Logger used by the pool and default handlers. Nil means zerolog on stderr.
	Logger core.Logger
	// Scheduler overrides panic, metrics and rejection handlers.
	Scheduler *core.SchedulerConfig
}

var (
	runtimeMu   sync.Mutex
	defaultPool *WorkerPool
)

// InitRuntime initializes the global default pool and starts its workers.
// Calling it again without an intervening ShutdownRuntime returns
// ErrAlreadyInitialized.
func InitRuntime(config Config) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if defaultPool != nil {
		return core.ErrAlreadyInitialized
	}

	if config.PoolID == "" {
		config.PoolID = "default"
	}
	sched := config.Scheduler
	if sched == nil {
		sched = core.DefaultSchedulerConfig()
	}

	pool := NewWorkerPoolWithConfig(config.PoolID, config.Workers, sched, config.Logger)
	pool.Start(context.Background())
	defaultPool = pool
	return nil
}

// ShutdownRuntime stops the default pool immediately, dropping queued work.
// It is a no-op when the runtime is not initialized. After shutdown the
// runtime may be initialized again.
func ShutdownRuntime() {
	runtimeMu.Lock()
	pool := defaultPool
	defaultPool = nil
	runtimeMu.Unlock()

	if pool != nil {
		pool.Stop()
	}
}

// ShutdownRuntimeGraceful stops the default pool after draining queued and
// busy tasks, up to timeout.
func ShutdownRuntimeGraceful(timeout time.Duration) error {
	runtimeMu.Lock()
	pool := defaultPool
	defaultPool = nil
	runtimeMu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.StopGraceful(timeout)
}

// DefaultPool returns the global pool, or nil before InitRuntime.
func DefaultPool() *WorkerPool {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	return defaultPool
}

// PoolSize returns the worker count of the default pool, 0 when uninitialized.
func PoolSize() int {
	if pool := DefaultPool(); pool != nil {
		return pool.WorkerCount()
	}
	return 0
}

// BusyWorkers returns the number of busy workers in the default pool.
func BusyWorkers() int {
	if pool := DefaultPool(); pool != nil {
		return pool.BusyWorkers()
	}
	return 0
}

// Spawn submits a closure to the default pool and returns its handle.
// Returns ErrNotInitialized before InitRuntime.
func Spawn[R any](fn core.Closure[R], opts ...core.SubmitOption) (*core.TaskHandle[R], error) {
	pool := DefaultPool()
	if pool == nil {
		return nil, core.ErrNotInitialized
	}
	return core.Submit(pool, fn, opts...)
}

// SpawnAfter submits a closure to the default pool after a delay.
func SpawnAfter[R any](fn core.Closure[R], delay time.Duration, opts ...core.SubmitOption) (*core.TaskHandle[R], error) {
	pool := DefaultPool()
	if pool == nil {
		return nil, core.ErrNotInitialized
	}
	return core.SubmitAfter(pool, fn, delay, opts...)
}
