package core

import (
	"context"
	"runtime/debug"
	"time"
)

// =============================================================================
// Dispatcher: the execution engine Submit targets
// =============================================================================

// Dispatcher is implemented by the worker pool. Submit is a package-level
// generic function rather than a method so handles stay fully typed.
type Dispatcher interface {
	// PostInternal enqueues work for the next idle worker.
	PostInternal(r Runnable) error

	// PostDelayedInternal enqueues work after a delay.
	PostDelayedInternal(r Runnable, delay time.Duration) error

	ID() string
	GetScheduler() *Scheduler
	Registry() *TaskRegistry
	History() *ExecutionHistory
}

// =============================================================================
// Submit options
// =============================================================================

type submitOptions struct {
	values []any
	bundle *TransferBundle
}

// SubmitOption configures one submission.
type SubmitOption func(*submitOptions)

// WithValues attaches plain input values, delivered through Inputs.Value.
func WithValues(values ...any) SubmitOption {
	return func(o *submitOptions) {
		o.values = append(o.values, values...)
	}
}

// WithTransfer attaches a bundle of moved buffers. The bundle's tokens are
// materialized on the worker side, so the bytes are owned by exactly one side
// at every instant.
func WithTransfer(bundle *TransferBundle) SubmitOption {
	return func(o *submitOptions) {
		o.bundle = bundle
	}
}

// =============================================================================
// Submit
// =============================================================================

// Submit dispatches a self-contained closure to the pool and returns a
// Pending handle immediately. A closure error or panic surfaces as a Failed
// outcome on the handle; it never crashes the worker or the pool. After pool
// shutdown Submit fails with ErrPoolShutdown.
func Submit[R any](d Dispatcher, fn Closure[R], opts ...SubmitOption) (*TaskHandle[R], error) {
	state, run := prepare(d, fn, opts)
	if err := d.PostInternal(run); err != nil {
		d.Registry().Remove(state.id)
		return nil, err
	}
	return &TaskHandle[R]{s: state}, nil
}

// SubmitAfter is Submit with a dispatch delay. The handle stays Pending until
// the delay elapses and a worker picks the task up.
func SubmitAfter[R any](d Dispatcher, fn Closure[R], delay time.Duration, opts ...SubmitOption) (*TaskHandle[R], error) {
	state, run := prepare(d, fn, opts)
	if err := d.PostDelayedInternal(run, delay); err != nil {
		d.Registry().Remove(state.id)
		return nil, err
	}
	return &TaskHandle[R]{s: state}, nil
}

// prepare builds the handle state and the worker-side runnable, and registers
// the task.
func prepare[R any](d Dispatcher, fn Closure[R], opts []SubmitOption) (*handleState, Runnable) {
	var options submitOptions
	for _, opt := range opts {
		opt(&options)
	}

	id := GenerateTaskID()
	state := newHandleState(id)
	d.Registry().add(state)

	run := func(ctx context.Context) {
		workerID := CurrentWorkerID(ctx)
		ctx = WithTaskID(ctx, id)
		state.markRunning(workerID)
		startedAt := time.Now()

		finish := func(result any, err error) {
			duration := time.Since(startedAt)
			// Record before completing the handle so a joiner returning from
			// Join already sees the execution in history and metrics.
			d.History().Add(TaskExecutionRecord{
				TaskID:     id,
				WorkerID:   workerID,
				StartedAt:  startedAt,
				FinishedAt: time.Now(),
				Duration:   duration,
				Failed:     err != nil,
			})
			d.GetScheduler().GetMetrics().RecordTaskDuration(d.ID(), duration)
			if err != nil {
				state.fail(err, duration)
			} else {
				state.complete(result, duration)
			}
		}

		bufs, merr := options.bundle.materialize()
		if merr != nil {
			finish(nil, &TaskError{TaskID: id, WorkerID: workerID, Cause: merr})
			return
		}
		in := &Inputs{values: options.values, buffers: bufs}

		var result R
		var err error
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					scheduler := d.GetScheduler()
					scheduler.GetPanicHandler().HandlePanic(ctx, d.ID(), workerID, rec, debug.Stack())
					scheduler.GetMetrics().RecordTaskPanic(d.ID(), rec)
					err = newPanicTaskError(id, workerID, rec)
				}
			}()
			result, err = fn(ctx, in)
		}()

		if err != nil {
			if _, ok := err.(*TaskError); !ok {
				err = &TaskError{TaskID: id, WorkerID: workerID, Cause: err}
			}
			finish(nil, err)
			return
		}
		finish(result, nil)
	}

	return state, run
}
