package core

import (
	"context"

	"github.com/google/uuid"
)

// Runnable is the internal unit of work executed by a pool worker.
type Runnable func(ctx context.Context)

// Closure is a self-contained task body. All data it operates on must arrive
// through ctx and in; capturing mutable outer state defeats the transfer
// discipline and is the caller's responsibility to avoid. Shared access goes
// through explicit Mutex/Barrier handles, which are safe to capture.
type Closure[R any] func(ctx context.Context, in *Inputs) (R, error)

// TaskID uniquely identifies one submitted task.
type TaskID string

// GenerateTaskID returns a new unique task identifier.
func GenerateTaskID() TaskID {
	return TaskID(uuid.NewString())
}

func (id TaskID) String() string {
	return string(id)
}

// =============================================================================
// Inputs: materialized task inputs
// =============================================================================

// Inputs carries the values and materialized buffers delivered to a closure.
// Buffers are materialized on the worker side, after ownership has left the
// submitter.
type Inputs struct {
	values  []any
	buffers []*TransferableBuffer
}

// Value returns the i-th plain input value, or nil if out of range.
func (in *Inputs) Value(i int) any {
	if in == nil || i < 0 || i >= len(in.values) {
		return nil
	}
	return in.values[i]
}

// ValueCount returns the number of plain input values.
func (in *Inputs) ValueCount() int {
	if in == nil {
		return 0
	}
	return len(in.values)
}

// Buffer returns the i-th transferred buffer, or nil if out of range.
func (in *Inputs) Buffer(i int) *TransferableBuffer {
	if in == nil || i < 0 || i >= len(in.buffers) {
		return nil
	}
	return in.buffers[i]
}

// BufferCount returns the number of transferred buffers.
func (in *Inputs) BufferCount() int {
	if in == nil {
		return 0
	}
	return len(in.buffers)
}

// =============================================================================
// Context Helpers
// =============================================================================

type taskIDKeyType struct{}
type workerIDKeyType struct{}

var (
	taskIDKey   taskIDKeyType
	workerIDKey workerIDKeyType
)

// WithTaskID returns a context carrying the given task identity. The worker
// sets this before invoking a closure; the Mutex uses it for re-entrancy
// detection.
func WithTaskID(ctx context.Context, id TaskID) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// CurrentTaskID returns the task identity carried by ctx, or "" outside a task.
func CurrentTaskID(ctx context.Context) TaskID {
	if v := ctx.Value(taskIDKey); v != nil {
		return v.(TaskID)
	}
	return ""
}

// WithWorkerID returns a context carrying the executing worker's id.
func WithWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerIDKey, id)
}

// CurrentWorkerID returns the worker id carried by ctx, or -1 outside a worker.
func CurrentWorkerID(ctx context.Context) int {
	if v := ctx.Value(workerIDKey); v != nil {
		return v.(int)
	}
	return -1
}
