package core

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors returned by the buffer transfer protocol and the runtime
// lifecycle. Compare with errors.Is.
var (
	// ErrAlreadyTransferred is returned when a TransferableBuffer is accessed
	// or transferred after its ownership has already been moved.
	ErrAlreadyTransferred = errors.New("buffer already transferred")

	// ErrTokenConsumed is returned when a TransferToken is materialized twice.
	ErrTokenConsumed = errors.New("transfer token already consumed")

	// ErrPoolShutdown is returned by Submit after the pool has been stopped.
	ErrPoolShutdown = errors.New("worker pool is shut down")

	// ErrAlreadyInitialized is returned by InitRuntime on a second call.
	ErrAlreadyInitialized = errors.New("runtime already initialized")

	// ErrNotInitialized is returned by runtime accessors before InitRuntime.
	ErrNotInitialized = errors.New("runtime not initialized")
)

// =============================================================================
// ReentrancyError
// =============================================================================

// ReentrancyError is returned when the task currently holding a Mutex calls
// Lock again. Re-entrant acquisition is rejected fast instead of deadlocking.
type ReentrancyError struct {
	TaskID TaskID
}

func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("mutex: re-entrant lock by task %s", e.TaskID)
}

// =============================================================================
// BarrierTimeoutError
// =============================================================================

// BarrierTimeoutError is delivered to every waiter of a barrier round that
// failed to complete within the configured timeout.
type BarrierTimeoutError struct {
	Round        uint64
	Arrived      int
	Participants int
	Timeout      time.Duration
}

func (e *BarrierTimeoutError) Error() string {
	return fmt.Sprintf("barrier: round %d timed out after %v (%d/%d arrived)",
		e.Round, e.Timeout, e.Arrived, e.Participants)
}

// =============================================================================
// TaskError
// =============================================================================

// TaskError wraps an uncaught failure inside a submitted closure. It is the
// error surfaced by TaskHandle.Join for a Failed task; it never propagates
// into the pool's scheduler.
type TaskError struct {
	TaskID   TaskID
	WorkerID int
	Cause    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed on worker %d: %v", e.TaskID, e.WorkerID, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// newPanicTaskError wraps a recovered panic value, capturing the stack at the
// worker boundary.
func newPanicTaskError(id TaskID, workerID int, panicInfo any) *TaskError {
	return &TaskError{
		TaskID:   id,
		WorkerID: workerID,
		Cause:    errors.Errorf("panic: %v", panicInfo),
	}
}
