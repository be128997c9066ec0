package core

import (
	"context"
	"sync/atomic"
	"time"
)

// =============================================================================
// Task states
// =============================================================================

// TaskState is the lifecycle state of a submitted task.
type TaskState int32

const (
	TaskStatePending TaskState = iota
	TaskStateRunning
	TaskStateCompleted
	TaskStateFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskStatePending:
		return "PENDING"
	case TaskStateRunning:
		return "RUNNING"
	case TaskStateCompleted:
		return "COMPLETED"
	case TaskStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state is Completed or Failed.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// TaskMetrics reports where and for how long a finished task computed.
// Duration is measured inside the worker, around the closure only.
type TaskMetrics struct {
	WorkerID int
	Duration time.Duration
}

// =============================================================================
// handleState: shared, type-erased completion record
// =============================================================================

// handleState is the type-erased core of a TaskHandle, shared with the task
// registry. result and err are written exactly once, before done is closed;
// readers go through the done channel for the happens-before edge.
type handleState struct {
	id          TaskID
	state       atomic.Int32
	workerID    atomic.Int32
	settled     atomic.Bool
	done        chan struct{}
	result      any
	err         error
	duration    time.Duration
	submittedAt time.Time
}

func newHandleState(id TaskID) *handleState {
	s := &handleState{
		id:          id,
		done:        make(chan struct{}),
		submittedAt: time.Now(),
	}
	s.workerID.Store(-1)
	return s
}

func (s *handleState) markRunning(workerID int) {
	s.workerID.Store(int32(workerID))
	s.state.Store(int32(TaskStateRunning))
}

// complete and fail settle the task exactly once; the losing caller is a
// no-op. This lets the shutdown abort path fail dropped tasks without racing
// a worker that is finishing the same task.
func (s *handleState) complete(result any, d time.Duration) bool {
	if !s.settled.CompareAndSwap(false, true) {
		return false
	}
	s.result = result
	s.duration = d
	s.state.Store(int32(TaskStateCompleted))
	close(s.done)
	return true
}

func (s *handleState) fail(err error, d time.Duration) bool {
	if !s.settled.CompareAndSwap(false, true) {
		return false
	}
	s.err = err
	s.duration = d
	s.state.Store(int32(TaskStateFailed))
	close(s.done)
	return true
}

func (s *handleState) currentState() TaskState {
	return TaskState(s.state.Load())
}

// TaskSnapshot is a point-in-time view of one task, used by the registry and
// the observability layer.
type TaskSnapshot struct {
	ID          TaskID
	State       TaskState
	WorkerID    int
	Duration    time.Duration
	SubmittedAt time.Time
}

func (s *handleState) snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		ID:          s.id,
		State:       s.currentState(),
		WorkerID:    int(s.workerID.Load()),
		SubmittedAt: s.submittedAt,
	}
	if snap.State.Terminal() {
		snap.Duration = s.duration
	}
	return snap
}

// =============================================================================
// TaskHandle
// =============================================================================

// TaskHandle represents one in-flight task. Once the task reaches a terminal
// state, every Join (concurrent or repeated) observes the same outcome.
type TaskHandle[R any] struct {
	s *handleState
}

// ID returns the task's unique identifier.
func (h *TaskHandle[R]) ID() TaskID {
	return h.s.id
}

// State returns the task's current lifecycle state.
func (h *TaskHandle[R]) State() TaskState {
	return h.s.currentState()
}

// Join waits for the task to finish and returns its outcome. Cancelling ctx
// stops this caller from waiting; the task keeps running (mid-task
// cancellation of an arbitrary closure is unsafe and deliberately
// unsupported).
func (h *TaskHandle[R]) Join(ctx context.Context) (R, error) {
	select {
	case <-h.s.done:
		return h.outcome()
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// JoinTimeout is Join with a deadline relative to now.
func (h *TaskHandle[R]) JoinTimeout(d time.Duration) (R, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return h.Join(ctx)
}

// Metrics returns worker id and measured compute duration. Only meaningful
// once the task is terminal; WorkerID is -1 before dispatch.
func (h *TaskHandle[R]) Metrics() TaskMetrics {
	m := TaskMetrics{WorkerID: int(h.s.workerID.Load())}
	if h.s.currentState().Terminal() {
		m.Duration = h.s.duration
	}
	return m
}

func (h *TaskHandle[R]) outcome() (R, error) {
	if h.s.err != nil {
		var zero R
		return zero, h.s.err
	}
	result, _ := h.s.result.(R)
	return result, nil
}
