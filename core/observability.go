package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	WorkerID   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Failed     bool
}

// RegistryStats counts registered tasks by lifecycle state.
type RegistryStats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// Total returns the number of registered tasks.
func (s RegistryStats) Total() int {
	return s.Pending + s.Running + s.Completed + s.Failed
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Busy    int
	Delayed int
	Running bool
}
