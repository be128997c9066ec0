package core

import "sync"

// =============================================================================
// TaskRegistry: id -> in-flight task mapping
// =============================================================================

// TaskRegistry maps task ids to their handle states. It is touched by the
// submitting side and by worker-completion paths and does its own locking
// (sync.Map, matching the write-once/read-many access pattern); it is never
// exposed for direct mutation.
type TaskRegistry struct {
	data sync.Map // map[TaskID]*handleState
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{}
}

func (r *TaskRegistry) add(s *handleState) {
	r.data.Store(s.id, s)
}

// Lookup returns a snapshot of the task with the given id.
func (r *TaskRegistry) Lookup(id TaskID) (TaskSnapshot, bool) {
	raw, ok := r.data.Load(id)
	if !ok {
		return TaskSnapshot{}, false
	}
	return raw.(*handleState).snapshot(), true
}

// Remove drops a task from the registry. Terminal tasks may be removed by
// the owner once their outcome has been consumed.
func (r *TaskRegistry) Remove(id TaskID) {
	r.data.Delete(id)
}

// Count returns the number of registered tasks.
func (r *TaskRegistry) Count() int {
	count := 0
	r.data.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

// Snapshots returns a point-in-time view of every registered task.
func (r *TaskRegistry) Snapshots() []TaskSnapshot {
	var out []TaskSnapshot
	r.data.Range(func(key, value any) bool {
		out = append(out, value.(*handleState).snapshot())
		return true
	})
	return out
}

// FailUnfinished fails every task that has not settled yet with err, so a
// handle whose runnable was dropped at shutdown still resolves instead of
// leaving Join hung. Returns the number of tasks aborted.
func (r *TaskRegistry) FailUnfinished(err error) int {
	aborted := 0
	r.data.Range(func(key, value any) bool {
		if value.(*handleState).fail(err, 0) {
			aborted++
		}
		return true
	})
	return aborted
}

// Stats counts registered tasks by state.
func (r *TaskRegistry) Stats() RegistryStats {
	var stats RegistryStats
	r.data.Range(func(key, value any) bool {
		switch value.(*handleState).currentState() {
		case TaskStatePending:
			stats.Pending++
		case TaskStateRunning:
			stats.Running++
		case TaskStateCompleted:
			stats.Completed++
		case TaskStateFailed:
			stats.Failed++
		}
		return true
	})
	return stats
}
