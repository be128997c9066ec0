package core

import (
	"testing"
	"time"
)

func TestTaskRegistry_LookupAndRemove(t *testing.T) {
	r := NewTaskRegistry()

	state := newHandleState(GenerateTaskID())
	r.add(state)

	snap, ok := r.Lookup(state.id)
	if !ok {
		t.Fatal("Lookup missed a registered task")
	}
	if snap.State != TaskStatePending {
		t.Fatalf("state = %v, want PENDING", snap.State)
	}
	if snap.WorkerID != -1 {
		t.Fatalf("WorkerID before dispatch = %d, want -1", snap.WorkerID)
	}

	r.Remove(state.id)
	if _, ok := r.Lookup(state.id); ok {
		t.Fatal("Lookup found a removed task")
	}
}

func TestTaskRegistry_StatsByState(t *testing.T) {
	r := NewTaskRegistry()

	pending := newHandleState(GenerateTaskID())
	r.add(pending)

	running := newHandleState(GenerateTaskID())
	running.markRunning(0)
	r.add(running)

	completed := newHandleState(GenerateTaskID())
	completed.markRunning(1)
	completed.complete(42, time.Millisecond)
	r.add(completed)

	failed := newHandleState(GenerateTaskID())
	failed.markRunning(1)
	failed.fail(ErrPoolShutdown, time.Millisecond)
	r.add(failed)

	stats := r.Stats()
	if stats.Pending != 1 || stats.Running != 1 || stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want one of each", stats)
	}
	if stats.Total() != 4 {
		t.Fatalf("Total = %d, want 4", stats.Total())
	}
	if got := r.Count(); got != 4 {
		t.Fatalf("Count = %d, want 4", got)
	}
	if got := len(r.Snapshots()); got != 4 {
		t.Fatalf("Snapshots = %d entries, want 4", got)
	}
}

func TestTaskRegistry_SnapshotDurationOnlyWhenTerminal(t *testing.T) {
	r := NewTaskRegistry()

	state := newHandleState(GenerateTaskID())
	state.markRunning(0)
	r.add(state)

	snap, _ := r.Lookup(state.id)
	if snap.Duration != 0 {
		t.Fatalf("running task duration = %v, want 0", snap.Duration)
	}

	state.complete(nil, 7*time.Millisecond)
	snap, _ = r.Lookup(state.id)
	if snap.Duration != 7*time.Millisecond {
		t.Fatalf("terminal duration = %v, want 7ms", snap.Duration)
	}
}
