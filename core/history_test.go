package core

import (
	"testing"
)

func record(n int) TaskExecutionRecord {
	return TaskExecutionRecord{TaskID: TaskID(rune('a' + n)), WorkerID: n}
}

func TestExecutionHistory_NewestFirst(t *testing.T) {
	h := NewExecutionHistory(10)

	for i := 0; i < 3; i++ {
		h.Add(record(i))
	}

	recent := h.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("Recent = %d records, want 3", len(recent))
	}
	for i, r := range recent {
		if want := 2 - i; r.WorkerID != want {
			t.Fatalf("recent[%d].WorkerID = %d, want %d", i, r.WorkerID, want)
		}
	}

	last, ok := h.Last()
	if !ok || last.WorkerID != 2 {
		t.Fatalf("Last = %+v ok=%v, want WorkerID 2", last, ok)
	}
}

func TestExecutionHistory_EvictsOldest(t *testing.T) {
	h := NewExecutionHistory(3)

	for i := 0; i < 5; i++ {
		h.Add(record(i))
	}

	recent := h.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("Recent = %d records, want 3", len(recent))
	}
	if recent[0].WorkerID != 4 || recent[2].WorkerID != 2 {
		t.Fatalf("retained window = %v..%v, want 4..2", recent[0].WorkerID, recent[2].WorkerID)
	}
}

func TestExecutionHistory_LimitedRecent(t *testing.T) {
	h := NewExecutionHistory(10)
	for i := 0; i < 5; i++ {
		h.Add(record(i))
	}

	recent := h.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) = %d records, want 2", len(recent))
	}
	if recent[0].WorkerID != 4 || recent[1].WorkerID != 3 {
		t.Fatalf("Recent(2) = %v, want [4 3]", recent)
	}
}

func TestExecutionHistory_Empty(t *testing.T) {
	h := NewExecutionHistory(5)
	if got := h.Recent(0); got != nil {
		t.Fatalf("Recent on empty history = %v, want nil", got)
	}
	if _, ok := h.Last(); ok {
		t.Fatal("Last on empty history returned ok")
	}
}
