package core

import (
	"context"
	"testing"
)

func TestRunnableQueue_FIFO(t *testing.T) {
	q := NewRunnableQueue()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Push(func(ctx context.Context) { order = append(order, i) })
	}
	if got := q.Len(); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}

	for {
		r, ok := q.Pop()
		if !ok {
			break
		}
		r(context.Background())
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("queue not empty after draining")
	}
}

func TestRunnableQueue_PopEmpty(t *testing.T) {
	q := NewRunnableQueue()
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue returned ok")
	}
}

func TestRunnableQueue_Clear(t *testing.T) {
	q := NewRunnableQueue()
	for i := 0; i < 10; i++ {
		q.Push(func(ctx context.Context) {})
	}
	q.Clear()
	if got := q.Len(); got != 0 {
		t.Fatalf("Len after Clear = %d, want 0", got)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop after Clear returned ok")
	}
}

func TestRunnableQueue_ShrinksAfterHeavyUse(t *testing.T) {
	q := NewRunnableQueue()

	for i := 0; i < 1000; i++ {
		q.Push(func(ctx context.Context) {})
	}
	for i := 0; i < 1000; i++ {
		if _, ok := q.Pop(); !ok {
			t.Fatalf("Pop %d failed", i)
		}
	}

	// Queue remains fully usable after compaction.
	q.Push(func(ctx context.Context) {})
	if got := q.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}
