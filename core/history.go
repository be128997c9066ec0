package core

import "sync"

const defaultHistoryCapacity = 100

// ExecutionHistory is a bounded ring of completed task records, newest-first
// on read. It backs the per-task duration observability without holding
// results alive.
type ExecutionHistory struct {
	mu    sync.Mutex
	items []TaskExecutionRecord
	head  int
	count int
}

// NewExecutionHistory creates a ring with the given capacity (minimum 1;
// non-positive values fall back to the default).
func NewExecutionHistory(capacity int) *ExecutionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return &ExecutionHistory{items: make([]TaskExecutionRecord, capacity)}
}

// Add appends a record, evicting the oldest when full.
func (h *ExecutionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records in newest-first order; limit <= 0 means
// all retained records.
func (h *ExecutionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskExecutionRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// Last returns the most recent record, if any.
func (h *ExecutionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}
