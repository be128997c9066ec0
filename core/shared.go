package core

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// =============================================================================
// SharedBuffer: structured state shared across workers
// =============================================================================

// SharedBuffer holds one structured value of application-defined shape T in
// memory reachable by every worker for the lifetime of the pool. The value
// must only be mutated while the guarding Mutex is held; the buffer itself
// only locks around its encoding cache and snapshots.
//
// Writes are change-tracked at top-level JSON field granularity: mutators
// call Touch with the fields they changed, and Encode re-serializes only
// those fields against a cached encoding.
type SharedBuffer[T any] struct {
	mu    sync.Mutex
	value T

	cache  map[string]json.RawMessage
	dirty  map[string]struct{}
	full   bool           // next Encode re-serializes everything
	fields map[string]int // JSON field name -> struct field index; nil when T is not a struct
}

// NewSharedBuffer creates a shared buffer holding initial.
func NewSharedBuffer[T any](initial T) *SharedBuffer[T] {
	b := &SharedBuffer[T]{
		value: initial,
		cache: make(map[string]json.RawMessage),
		dirty: make(map[string]struct{}),
		full:  true,
	}
	b.fields = structFieldIndex(reflect.TypeOf(initial))
	return b
}

// structFieldIndex maps JSON field names to struct field indices, or returns
// nil for non-struct shapes (which always re-encode fully).
func structFieldIndex(t reflect.Type) map[string]int {
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields[name] = i
	}
	return fields
}

// Value returns the shared value for mutation. Callers must hold the guarding
// Mutex; readers wanting an unguarded view use Snapshot instead.
func (b *SharedBuffer[T]) Value() *T {
	return &b.value
}

// Touch marks top-level JSON fields as changed since the last Encode.
// Unknown field names (or a non-struct T) fall back to a full re-encode.
func (b *SharedBuffer[T]) Touch(fields ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fields == nil {
		b.full = true
		return
	}
	for _, name := range fields {
		if _, ok := b.fields[name]; !ok {
			b.full = true
			return
		}
		b.dirty[name] = struct{}{}
	}
}

// Snapshot returns a deep copy of the current value via a JSON round trip, so
// callers never alias the shared state.
func (b *SharedBuffer[T]) Snapshot() (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out T
	data, err := json.Marshal(b.value)
	if err != nil {
		return out, errors.Wrap(err, "shared buffer snapshot marshal")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrap(err, "shared buffer snapshot unmarshal")
	}
	return out, nil
}

// Encode serializes the current value, re-encoding only the fields marked
// dirty since the previous call. The first call (and every call for
// non-struct shapes) encodes everything.
func (b *SharedBuffer[T]) Encode() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fields == nil {
		return json.Marshal(b.value)
	}

	v := reflect.ValueOf(b.value)

	if b.full {
		for name, idx := range b.fields {
			raw, err := json.Marshal(v.Field(idx).Interface())
			if err != nil {
				return nil, errors.Wrapf(err, "shared buffer encode field %q", name)
			}
			b.cache[name] = raw
		}
		b.full = false
		b.dirty = make(map[string]struct{})
		return json.Marshal(b.cache)
	}

	for name := range b.dirty {
		raw, err := json.Marshal(v.Field(b.fields[name]).Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "shared buffer encode field %q", name)
		}
		b.cache[name] = raw
	}
	b.dirty = make(map[string]struct{})
	return json.Marshal(b.cache)
}

// DirtyFieldCount reports how many fields are pending re-encode. Mostly
// useful in tests and observability dumps.
func (b *SharedBuffer[T]) DirtyFieldCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.fields)
	}
	return len(b.dirty)
}
