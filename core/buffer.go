package core

import "sync"

// =============================================================================
// TransferableBuffer: single-owner byte block
// =============================================================================

// TransferableBuffer owns a contiguous byte region that can be moved between
// the submitting side and a worker without copying. At any instant exactly one
// side may access the bytes; a moved-from buffer is invalid and every
// subsequent access fails with ErrAlreadyTransferred.
type TransferableBuffer struct {
	mu    sync.Mutex
	data  []byte
	moved bool
}

// NewTransferableBuffer wraps data in an owned buffer. The caller hands over
// ownership of the slice and must not retain it.
func NewTransferableBuffer(data []byte) *TransferableBuffer {
	return &TransferableBuffer{data: data}
}

// Len returns the byte length, or 0 for a moved-from buffer.
func (b *TransferableBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.moved {
		return 0
	}
	return len(b.data)
}

// Bytes returns the owned byte region. Fails with ErrAlreadyTransferred after
// the buffer has been moved.
func (b *TransferableBuffer) Bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.moved {
		return nil, ErrAlreadyTransferred
	}
	return b.data, nil
}

// Transfer invalidates the buffer and produces a token consumable exactly once
// by the receiving side. The byte storage is never duplicated; only its
// ownership record changes.
func (b *TransferableBuffer) Transfer() (*TransferToken, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.moved {
		return nil, ErrAlreadyTransferred
	}
	b.moved = true
	token := &TransferToken{data: b.data}
	b.data = nil
	return token, nil
}

// =============================================================================
// TransferToken
// =============================================================================

// TransferToken holds ownership of a transferred byte region between handoff
// and materialization.
type TransferToken struct {
	mu       sync.Mutex
	data     []byte
	consumed bool
}

// Materialize reconstructs a buffer owned by the receiver. A second call fails
// with ErrTokenConsumed.
func (t *TransferToken) Materialize() (*TransferableBuffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumed {
		return nil, ErrTokenConsumed
	}
	t.consumed = true
	buf := &TransferableBuffer{data: t.data}
	t.data = nil
	return buf, nil
}

// =============================================================================
// TransferBundle: the move() submission helper
// =============================================================================

// TransferBundle carries the tokens of buffers moved into one task submission.
type TransferBundle struct {
	tokens []*TransferToken
}

// Move transfers every buffer and bundles the resulting tokens for Submit.
// A buffer that was already moved fails the whole call with
// ErrAlreadyTransferred; buffers transferred before the failure stay moved.
func Move(bufs ...*TransferableBuffer) (*TransferBundle, error) {
	bundle := &TransferBundle{tokens: make([]*TransferToken, 0, len(bufs))}
	for _, b := range bufs {
		token, err := b.Transfer()
		if err != nil {
			return nil, err
		}
		bundle.tokens = append(bundle.tokens, token)
	}
	return bundle, nil
}

// materialize rebuilds worker-owned buffers from the bundle's tokens.
func (tb *TransferBundle) materialize() ([]*TransferableBuffer, error) {
	if tb == nil {
		return nil, nil
	}
	bufs := make([]*TransferableBuffer, 0, len(tb.tokens))
	for _, token := range tb.tokens {
		buf, err := token.Materialize()
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, buf)
	}
	return bufs, nil
}
