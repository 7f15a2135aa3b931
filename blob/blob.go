// Package blob provides a ready-made element type for atomicvec: an
// immutable byte payload with an embedded reference count, plus a codec
// that serializes payloads with optional compression.
//
// A *Blob is a single machine word, so it satisfies the container's
// requirement that elements be atomically swappable handles. The payload
// behind the handle never changes after construction; only the reference
// count moves.
package blob

import (
	"fmt"
	"sync/atomic"
)

// Blob is an immutable byte payload with an embedded reference count.
type Blob struct {
	data []byte
	refs atomic.Int64
}

// New creates a Blob holding data. The Blob takes ownership of the slice;
// the caller must not modify it afterwards. The reference count starts at
// zero: ownership is established by the first Inc, typically performed by
// the container on append.
func New(data []byte) *Blob {
	return &Blob{data: data}
}

// FromString creates a Blob from a string.
func FromString(s string) *Blob {
	return New([]byte(s))
}

// Bytes returns the payload. Callers must not modify the returned slice.
func (b *Blob) Bytes() []byte {
	return b.data
}

// String returns the payload as a string.
func (b *Blob) String() string {
	return string(b.data)
}

// Len returns the payload length in bytes.
func (b *Blob) Len() int {
	return len(b.data)
}

// RC implements the container's reference-count contract for Blob.
type RC struct{}

// Inc adds a reference.
func (RC) Inc(b *Blob) {
	b.refs.Add(1)
}

// Dec drops a reference. Dropping below zero is a protocol violation by
// the caller (a double release) and panics rather than corrupting state
// silently.
func (RC) Dec(b *Blob) {
	if n := b.refs.Add(-1); n < 0 {
		panic(fmt.Sprintf("blob: refcount underflow (%d)", n))
	}
}

// Count returns the current reference count.
func (RC) Count(b *Blob) int64 {
	return b.refs.Load()
}
