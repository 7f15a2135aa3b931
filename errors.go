package atomicvec

import (
	"errors"
	"fmt"
)

var (
	// ErrNilValue is returned when a nil handle is passed to Append or
	// Write. Nil is the empty-slot sentinel and can never be stored.
	ErrNilValue = errors.New("atomicvec: nil value")

	// ErrAllocationFailed is returned when a bucket allocation exceeds the
	// configured memory budget. The append that hit it cannot be retried
	// usefully; the budget will still be exhausted.
	ErrAllocationFailed = errors.New("atomicvec: bucket allocation exceeds memory budget")

	// ErrNoSerde is returned by Save and Load when no Serde was configured.
	ErrNoSerde = errors.New("atomicvec: no serde configured")

	// ErrNotEmpty is returned by Load on a vector that already holds
	// elements. Load pre-sizes the spine without synchronization, which is
	// only sound on a fresh vector before any concurrent access.
	ErrNotEmpty = errors.New("atomicvec: load requires an empty vector")

	// ErrBusy is returned by Close while a reader still appears to be
	// inside the protected read path.
	ErrBusy = errors.New("atomicvec: readers still active")
)

// ErrOutOfRange indicates a read or write at or past the current size.
//
// Writing at exactly Size is rejected rather than treated as an append:
// the slot is not yet published, and rerouting would race with concurrent
// appenders. Use Append.
type ErrOutOfRange struct {
	Index uint64
	Size  uint64
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("atomicvec: index %d out of range [0, %d)", e.Index, e.Size)
}
