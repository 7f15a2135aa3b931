package atomicvec

import (
	"fmt"
	"math/bits"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hupe1980/atomicvec/internal/sensitive"
	"github.com/hupe1980/atomicvec/resource"
)

// maxBuckets bounds the spine; bucket i holds 2^i slots, so 32 buckets
// address 2^32-1 elements.
const maxBuckets = 32

// bucket is fixed backing storage for one power-of-two range of indices.
// Slots are atomic nullable handles with nil as the empty sentinel. A
// bucket is never resized or freed while the vector lives, so a slot's
// address is stable from the moment its bucket exists.
type bucket[T any] struct {
	slots []atomic.Pointer[T]
}

func newBucket[T any](capacity uint64) *bucket[T] {
	return &bucket[T]{slots: make([]atomic.Pointer[T], capacity)}
}

// Vector is a grow-only container of reference-counted handles that
// supports concurrent append, read and overwrite without reader/writer
// locks. See the package documentation for the concurrency model.
//
// The zero value is not usable; construct with New.
type Vector[T any] struct {
	buckets [maxBuckets]atomic.Pointer[bucket[T]]
	size    atomic.Uint64

	section *sensitive.Section
	rc      Refcounter[T]
	serde   Serde[T]

	controller  *resource.Controller
	bucketBytes atomic.Int64

	logger          *Logger
	metrics         MetricsCollector
	loadConcurrency int
}

// New creates an empty Vector. rc manages the reference count embedded in
// T and must not be nil.
func New[T any](rc Refcounter[T], opts ...Option[T]) *Vector[T] {
	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}

	return &Vector[T]{
		section:         sensitive.New(o.stripes),
		rc:              rc,
		serde:           o.serde,
		controller:      o.controller,
		logger:          o.logger,
		metrics:         o.metrics,
		loadConcurrency: o.loadConcurrency,
	}
}

// bucketIndexFor maps a global index to the bucket backing it.
// Bucket i holds indices [2^i-1, 2^(i+1)-2].
func bucketIndexFor(index uint64) int {
	return bits.Len64(index+1) - 1
}

// bucketStart is the first global index backed by bucket bi.
func bucketStart(bi int) uint64 {
	return 1<<uint(bi) - 1
}

// locate resolves the slot for a published index. The caller must have
// checked index against size; a published index always has its bucket.
func (v *Vector[T]) locate(index uint64) *atomic.Pointer[T] {
	bi := bucketIndexFor(index)
	b := v.buckets[bi].Load()
	return &b.slots[index-bucketStart(bi)]
}

// Append stores value at the end of the vector and returns its index.
// The vector takes its own reference on value; the index is visible to
// every goroutine by the time Append returns.
//
// Contention never surfaces as an error. The only failure modes are a nil
// value and a bucket allocation that exceeds the memory budget.
func (v *Vector[T]) Append(value *T) (uint64, error) {
	if v.metrics == nil {
		return v.append(value)
	}
	start := time.Now()
	index, err := v.append(value)
	v.metrics.RecordAppend(time.Since(start), err)
	return index, err
}

func (v *Vector[T]) append(value *T) (uint64, error) {
	if value == nil {
		return 0, ErrNilValue
	}

	for {
		index := v.size.Load()

		bi := bucketIndexFor(index)
		b := v.buckets[bi].Load()
		if b == nil {
			nb, err := v.allocBucket(bi)
			if err != nil {
				return 0, err
			}
			if !v.buckets[bi].CompareAndSwap(nil, nb) {
				// Lost the allocation race. Drop ours and restart with a
				// freshly read size.
				v.unchargeBucket(bi)
				continue
			}
			b = nb
		}

		// Claim the slot a possibly stale size points at. Exactly one of
		// the appenders racing on this index wins; losers restart. A
		// filled slot can never be claimed again, since nil is never
		// stored back before Close.
		if !b.slots[index-bucketStart(bi)].CompareAndSwap(nil, value) {
			continue
		}

		// Publish order matters: the slot is written and the vector's
		// reference taken before the size advances, so any reader that
		// observes the new size sees a fully published, owned value.
		v.rc.Inc(value)
		v.size.Add(1)

		return index, nil
	}
}

func (v *Vector[T]) allocBucket(bi int) (*bucket[T], error) {
	capacity := uint64(1) << uint(bi)
	bytes := int64(capacity) * int64(unsafe.Sizeof(atomic.Pointer[T]{}))
	if !v.controller.TryAcquireMemory(bytes) {
		return nil, fmt.Errorf("%w: bucket %d (%d bytes)", ErrAllocationFailed, bi, bytes)
	}
	v.bucketBytes.Add(bytes)
	return newBucket[T](capacity), nil
}

func (v *Vector[T]) unchargeBucket(bi int) {
	bytes := int64(uint64(1)<<uint(bi)) * int64(unsafe.Sizeof(atomic.Pointer[T]{}))
	v.bucketBytes.Add(-bytes)
	v.controller.ReleaseMemory(bytes)
}

// Read returns the value at index. The caller receives its own reference
// and must release it with Release (or the Refcounter directly) when done;
// the value stays valid for as long as the reference is held, even if the
// slot is overwritten concurrently.
func (v *Vector[T]) Read(index uint64) (*T, error) {
	if v.metrics == nil {
		return v.read(index)
	}
	start := time.Now()
	val, err := v.read(index)
	v.metrics.RecordRead(time.Since(start), err)
	return val, err
}

func (v *Vector[T]) read(index uint64) (*T, error) {
	if size := v.size.Load(); index >= size {
		return nil, &ErrOutOfRange{Index: index, Size: size}
	}

	slot := v.locate(index)

	// The load and the reference bump happen inside the barrier, so a
	// concurrent Write to this slot cannot release the old value between
	// the two. The deferred Leave guarantees the ticket is returned even
	// if the Refcounter panics.
	t := v.section.Enter()
	defer v.section.Leave(t)

	val := slot.Load()
	v.rc.Inc(val)
	return val, nil
}

// Release drops a reference previously handed out by Read.
func (v *Vector[T]) Release(value *T) {
	if value != nil {
		v.rc.Dec(value)
	}
}

// Write replaces the value at index. Writing at or past the current size
// is rejected; use Append to grow the vector. The vector takes its own
// reference on value and releases its reference on the replaced value once
// no reader can still be dereferencing it, which makes Write the only
// operation that may block on other goroutines beyond a CAS retry.
func (v *Vector[T]) Write(index uint64, value *T) error {
	if v.metrics == nil {
		return v.write(index, value)
	}
	start := time.Now()
	err := v.write(index, value)
	v.metrics.RecordWrite(time.Since(start), err)
	return err
}

func (v *Vector[T]) write(index uint64, value *T) error {
	if value == nil {
		return ErrNilValue
	}
	if size := v.size.Load(); index >= size {
		return &ErrOutOfRange{Index: index, Size: size}
	}

	// The new reference logically belongs to the slot from this point on.
	v.rc.Inc(value)

	slot := v.locate(index)
	var old *T
	for {
		old = slot.Load()
		if slot.CompareAndSwap(old, value) {
			break
		}
		// Interference from a concurrent writer to the same index.
	}

	if old != nil {
		// swap -> wait -> release. A reader may have loaded old but not
		// yet bumped its count; draining the barrier proves every such
		// reader is done before the vector's reference is dropped.
		v.section.Wait()
		v.rc.Dec(old)
	}

	return nil
}

// Size returns the number of published elements. It never decreases.
func (v *Vector[T]) Size() uint64 {
	return v.size.Load()
}

// Close releases the vector's reference on every element. It must not run
// concurrently with any other operation; if a reader still appears to be
// inside the protected read path, Close fails with ErrBusy and releases
// nothing.
func (v *Vector[T]) Close() error {
	if !v.section.AppearsFree() {
		v.logger.LogClose(v.size.Load(), ErrBusy)
		return ErrBusy
	}

	n := v.size.Load()
	for i := uint64(0); i < n; i++ {
		if val := v.locate(i).Swap(nil); val != nil {
			v.rc.Dec(val)
		}
	}

	if b := v.bucketBytes.Swap(0); b > 0 {
		v.controller.ReleaseMemory(b)
	}

	v.logger.LogClose(n, nil)
	return nil
}

// growUnsafe pre-sizes the spine for count elements and publishes the size
// in one single-threaded pass, bypassing the CAS allocation path entirely.
// Only valid on a fresh vector before any concurrent access begins.
func (v *Vector[T]) growUnsafe(count uint64) error {
	if v.size.Load() != 0 || v.buckets[0].Load() != nil {
		return ErrNotEmpty
	}
	if count == 0 {
		return nil
	}

	top := bucketIndexFor(count - 1)
	for bi := 0; bi <= top; bi++ {
		b, err := v.allocBucket(bi)
		if err != nil {
			return err
		}
		v.buckets[bi].Store(b)
	}
	v.size.Store(count)
	return nil
}
