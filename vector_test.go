package atomicvec

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/atomicvec/blob"
	"github.com/hupe1980/atomicvec/resource"
)

func newBlobVector(opts ...Option[blob.Blob]) *Vector[blob.Blob] {
	opts = append(opts, WithSerde[blob.Blob](blob.Serde{}))
	return New[blob.Blob](blob.RC{}, opts...)
}

func TestVector_AppendRead(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	idx, err := vec.Append(blob.FromString("a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), idx)

	idx, err = vec.Append(blob.FromString("b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx)

	assert.Equal(t, uint64(2), vec.Size())

	val, err := vec.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "a", val.String())
	vec.Release(val)

	val, err = vec.Read(1)
	require.NoError(t, err)
	assert.Equal(t, "b", val.String())
	vec.Release(val)
}

func TestVector_AppendNil(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	_, err := vec.Append(nil)
	require.ErrorIs(t, err, ErrNilValue)

	_, err = vec.Append(blob.FromString("x"))
	require.NoError(t, err)
	err = vec.Write(0, nil)
	require.ErrorIs(t, err, ErrNilValue)
}

func TestVector_OutOfRange(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	_, err := vec.Append(blob.FromString("a"))
	require.NoError(t, err)

	// Reading or writing at exactly Size must fail; append is the only
	// way to grow.
	_, err = vec.Read(vec.Size())
	var oor *ErrOutOfRange
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, uint64(1), oor.Index)
	assert.Equal(t, uint64(1), oor.Size)

	err = vec.Write(vec.Size(), blob.FromString("b"))
	require.ErrorAs(t, err, &oor)

	_, err = vec.Read(1 << 20)
	require.ErrorAs(t, err, &oor)
}

func TestVector_WriteVisibility(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	_, err := vec.Append(blob.FromString("old"))
	require.NoError(t, err)

	require.NoError(t, vec.Write(0, blob.FromString("new")))

	val, err := vec.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "new", val.String())
	vec.Release(val)
}

func TestVector_RefcountProtocol(t *testing.T) {
	var rc blob.RC
	vec := New[blob.Blob](rc)

	appended := blob.FromString("a")
	_, err := vec.Append(appended)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rc.Count(appended), "the vector owns one reference")

	held, err := vec.Read(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rc.Count(held), "read hands out a second reference")

	replacement := blob.FromString("b")
	require.NoError(t, vec.Write(0, replacement))
	assert.Equal(t, int64(1), rc.Count(replacement))
	assert.Equal(t, int64(1), rc.Count(appended), "the held read reference survives the overwrite")

	vec.Release(held)
	assert.Zero(t, rc.Count(appended))

	require.NoError(t, vec.Close())
	assert.Zero(t, rc.Count(replacement), "close drops the vector's reference")
}

func TestVector_BucketBoundaries(t *testing.T) {
	// Indices around bucket transitions: bucket i starts at 2^i-1.
	vec := newBlobVector()
	defer vec.Close()

	const n = 100
	for i := 0; i < n; i++ {
		idx, err := vec.Append(blob.FromString(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
		require.Equal(t, uint64(i), idx, "single-threaded appends are dense")
	}

	for i := 0; i < n; i++ {
		val, err := vec.Read(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("v%d", i), val.String())
		vec.Release(val)
	}
}

func TestBucketIndexMath(t *testing.T) {
	tests := []struct {
		index  uint64
		bucket int
		offset uint64
	}{
		{0, 0, 0},
		{1, 1, 0},
		{2, 1, 1},
		{3, 2, 0},
		{6, 2, 3},
		{7, 3, 0},
		{14, 3, 7},
		{15, 4, 0},
		{(1 << 20) - 1, 20, 0},
		{(1 << 21) - 2, 20, (1 << 20) - 1},
	}
	for _, tt := range tests {
		bi := bucketIndexFor(tt.index)
		assert.Equal(t, tt.bucket, bi, "index %d", tt.index)
		assert.Equal(t, tt.offset, tt.index-bucketStart(bi), "index %d", tt.index)
	}
}

func TestVector_ConcurrentAppendCompleteness(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	const goroutines = 16
	const perGoroutine = 500
	const total = goroutines * perGoroutine

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				value := blob.FromString(fmt.Sprintf("g%d-%d", g, i))
				_, err := vec.Append(value)
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(total), vec.Size(), "no appended element may be lost")

	// Every distinct value appears exactly once, under any interleaving.
	seen := make(map[string]int, total)
	for i := uint64(0); i < uint64(total); i++ {
		val, err := vec.Read(i)
		require.NoError(t, err)
		seen[val.String()]++
		vec.Release(val)
	}
	require.Len(t, seen, total)
	for s, n := range seen {
		assert.Equal(t, 1, n, "value %s duplicated", s)
	}
}

func TestVector_MonotonicSize(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		var prev uint64
		for {
			select {
			case <-stop:
				return
			default:
			}
			size := vec.Size()
			if size < prev {
				t.Errorf("size decreased: %d -> %d", prev, size)
				return
			}
			prev = size
		}
	}()

	for i := 0; i < 2000; i++ {
		_, err := vec.Append(blob.FromString(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestVector_ReadAfterAppend(t *testing.T) {
	vec := newBlobVector()
	defer vec.Close()

	var wg sync.WaitGroup

	// Appenders publish, checkers immediately read back what was returned.
	for g := 0; g < 8; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s := fmt.Sprintf("g%d-%d", g, i)
				idx, err := vec.Append(blob.FromString(s))
				if err != nil {
					t.Error(err)
					return
				}
				val, err := vec.Read(idx)
				if err != nil {
					t.Error(err)
					return
				}
				if val.String() != s {
					t.Errorf("read after append at %d: got %q, want %q", idx, val.String(), s)
				}
				vec.Release(val)
			}
		}()
	}
	wg.Wait()
}

func TestVector_NoUseAfterFreeUnderOverwrite(t *testing.T) {
	var rc blob.RC
	vec := New[blob.Blob](rc)
	defer vec.Close()

	_, err := vec.Append(blob.FromString("initial"))
	require.NoError(t, err)

	stop := make(chan struct{})
	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := vec.Write(0, blob.FromString(fmt.Sprintf("w%d", i))); err != nil {
				t.Error(err)
				return
			}
			i++
		}
	}()

	var violations atomic.Int64
	var readers sync.WaitGroup
	for r := 0; r < 8; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 2000; i++ {
				val, err := vec.Read(0)
				if err != nil {
					t.Error(err)
					return
				}
				// While this reference is held the value must stay alive,
				// no matter how many overwrites have raced past.
				if rc.Count(val) <= 0 {
					violations.Add(1)
				}
				_ = val.String()
				vec.Release(val)
			}
		}()
	}
	readers.Wait()
	close(stop)
	writerDone.Wait()

	assert.Zero(t, violations.Load(), "a held read reference must never see refcount <= 0")
}

func TestVector_ConcurrentWritersSameIndex(t *testing.T) {
	var rc blob.RC
	vec := New[blob.Blob](rc)
	defer vec.Close()

	_, err := vec.Append(blob.FromString("seed"))
	require.NoError(t, err)

	const writers = 8
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if err := vec.Write(0, blob.FromString(fmt.Sprintf("w%d-%d", w, i))); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Exactly one value survives and it owns exactly the vector's
	// reference; every replaced value was released exactly once.
	val, err := vec.Read(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rc.Count(val))
	vec.Release(val)
}

func TestVector_MemoryBudget(t *testing.T) {
	// A budget too small for the first buckets must fail the append
	// rather than clamp or retry.
	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 8})
	vec := newBlobVector(WithController[blob.Blob](ctrl))
	defer vec.Close()

	_, err := vec.Append(blob.FromString("a")) // bucket 0: 8 bytes, fits
	require.NoError(t, err)

	_, err = vec.Append(blob.FromString("b")) // bucket 1: 16 bytes, over budget
	require.ErrorIs(t, err, ErrAllocationFailed)

	assert.Equal(t, uint64(1), vec.Size())
}

func TestVector_CloseReleasesBudget(t *testing.T) {
	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	vec := newBlobVector(WithController[blob.Blob](ctrl))

	for i := 0; i < 100; i++ {
		_, err := vec.Append(blob.FromString("x"))
		require.NoError(t, err)
	}
	require.Positive(t, ctrl.MemoryUsage())

	require.NoError(t, vec.Close())
	assert.Zero(t, ctrl.MemoryUsage())
}

func TestVector_Metrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	vec := newBlobVector(WithMetrics[blob.Blob](metrics))
	defer vec.Close()

	_, err := vec.Append(blob.FromString("a"))
	require.NoError(t, err)
	val, err := vec.Read(0)
	require.NoError(t, err)
	vec.Release(val)
	require.NoError(t, vec.Write(0, blob.FromString("b")))
	_, err = vec.Read(99)
	require.Error(t, err)

	assert.Equal(t, int64(1), metrics.AppendCount.Load())
	assert.Equal(t, int64(2), metrics.ReadCount.Load())
	assert.Equal(t, int64(1), metrics.ReadErrors.Load())
	assert.Equal(t, int64(1), metrics.WriteCount.Load())
}

func BenchmarkVector_Append(b *testing.B) {
	vec := New[blob.Blob](blob.RC{})
	defer vec.Close()

	value := blob.FromString("payload")
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := vec.Append(value); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkVector_Read(b *testing.B) {
	vec := New[blob.Blob](blob.RC{})
	defer vec.Close()

	const n = 1 << 16
	for i := 0; i < n; i++ {
		if _, err := vec.Append(blob.FromString("payload")); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := uint64(0)
		for pb.Next() {
			val, err := vec.Read(i % n)
			if err != nil {
				b.Fatal(err)
			}
			vec.Release(val)
			i++
		}
	})
}
