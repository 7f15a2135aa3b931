package atomicvec

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/atomicvec/wire"
)

// ReadSeekerAt is the file surface Load needs: a shared cursor for the
// header and directory, and positioned reads for the payload workers.
// *os.File satisfies it.
type ReadSeekerAt interface {
	io.ReadSeeker
	io.ReaderAt
}

// Save writes a snapshot of the vector to w in the wire format.
//
// The size is sampled once at entry: elements appended after that instant
// are silently excluded, and because every element is fetched through the
// protected read path, everything persisted is a fully published value.
// Any short write is fatal to the call; a partially written output is not
// cleaned up.
func (v *Vector[T]) Save(ctx context.Context, w io.WriteSeeker) error {
	start := time.Now()
	count, err := v.save(ctx, w)
	if v.metrics != nil {
		v.metrics.RecordSave(count, time.Since(start), err)
	}
	v.logger.LogSave(ctx, count, err)
	return err
}

func (v *Vector[T]) save(ctx context.Context, w io.WriteSeeker) (uint64, error) {
	if v.serde == nil {
		return 0, ErrNoSerde
	}

	bw := wire.NewWriter(w)
	if err := bw.WriteMagic(); err != nil {
		return 0, err
	}

	count := v.size.Load()
	if err := bw.WriteUint64(count); err != nil {
		return count, err
	}

	// Reserve the directory region; the offsets are known only once the
	// payloads are written, so the directory is backpatched at the end.
	dirOff, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return count, err
	}
	if _, err := w.Seek(int64(count)*8, io.SeekCurrent); err != nil {
		return count, err
	}

	offsets := make([]uint64, count)
	for i := uint64(0); i < count; i++ {
		if err := v.saveElement(ctx, bw, w, offsets, i); err != nil {
			return count, err
		}
	}

	end, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return count, err
	}
	if _, err := w.Seek(dirOff, io.SeekStart); err != nil {
		return count, err
	}
	if err := bw.WriteUint64Slice(offsets); err != nil {
		return count, err
	}
	if _, err := w.Seek(end, io.SeekStart); err != nil {
		return count, err
	}

	return count, nil
}

func (v *Vector[T]) saveElement(ctx context.Context, bw *wire.Writer, w io.WriteSeeker, offsets []uint64, i uint64) error {
	val, err := v.read(i)
	if err != nil {
		return err
	}
	defer v.rc.Dec(val) // release the read reference once serialized

	data, err := v.serde.Marshal(val)
	if err != nil {
		return fmt.Errorf("atomicvec: marshal element %d: %w", i, err)
	}

	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	offsets[i] = uint64(pos)

	if err := v.controller.AcquireIO(ctx, wire.EntryHeaderSize+len(data)); err != nil {
		return err
	}
	return bw.WriteBlob(data)
}

// Load rebuilds the vector from a snapshot produced by Save.
//
// The vector must be empty and not yet shared: Load pre-sizes the spine in
// a single unsafe pass and its workers store slots without CAS, which is
// only sound before any concurrent access begins.
//
// Decoding runs on one worker per available CPU (see WithLoadConcurrency).
// Workers take indices by striding, so with the payloads laid out
// sequentially on disk they advance through the file in lockstep and keep
// the page cache hot for each other. On return the cursor of f sits just
// past the last payload, so the caller can continue reading subsequent
// records from the same stream.
//
// A bad magic value fails before any vector state is mutated. Any short
// read is fatal to the call.
func (v *Vector[T]) Load(ctx context.Context, f ReadSeekerAt) error {
	start := time.Now()
	count, workers, err := v.load(ctx, f)
	if v.metrics != nil {
		v.metrics.RecordLoad(count, time.Since(start), err)
	}
	v.logger.LogLoad(ctx, count, workers, err)
	return err
}

func (v *Vector[T]) load(ctx context.Context, f ReadSeekerAt) (uint64, int, error) {
	if v.serde == nil {
		return 0, 0, ErrNoSerde
	}

	br := wire.NewReader(f)
	if err := br.ReadMagic(); err != nil {
		return 0, 0, err
	}
	count, err := br.ReadUint64()
	if err != nil {
		return 0, 0, err
	}
	offsets, err := br.ReadUint64Slice(count)
	if err != nil {
		return count, 0, err
	}

	if err := v.growUnsafe(count); err != nil {
		return count, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	workers := v.loadConcurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if uint64(workers) > count {
		workers = int(count)
	}

	// The worker that decodes the last element records where the payload
	// region ends, so the shared cursor can be advanced past it.
	var finalEnd atomic.Uint64

	g, ctx := errgroup.WithContext(ctx)
	for tid := 0; tid < workers; tid++ {
		tid := tid
		g.Go(func() error {
			var scratch []byte
			for i := uint64(tid); i < count; i += uint64(workers) {
				if err := ctx.Err(); err != nil {
					return err
				}

				data, err := wire.EntryAt(f, offsets[i], scratch)
				if err != nil {
					return err
				}
				scratch = data

				val, err := v.serde.Unmarshal(data)
				if err != nil {
					return fmt.Errorf("atomicvec: unmarshal element %d at offset %d: %w", i, offsets[i], err)
				}
				if val == nil {
					return fmt.Errorf("atomicvec: unmarshal element %d: nil value", i)
				}

				// Each index is owned by exactly one worker and nothing
				// else touches the vector during load, so a plain store
				// replaces the CAS publication of the append path.
				v.rc.Inc(val)
				v.locate(i).Store(val)

				if i == count-1 {
					finalEnd.Store(offsets[i] + wire.EntryHeaderSize + uint64(len(data)))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return count, workers, err
	}

	if _, err := f.Seek(int64(finalEnd.Load()), io.SeekStart); err != nil {
		return count, workers, err
	}
	return count, workers, nil
}

// SaveFile writes a snapshot to filename, atomically replacing any
// existing file on success.
func (v *Vector[T]) SaveFile(ctx context.Context, filename string) error {
	return wire.SaveToFile(filename, func(f *os.File) error {
		return v.Save(ctx, f)
	})
}

// LoadFile rebuilds the vector from a snapshot file written by SaveFile.
func (v *Vector[T]) LoadFile(ctx context.Context, filename string) error {
	return wire.LoadFromFile(filename, func(f *os.File) error {
		return v.Load(ctx, f)
	})
}
