// Package atomicvec provides a grow-only vector of reference-counted
// handles that many goroutines can append to, read from, and overwrite
// without reader/writer locks.
//
// # Quick Start
//
//	vec := atomicvec.New[blob.Blob](blob.RC{}, atomicvec.WithSerde[blob.Blob](blob.Serde{}))
//	defer vec.Close()
//
//	idx, _ := vec.Append(blob.FromString("hello"))
//	val, _ := vec.Read(idx)
//	fmt.Println(val.String())
//	vec.Release(val)
//
// # Concurrency Model
//
// Append claims its slot with a single CAS and publishes it by advancing
// the size counter, so a reader that observes an index below Size always
// sees a fully published value. Read is lock-free: it brackets the slot
// load with a striped occupancy barrier instead of taking a lock. Write
// swaps the slot, then waits for the barrier to drain before releasing the
// old value, which is the only blocking step in the whole API.
//
// The vector only grows. There is no delete, no shrink, and no iteration
// primitive; indices handed out by Append stay valid for the lifetime of
// the vector.
//
// # Element Contract
//
// Elements are pointer handles. The element type supplies a Refcounter to
// manage the count embedded in the handle and, when snapshots are needed, a
// Serde to encode the payload. The blob subpackage ships a ready-made
// implementation for byte payloads with optional compression.
//
// # Snapshots
//
// Save persists every element visible at the moment of the call into a
// random-access file layout; Load rebuilds a fresh vector from it using one
// decoder goroutine per core. See the wire subpackage for the format.
package atomicvec
