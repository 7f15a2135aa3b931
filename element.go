package atomicvec

// Refcounter manipulates the reference count embedded in element type T.
//
// The vector owns one reference for every stored element: Append and Write
// call Inc on the incoming value, Read calls Inc on behalf of the caller,
// and overwritten or closed-out values are released with Dec once the
// vector can prove no reader still dereferences them. Implementations must
// be safe for concurrent use; in practice that means the count is an
// atomic embedded in T.
type Refcounter[T any] interface {
	// Inc adds a reference to v.
	Inc(v *T)
	// Dec drops a reference from v.
	Dec(v *T)
	// Count returns the current reference count of v.
	Count(v *T) int64
}

// Serde encodes elements for snapshot persistence.
//
// The vector treats the produced bytes as opaque: they are length-prefixed
// and written verbatim, and handed back verbatim on load. Implementations
// must be safe for concurrent use; Load decodes from multiple goroutines.
type Serde[T any] interface {
	// Marshal encodes v.
	Marshal(v *T) ([]byte, error)
	// Unmarshal decodes a value from data. data is only valid for the
	// duration of the call; implementations must copy what they keep.
	Unmarshal(data []byte) (*T, error)
}
