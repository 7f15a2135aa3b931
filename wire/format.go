package wire

import "errors"

const (
	// MagicNumber identifies atomicvec snapshot files. The value is fixed
	// by the on-disk format; files written by other implementations of the
	// format carry the same constant.
	MagicNumber uint32 = 0x04081977

	// HeaderSize is the byte length of the fixed header: the 4-byte magic
	// followed by the unsigned 64-bit element count.
	HeaderSize = 4 + 8

	// EntryHeaderSize is the byte length of the unsigned 64-bit length
	// prefix in front of every payload blob.
	EntryHeaderSize = 8
)

var (
	// ErrInvalidMagic is returned when a snapshot does not start with
	// MagicNumber.
	ErrInvalidMagic = errors.New("wire: invalid magic number")
	// ErrShortWrite is returned when a write lands fewer bytes than
	// requested without an underlying error.
	ErrShortWrite = errors.New("wire: short write")
)
