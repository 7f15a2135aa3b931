// Package wire implements the binary snapshot format shared by savers and
// loaders: a 4-byte magic, an unsigned 64-bit element count, a directory of
// absolute file offsets (one per element, written before any payload so the
// file supports random access without scanning), and then the payload
// region of length-prefixed opaque blobs in index order.
//
// All integers are little-endian.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer writes snapshot framing to an io.Writer.
type Writer struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewWriter creates a Writer for the snapshot format.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:         w,
		byteOrder: binary.LittleEndian, // Native on x86/ARM
	}
}

// WriteMagic writes the 4-byte magic constant.
func (bw *Writer) WriteMagic() error {
	return binary.Write(bw.w, bw.byteOrder, MagicNumber)
}

// WriteUint64 writes a single unsigned 64-bit value.
func (bw *Writer) WriteUint64(v uint64) error {
	return binary.Write(bw.w, bw.byteOrder, v)
}

// WriteUint64Slice writes a slice of unsigned 64-bit values back to back.
func (bw *Writer) WriteUint64Slice(s []uint64) error {
	if len(s) == 0 {
		return nil
	}
	return binary.Write(bw.w, bw.byteOrder, s)
}

// WriteBlob writes one length-prefixed payload.
func (bw *Writer) WriteBlob(data []byte) error {
	if err := bw.WriteUint64(uint64(len(data))); err != nil {
		return err
	}
	n, err := bw.w.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return ErrShortWrite
	}
	return nil
}

// Reader reads snapshot framing from an io.Reader.
type Reader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
}

// NewReader creates a Reader for the snapshot format.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:         r,
		byteOrder: binary.LittleEndian,
	}
}

// ReadMagic reads and validates the 4-byte magic constant.
func (br *Reader) ReadMagic() error {
	var magic uint32
	if err := binary.Read(br.r, br.byteOrder, &magic); err != nil {
		return err
	}
	if magic != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}
	return nil
}

// ReadUint64 reads a single unsigned 64-bit value.
func (br *Reader) ReadUint64() (uint64, error) {
	var v uint64
	if err := binary.Read(br.r, br.byteOrder, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadUint64Slice reads count unsigned 64-bit values.
func (br *Reader) ReadUint64Slice(count uint64) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	s := make([]uint64, count)
	if err := binary.Read(br.r, br.byteOrder, s); err != nil {
		return nil, err
	}
	return s, nil
}

// EntryAt reads the length-prefixed payload at the given absolute offset
// using positioned reads, leaving any shared file cursor untouched. The
// payload is read into buf when it fits, so workers can reuse a scratch
// buffer across entries; the returned slice aliases buf in that case.
func EntryAt(r io.ReaderAt, off uint64, buf []byte) ([]byte, error) {
	var lenBuf [EntryHeaderSize]byte
	if _, err := r.ReadAt(lenBuf[:], int64(off)); err != nil {
		return nil, fmt.Errorf("wire: entry length at offset %d: %w", off, err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if uint64(cap(buf)) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if n == 0 {
		return buf, nil
	}
	if _, err := r.ReadAt(buf, int64(off+EntryHeaderSize)); err != nil {
		return nil, fmt.Errorf("wire: entry payload at offset %d: %w", off, err)
	}
	return buf, nil
}
