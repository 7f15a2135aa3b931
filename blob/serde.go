package blob

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload encoding used by Serde.
type Compression uint8

const (
	// None stores payloads verbatim.
	None Compression = iota
	// S2 compresses payloads with the S2 block format.
	S2
	// LZ4 compresses payloads with the LZ4 frame format.
	LZ4
)

// Serde encodes and decodes Blob payloads for snapshot persistence.
//
// Encoded bytes are self-describing: a one-byte compression tag precedes
// the payload, so snapshots written with one compression setting decode
// under any other. The container treats the result as opaque bytes, so
// compression never leaks into the snapshot file layout.
type Serde struct {
	// Compression selects the encoding for Marshal. Unmarshal accepts
	// every encoding regardless of this setting.
	Compression Compression
}

// Marshal implements the container's serialization contract.
func (s Serde) Marshal(b *Blob) ([]byte, error) {
	switch s.Compression {
	case None:
		out := make([]byte, 1+len(b.data))
		out[0] = byte(None)
		copy(out[1:], b.data)
		return out, nil

	case S2:
		out := make([]byte, 1+s2.MaxEncodedLen(len(b.data)))
		out[0] = byte(S2)
		enc := s2.Encode(out[1:], b.data)
		return out[:1+len(enc)], nil

	case LZ4:
		var buf bytes.Buffer
		buf.WriteByte(byte(LZ4))
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(b.data); err != nil {
			return nil, fmt.Errorf("blob: lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("blob: lz4 compress: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("blob: unknown compression %d", s.Compression)
	}
}

// Unmarshal implements the container's deserialization contract.
func (s Serde) Unmarshal(data []byte) (*Blob, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("blob: empty payload")
	}
	tag, payload := Compression(data[0]), data[1:]

	switch tag {
	case None:
		out := make([]byte, len(payload))
		copy(out, payload)
		return New(out), nil

	case S2:
		out, err := s2.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("blob: s2 decompress: %w", err)
		}
		return New(out), nil

	case LZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("blob: lz4 decompress: %w", err)
		}
		return New(out), nil

	default:
		return nil, fmt.Errorf("blob: unknown compression tag %d", tag)
	}
}
