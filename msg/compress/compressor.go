package compress

import (
	"fmt"
	"io"
)

// Compressor handles compressing and decompressing bytes.
type Compressor interface {
	// ID is the wire identifier of the compressor.
	ID() uint8
	// Name is the name of the compressor as negotiated
	// during the handshake.
	Name() string
	// Compress compresses the bytes and writes them to the writer.
	Compress([]byte, io.Writer) error
	// Decompress reads the reader and fills the bytes, whose
	// length must equal the declared uncompressed size.
	Decompress(io.Reader, []byte) error
}

// ByID returns the compressor registered under the wire id.
func ByID(id uint8) (Compressor, bool) {
	switch id {
	case snappyID:
		return NewSnappyCompressor(), true
	case zlibID:
		return NewZLibCompressor(), true
	}
	return nil, false
}

// ByName returns the compressor with the given negotiated name.
func ByName(name string) (Compressor, error) {
	switch name {
	case "snappy":
		return NewSnappyCompressor(), nil
	case "zlib":
		return NewZLibCompressor(), nil
	}
	return nil, fmt.Errorf("unsupported compressor %q", name)
}
