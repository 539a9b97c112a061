package compress

import (
	"io"
	"io/ioutil"

	"github.com/golang/snappy"
	"github.com/rotorlabs/rotor-go-driver/internal"
)

const snappyID uint8 = 1

// NewSnappyCompressor creates a new compressor using the
// snappy block format.
func NewSnappyCompressor() Compressor {
	return &snappyCompressor{}
}

type snappyCompressor struct{}

func (c *snappyCompressor) ID() uint8 {
	return snappyID
}

func (c *snappyCompressor) Name() string {
	return "snappy"
}

func (c *snappyCompressor) Compress(in []byte, w io.Writer) error {
	_, err := w.Write(snappy.Encode(nil, in))
	return err
}

func (c *snappyCompressor) Decompress(r io.Reader, bytes []byte) error {
	compressed, err := ioutil.ReadAll(r)
	if err != nil {
		return internal.WrapError(err, "failed reading snappy block")
	}

	decoded, err := snappy.Decode(bytes, compressed)
	if err != nil {
		return internal.WrapError(err, "failed decompressing using snappy")
	}

	if len(decoded) != len(bytes) {
		copy(bytes, decoded)
	}
	return nil
}
