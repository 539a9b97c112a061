package msg

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg/compress"
	"gopkg.in/mgo.v2/bson"
)

const defaultEncodeBufferSize = 256

// MaxMessageSize is the largest frame the codec will accept.
// Frames declaring a larger length are rejected as malformed
// before any allocation happens.
const MaxMessageSize = 48 * 1024 * 1024

const headerSize = 16

var (
	// ErrMalformedFrame occurs when a frame's declared length is
	// inconsistent with the bytes received.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownOpcode occurs when a frame declares an opcode the
	// codec does not implement.
	ErrUnknownOpcode = errors.New("unknown opcode")
)

// Encoder encodes messages.
type Encoder interface {
	// Encode encodes a number of messages to the writer.
	Encode(io.Writer, ...Message) error
}

// Decoder decodes messages.
type Decoder interface {
	// Decode decodes one message from the reader.
	Decode(io.Reader) (Message, error)
}

// Codec encodes and decodes messages.
type Codec interface {
	Encoder
	Decoder
}

// NewWireProtocolCodec creates a Codec for the binary message format.
func NewWireProtocolCodec() Codec {
	return &wireProtocolCodec{}
}

// NewCompressedWireProtocolCodec creates a Codec that wraps
// encoded messages in compressed frames and transparently
// unwraps compressed frames on decode.
func NewCompressedWireProtocolCodec(compressor compress.Compressor) Codec {
	return &wireProtocolCodec{compressor: compressor}
}

type wireProtocolCodec struct {
	compressor compress.Compressor
}

func (c *wireProtocolCodec) Decode(reader io.Reader) (Message, error) {
	lengthBytes := make([]byte, 4)
	_, err := io.ReadFull(reader, lengthBytes)
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message length")
	}

	length := readInt32(lengthBytes, 0)
	if length < headerSize || length > MaxMessageSize {
		return nil, fmt.Errorf("%w: declared length %d", ErrMalformedFrame, length)
	}

	b := make([]byte, length)
	copy(b, lengthBytes)

	_, err = io.ReadFull(reader, b[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return c.decode(b)
}

func (c *wireProtocolCodec) Encode(writer io.Writer, msgs ...Message) error {
	b := make([]byte, 0, defaultEncodeBufferSize)

	var err error
	for _, m := range msgs {
		b, err = c.encode(b, m)
		if err != nil {
			return err
		}
	}

	_, err = writer.Write(b)
	if err != nil {
		return internal.WrapError(err, "unable to encode messages")
	}
	return nil
}

func (c *wireProtocolCodec) encode(b []byte, m Message) ([]byte, error) {
	if c.compressor == nil {
		return encodeBody(b, m)
	}

	// compressed frame: the inner body is encoded without its
	// header, then wrapped with the outer header carrying the
	// original opcode.
	inner, err := encodeBody(nil, m)
	if err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	if err = c.compressor.Compress(inner[headerSize:], &compressed); err != nil {
		return nil, internal.WrapError(err, "unable to compress message body")
	}

	start := len(b)
	b = addHeader(b, 0, readInt32(inner, 4), readInt32(inner, 8), int32(compressedOpcode))
	b = addInt32(b, readInt32(inner, 12))               // original opcode
	b = addInt32(b, int32(len(inner)-headerSize))       // uncompressed size
	b = append(b, c.compressor.ID())                    // compressor id
	b = append(b, compressed.Bytes()...)
	setInt32(b, int32(start), int32(len(b)-start))
	return b, nil
}

func encodeBody(b []byte, m Message) ([]byte, error) {
	var err error
	start := len(b)

	switch typedM := m.(type) {
	case *Query:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(queryOpcode))
		b = addInt32(b, int32(typedM.Flags))
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, typedM.NumberToSkip)
		b = addInt32(b, typedM.NumberToReturn)
		b, err = addMarshalled(b, typedM.Query)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal query")
		}
		if typedM.ReturnFieldsSelector != nil {
			b, err = addMarshalled(b, typedM.ReturnFieldsSelector)
			if err != nil {
				return nil, internal.WrapError(err, "unable to marshal return fields selector")
			}
		}
	case *Insert:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(insertOpcode))
		b = addInt32(b, int32(typedM.Flags))
		b = addCString(b, typedM.FullCollectionName)
		for _, doc := range typedM.Documents {
			b, err = addMarshalled(b, doc)
			if err != nil {
				return nil, internal.WrapError(err, "unable to marshal document")
			}
		}
	case *Update:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(updateOpcode))
		b = addInt32(b, 0)
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, int32(typedM.Flags))
		b, err = addMarshalled(b, typedM.Selector)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal selector")
		}
		b, err = addMarshalled(b, typedM.Update)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal update")
		}
	case *Delete:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(deleteOpcode))
		b = addInt32(b, 0)
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, int32(typedM.Flags))
		b, err = addMarshalled(b, typedM.Selector)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal selector")
		}
	case *GetMore:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(getMoreOpcode))
		b = addInt32(b, 0)
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, typedM.NumberToReturn)
		b = addInt64(b, typedM.CursorID)
	case *KillCursors:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(killCursorsOpcode))
		b = addInt32(b, 0)
		b = addInt32(b, int32(len(typedM.CursorIDs)))
		for _, id := range typedM.CursorIDs {
			b = addInt64(b, id)
		}
	case *Reply:
		b = addHeader(b, 0, typedM.ReqID, typedM.RespTo, int32(replyOpcode))
		b = addInt32(b, int32(typedM.ResponseFlags))
		b = addInt64(b, typedM.CursorID)
		b = addInt32(b, typedM.StartingFrom)
		b = addInt32(b, typedM.NumberReturned)
		b = append(b, typedM.DocumentsBytes...)
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}

	setInt32(b, int32(start), int32(len(b)-start))
	return b, nil
}

func (c *wireProtocolCodec) decode(b []byte) (Message, error) {
	requestID := readInt32(b, 4)
	responseTo := readInt32(b, 8)
	op := opcode(readInt32(b, 12))
	body := b[headerSize:]

	if op == compressedOpcode {
		if len(body) < 9 {
			return nil, fmt.Errorf("%w: compressed frame truncated", ErrMalformedFrame)
		}
		op = opcode(readInt32(body, 0))
		uncompressedSize := readInt32(body, 4)
		compressorID := body[8]
		if uncompressedSize < 0 || uncompressedSize > MaxMessageSize {
			return nil, fmt.Errorf("%w: compressed frame declares %d uncompressed bytes", ErrMalformedFrame, uncompressedSize)
		}

		compressor, ok := compress.ByID(compressorID)
		if !ok {
			return nil, fmt.Errorf("unknown compressor id %d", compressorID)
		}

		uncompressed := make([]byte, uncompressedSize)
		if err := compressor.Decompress(bytes.NewReader(body[9:]), uncompressed); err != nil {
			return nil, internal.WrapError(err, "unable to decompress message body")
		}
		body = uncompressed
	}

	d := &bodyDecoder{body: body}

	switch op {
	case replyOpcode:
		reply := &Reply{ReqID: requestID, RespTo: responseTo}
		reply.ResponseFlags = ReplyFlags(d.int32())
		reply.CursorID = d.int64()
		reply.StartingFrom = d.int32()
		reply.NumberReturned = d.int32()
		reply.DocumentsBytes = d.rest()
		return reply, d.err
	case queryOpcode:
		q := &Query{ReqID: requestID}
		q.Flags = QueryFlags(d.int32())
		q.FullCollectionName = d.cstring()
		q.NumberToSkip = d.int32()
		q.NumberToReturn = d.int32()
		q.Query = d.document()
		if d.more() {
			q.ReturnFieldsSelector = d.document()
		}
		return q, d.err
	case insertOpcode:
		i := &Insert{ReqID: requestID}
		i.Flags = InsertFlags(d.int32())
		i.FullCollectionName = d.cstring()
		for d.more() {
			doc := d.document()
			if d.err != nil {
				break
			}
			i.Documents = append(i.Documents, doc)
		}
		return i, d.err
	case updateOpcode:
		u := &Update{ReqID: requestID}
		d.int32() // reserved
		u.FullCollectionName = d.cstring()
		u.Flags = UpdateFlags(d.int32())
		u.Selector = d.document()
		u.Update = d.document()
		return u, d.err
	case deleteOpcode:
		del := &Delete{ReqID: requestID}
		d.int32() // reserved
		del.FullCollectionName = d.cstring()
		del.Flags = DeleteFlags(d.int32())
		del.Selector = d.document()
		return del, d.err
	case getMoreOpcode:
		g := &GetMore{ReqID: requestID}
		d.int32() // reserved
		g.FullCollectionName = d.cstring()
		g.NumberToReturn = d.int32()
		g.CursorID = d.int64()
		return g, d.err
	case killCursorsOpcode:
		k := &KillCursors{ReqID: requestID}
		d.int32() // reserved
		n := d.int32()
		for i := int32(0); i < n && d.err == nil; i++ {
			k.CursorIDs = append(k.CursorIDs, d.int64())
		}
		return k, d.err
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
}

// bodyDecoder walks a message body, recording the first
// inconsistency between the declared layout and the bytes present.
type bodyDecoder struct {
	body []byte
	pos  int
	err  error
}

func (d *bodyDecoder) fail() {
	if d.err == nil {
		d.err = fmt.Errorf("%w: body truncated at offset %d", ErrMalformedFrame, d.pos)
	}
}

func (d *bodyDecoder) more() bool {
	return d.err == nil && d.pos < len(d.body)
}

func (d *bodyDecoder) int32() int32 {
	if d.pos+4 > len(d.body) {
		d.fail()
		return 0
	}
	v := readInt32(d.body, int32(d.pos))
	d.pos += 4
	return v
}

func (d *bodyDecoder) int64() int64 {
	if d.pos+8 > len(d.body) {
		d.fail()
		return 0
	}
	v := readInt64(d.body, int32(d.pos))
	d.pos += 8
	return v
}

func (d *bodyDecoder) cstring() string {
	for i := d.pos; i < len(d.body); i++ {
		if d.body[i] == 0 {
			s := string(d.body[d.pos:i])
			d.pos = i + 1
			return s
		}
	}
	d.fail()
	return ""
}

func (d *bodyDecoder) document() *bson.Raw {
	if d.pos+4 > len(d.body) {
		d.fail()
		return nil
	}
	n := int(readInt32(d.body, int32(d.pos)))
	if n < 5 || d.pos+n > len(d.body) {
		d.fail()
		return nil
	}
	raw := &bson.Raw{Kind: 0x03, Data: d.body[d.pos : d.pos+n]}
	d.pos += n
	return raw
}

func (d *bodyDecoder) rest() []byte {
	b := d.body[d.pos:]
	d.pos = len(d.body)
	return b
}

func addCString(b []byte, s string) []byte {
	b = append(b, []byte(s)...)
	return append(b, 0)
}

func addInt32(b []byte, i int32) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
}

func addInt64(b []byte, i int64) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24), byte(i>>32), byte(i>>40), byte(i>>48), byte(i>>56))
}

func addMarshalled(b []byte, data interface{}) ([]byte, error) {
	if data == nil {
		return append(b, 5, 0, 0, 0, 0), nil
	}

	if raw, ok := data.(*bson.Raw); ok && raw.Kind == 0x03 {
		return append(b, raw.Data...), nil
	}

	dataBytes, err := bson.Marshal(data)
	if err != nil {
		return nil, err
	}

	return append(b, dataBytes...), nil
}

func setInt32(b []byte, pos int32, i int32) {
	b[pos] = byte(i)
	b[pos+1] = byte(i >> 8)
	b[pos+2] = byte(i >> 16)
	b[pos+3] = byte(i >> 24)
}

func addHeader(b []byte, length, requestID, responseTo, opCode int32) []byte {
	b = addInt32(b, length)
	b = addInt32(b, requestID)
	b = addInt32(b, responseTo)
	return addInt32(b, opCode)
}

func readInt32(b []byte, pos int32) int32 {
	return (int32(b[pos+0])) |
		(int32(b[pos+1]) << 8) |
		(int32(b[pos+2]) << 16) |
		(int32(b[pos+3]) << 24)
}

func readInt64(b []byte, pos int32) int64 {
	return (int64(b[pos+0])) |
		(int64(b[pos+1]) << 8) |
		(int64(b[pos+2]) << 16) |
		(int64(b[pos+3]) << 24) |
		(int64(b[pos+4]) << 32) |
		(int64(b[pos+5]) << 40) |
		(int64(b[pos+6]) << 48) |
		(int64(b[pos+7]) << 56)
}
