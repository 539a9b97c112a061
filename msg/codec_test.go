package msg_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/rotorlabs/rotor-go-driver/msg"
	"github.com/rotorlabs/rotor-go-driver/msg/compress"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"
)

func roundTrip(t *testing.T, codec Codec, m Message) Message {
	t.Helper()

	var buf bytes.Buffer
	err := codec.Encode(&buf, m)
	require.NoError(t, err)

	decoded, err := codec.Decode(&buf)
	require.NoError(t, err)
	return decoded
}

func unmarshalRaw(t *testing.T, doc interface{}) bson.M {
	t.Helper()

	raw, ok := doc.(*bson.Raw)
	require.True(t, ok, "expected *bson.Raw but got %T", doc)

	var out bson.M
	require.NoError(t, raw.Unmarshal(&out))
	return out
}

func TestCodec_Query_roundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()
	query := &Query{
		ReqID:                NextRequestID(),
		Flags:                SlaveOK | NoCursorTimeout,
		FullCollectionName:   "db.coll",
		NumberToSkip:         4,
		NumberToReturn:       -1,
		Query:                bson.D{{Name: "x", Value: 1}},
		ReturnFieldsSelector: bson.D{{Name: "_id", Value: 1}},
	}

	decoded := roundTrip(t, codec, query).(*Query)

	require.Equal(t, query.ReqID, decoded.ReqID)
	require.Equal(t, query.Flags, decoded.Flags)
	require.Equal(t, query.FullCollectionName, decoded.FullCollectionName)
	require.Equal(t, query.NumberToSkip, decoded.NumberToSkip)
	require.Equal(t, query.NumberToReturn, decoded.NumberToReturn)
	require.Equal(t, bson.M{"x": 1}, unmarshalRaw(t, decoded.Query))
	require.Equal(t, bson.M{"_id": 1}, unmarshalRaw(t, decoded.ReturnFieldsSelector))
}

func TestCodec_Insert_roundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()
	insert := &Insert{
		ReqID:              NextRequestID(),
		Flags:              ContinueOnError,
		FullCollectionName: "db.coll",
		Documents: []interface{}{
			bson.D{{Name: "_id", Value: 1}},
			bson.D{{Name: "_id", Value: 2}},
		},
	}

	decoded := roundTrip(t, codec, insert).(*Insert)

	require.Equal(t, insert.FullCollectionName, decoded.FullCollectionName)
	require.Equal(t, insert.Flags, decoded.Flags)
	require.Len(t, decoded.Documents, 2)
	require.Equal(t, bson.M{"_id": 1}, unmarshalRaw(t, decoded.Documents[0]))
	require.Equal(t, bson.M{"_id": 2}, unmarshalRaw(t, decoded.Documents[1]))
}

func TestCodec_Update_roundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()
	update := &Update{
		ReqID:              NextRequestID(),
		FullCollectionName: "db.coll",
		Flags:              Upsert,
		Selector:           bson.D{{Name: "_id", Value: 1}},
		Update:             bson.D{{Name: "$set", Value: bson.D{{Name: "x", Value: 2}}}},
	}

	decoded := roundTrip(t, codec, update).(*Update)

	require.Equal(t, update.Flags, decoded.Flags)
	require.Equal(t, bson.M{"_id": 1}, unmarshalRaw(t, decoded.Selector))
	require.Equal(t, bson.M{"$set": bson.M{"x": 2}}, unmarshalRaw(t, decoded.Update))
}

func TestCodec_Delete_roundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()
	del := &Delete{
		ReqID:              NextRequestID(),
		FullCollectionName: "db.coll",
		Flags:              SingleRemove,
		Selector:           bson.D{{Name: "_id", Value: 1}},
	}

	decoded := roundTrip(t, codec, del).(*Delete)

	require.Equal(t, del.Flags, decoded.Flags)
	require.Equal(t, bson.M{"_id": 1}, unmarshalRaw(t, decoded.Selector))
}

func TestCodec_GetMoreAndKillCursors_roundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()

	getMore := &GetMore{
		ReqID:              NextRequestID(),
		FullCollectionName: "db.coll",
		NumberToReturn:     101,
		CursorID:           1<<40 + 7,
	}
	decodedGetMore := roundTrip(t, codec, getMore).(*GetMore)
	if diff := cmp.Diff(getMore, decodedGetMore); diff != "" {
		t.Fatalf("getMore did not survive the round trip (-want +got):\n%s", diff)
	}

	kill := &KillCursors{
		ReqID:     NextRequestID(),
		CursorIDs: []int64{42, 1 << 33},
	}
	decodedKill := roundTrip(t, codec, kill).(*KillCursors)
	if diff := cmp.Diff(kill, decodedKill); diff != "" {
		t.Fatalf("killCursors did not survive the round trip (-want +got):\n%s", diff)
	}
}

func TestCodec_Reply_roundTrip(t *testing.T) {
	t.Parallel()

	doc, err := bson.Marshal(bson.D{{Name: "ok", Value: 1}})
	require.NoError(t, err)

	codec := NewWireProtocolCodec()
	reply := &Reply{
		ReqID:          3,
		RespTo:         2,
		ResponseFlags:  CursorNotFound,
		CursorID:       77,
		NumberReturned: 1,
		DocumentsBytes: doc,
	}

	decoded := roundTrip(t, codec, reply).(*Reply)

	require.Equal(t, reply.RespTo, decoded.ResponseTo())
	require.Equal(t, reply.CursorID, decoded.CursorID)
	require.Equal(t, reply.ResponseFlags, decoded.ResponseFlags)

	var result bson.M
	found, err := decoded.Iter().One(&result)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, bson.M{"ok": 1}, result)
}

func TestCodec_Decode_rejectsBadLength(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()

	// declared length smaller than a header
	_, err := codec.Decode(bytes.NewReader([]byte{8, 0, 0, 0, 0, 0, 0, 0}))
	require.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)

	// declared length larger than the bytes that follow
	frame := []byte{64, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0}
	_, err = codec.Decode(bytes.NewReader(frame))
	require.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)
}

func TestCodec_Decode_rejectsTruncatedBody(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()
	var buf bytes.Buffer
	err := codec.Encode(&buf, &GetMore{ReqID: 1, FullCollectionName: "db.coll", CursorID: 9})
	require.NoError(t, err)

	// chop the cursor id off the end and fix up the length prefix
	frame := buf.Bytes()[:buf.Len()-8]
	frame[0] = byte(len(frame))

	_, err = codec.Decode(bytes.NewReader(frame))
	require.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)
}

func TestCodec_Decode_rejectsUnknownOpcode(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()
	frame := []byte{16, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 99, 0, 0, 0}
	_, err := codec.Decode(bytes.NewReader(frame))
	require.True(t, errors.Is(err, ErrUnknownOpcode), "got %v", err)
}

func TestCodec_compressed_roundTrip(t *testing.T) {
	t.Parallel()

	for _, compressor := range []compress.Compressor{
		compress.NewSnappyCompressor(),
		compress.NewZLibCompressor(),
	} {
		codec := NewCompressedWireProtocolCodec(compressor)
		query := &Query{
			ReqID:              NextRequestID(),
			FullCollectionName: "db.$cmd",
			NumberToReturn:     -1,
			Query:              bson.D{{Name: "ismaster", Value: 1}},
		}

		decoded := roundTrip(t, codec, query).(*Query)
		require.Equal(t, query.ReqID, decoded.ReqID)
		require.Equal(t, bson.M{"ismaster": 1}, unmarshalRaw(t, decoded.Query))

		// a plain codec decodes compressed frames too
		var buf bytes.Buffer
		require.NoError(t, codec.Encode(&buf, query))
		plain, err := NewWireProtocolCodec().Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, query.ReqID, plain.(*Query).ReqID)
	}
}

func TestNextRequestID_unique(t *testing.T) {
	t.Parallel()

	a := NextRequestID()
	b := NextRequestID()
	require.NotEqual(t, a, b)
	require.True(t, CurrentRequestID() >= b)
}
