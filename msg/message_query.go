package msg

import (
	"errors"

	"gopkg.in/mgo.v2/bson"
)

// QueryFlags are the flags in a Query.
type QueryFlags int32

// QueryFlags constants.
const (
	_ QueryFlags = 1 << iota
	TailableCursor
	SlaveOK
	OplogReplay
	NoCursorTimeout
	AwaitData
	Exhaust
	Partial
)

// ReplyFlags are the flags in a Reply.
type ReplyFlags int32

// ReplyFlags constants.
const (
	CursorNotFound ReplyFlags = 1 << iota
	QueryFailure
)

// Query is a message sent to the server describing a query
// against a particular collection namespace. Commands are
// queries against the pseudo-collection "$cmd".
type Query struct {
	ReqID                int32
	Flags                QueryFlags
	FullCollectionName   string
	NumberToSkip         int32
	NumberToReturn       int32
	Query                interface{}
	ReturnFieldsSelector interface{}
}

// Reply is a message received from the server in answer to a
// Query or a GetMore.
type Reply struct {
	ReqID          int32
	RespTo         int32
	ResponseFlags  ReplyFlags
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	DocumentsBytes []byte
}

// Iter returns an iterator over the documents in the reply.
func (r *Reply) Iter() *ReplyIter {
	return &ReplyIter{data: r.DocumentsBytes}
}

// ReplyIter iterates the raw documents of a Reply in order.
type ReplyIter struct {
	data []byte
	pos  int
}

// NextBytes returns the next document as raw bson, or nil when
// the reply is exhausted.
func (i *ReplyIter) NextBytes() (*bson.Raw, error) {
	if i.pos >= len(i.data) {
		return nil, nil
	}

	if len(i.data)-i.pos < 4 {
		return nil, errors.New("malformed document: length header truncated")
	}

	n := int(readInt32(i.data, int32(i.pos)))
	if n < 5 || i.pos+n > len(i.data) {
		return nil, errors.New("malformed document: length exceeds reply")
	}

	raw := &bson.Raw{Kind: 0x03, Data: i.data[i.pos : i.pos+n]}
	i.pos += n
	return raw, nil
}

// Next unmarshals the next document into result. It returns false
// when the reply is exhausted.
func (i *ReplyIter) Next(result interface{}) (bool, error) {
	raw, err := i.NextBytes()
	if err != nil || raw == nil {
		return false, err
	}

	if err := raw.Unmarshal(result); err != nil {
		return false, err
	}
	return true, nil
}

// One unmarshals the first document into result. It returns false
// when the reply holds no documents.
func (i *ReplyIter) One(result interface{}) (bool, error) {
	return i.Next(result)
}
