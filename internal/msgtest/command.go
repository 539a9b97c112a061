package msgtest

import (
	"bytes"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/msg"
)

// CreateCommandReply builds a reply message carrying the given command
// result document. It round trips the reply through the wire codec so
// the document bytes look exactly as they would coming off the wire.
func CreateCommandReply(doc interface{}) *msg.Reply {
	reply := &msg.Reply{
		NumberReturned: 1,
	}

	docBytes, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	reply.DocumentsBytes = docBytes

	codec := msg.NewWireProtocolCodec()

	var buf bytes.Buffer
	if err := codec.Encode(&buf, reply); err != nil {
		panic(err)
	}

	decoded, err := codec.Decode(&buf)
	if err != nil {
		panic(err)
	}
	return decoded.(*msg.Reply)
}

// CreateCommandErrorReply builds a reply whose command result carries
// a failed ok status.
func CreateCommandErrorReply(code int32, errmsg, codeName string) *msg.Reply {
	return CreateCommandReply(struct {
		OK       int    `bson:"ok"`
		Code     int32  `bson:"code"`
		ErrMsg   string `bson:"errmsg"`
		CodeName string `bson:"codeName,omitempty"`
	}{0, code, errmsg, codeName})
}

// CreateGLEReply builds a getLastError reply.
func CreateGLEReply(n int, updatedExisting bool, errStr string, code int32) *msg.Reply {
	return CreateCommandReply(struct {
		OK              int    `bson:"ok"`
		N               int    `bson:"n"`
		UpdatedExisting bool   `bson:"updatedExisting"`
		Err             string `bson:"err,omitempty"`
		Code            int32  `bson:"code,omitempty"`
	}{1, n, updatedExisting, errStr, code})
}
