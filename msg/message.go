package msg

import "sync/atomic"

var globalRequestID int32

// CurrentRequestID gets the current request id.
func CurrentRequestID() int32 {
	return atomic.LoadInt32(&globalRequestID)
}

// NextRequestID gets the next request id.
func NextRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 1)
}

type opcode int32

const (
	replyOpcode       opcode = 1
	updateOpcode      opcode = 2001
	insertOpcode      opcode = 2002
	queryOpcode       opcode = 2004
	getMoreOpcode     opcode = 2005
	deleteOpcode      opcode = 2006
	killCursorsOpcode opcode = 2007
	compressedOpcode  opcode = 2012
)

// Message represents a wire protocol message.
type Message interface {
	msg()
}

// Request is a message sent to the server.
type Request interface {
	Message
	RequestID() int32
}

// Response is a message received from the server.
type Response interface {
	Message
	ResponseTo() int32
}

func (m *Query) msg()       {}
func (m *Reply) msg()       {}
func (m *Insert) msg()      {}
func (m *Update) msg()      {}
func (m *Delete) msg()      {}
func (m *GetMore) msg()     {}
func (m *KillCursors) msg() {}

// RequestID implements the Request interface.
func (m *Query) RequestID() int32 { return m.ReqID }

// RequestID implements the Request interface.
func (m *Insert) RequestID() int32 { return m.ReqID }

// RequestID implements the Request interface.
func (m *Update) RequestID() int32 { return m.ReqID }

// RequestID implements the Request interface.
func (m *Delete) RequestID() int32 { return m.ReqID }

// RequestID implements the Request interface.
func (m *GetMore) RequestID() int32 { return m.ReqID }

// RequestID implements the Request interface.
func (m *KillCursors) RequestID() int32 { return m.ReqID }

// ResponseTo implements the Response interface.
func (m *Reply) ResponseTo() int32 { return m.RespTo }
