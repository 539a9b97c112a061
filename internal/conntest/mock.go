package conntest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/model"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

// MockConnection is a mock connection. Its zero value is a usable,
// alive connection. Responses queued with ResponseQ are handed out by
// Read in order, with their ResponseTo fixed up to match the
// requested id.
type MockConnection struct {
	Dead                bool
	ReadErr             error
	WriteErr            error
	SkipResponseToFixup bool

	lock      sync.Mutex
	closed    bool
	sent      []msg.Request
	responseQ []*msg.Reply
}

// Alive returns whether a connection is alive.
func (c *MockConnection) Alive() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return !c.closed && !c.Dead
}

// Close closes a connection.
func (c *MockConnection) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	return nil
}

// MarkDead marks the connection as dead.
func (c *MockConnection) MarkDead() {
	c.Dead = true
}

// Model gets a description of the connection.
func (c *MockConnection) Model() *model.Conn {
	return &model.Conn{}
}

// Expired returns whether the connection has expired.
func (c *MockConnection) Expired() bool {
	return !c.Alive()
}

// Read reads a response for the request with the given id.
func (c *MockConnection) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if len(c.responseQ) == 0 {
		return nil, fmt.Errorf("no response queued for request %d", responseTo)
	}

	resp := c.responseQ[0]
	c.responseQ = c.responseQ[1:]
	if !c.SkipResponseToFixup {
		resp.RespTo = responseTo
	}
	return resp, nil
}

// ResponseQ queues up responses to be returned from Read.
func (c *MockConnection) ResponseQ(replies ...*msg.Reply) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.responseQ = append(c.responseQ, replies...)
}

// Sent returns the requests written so far.
func (c *MockConnection) Sent() []msg.Request {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]msg.Request(nil), c.sent...)
}

// Write writes requests to the connection.
func (c *MockConnection) Write(ctx context.Context, reqs ...msg.Request) error {
	if c.WriteErr != nil {
		return c.WriteErr
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.sent = append(c.sent, reqs...)
	return nil
}

var _ conn.Connection = (*MockConnection)(nil)
