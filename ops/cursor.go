package ops

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

// ErrCursorNotFound occurs when requesting more results for a cursor
// the server no longer knows, either because it timed out or because
// it was killed.
var ErrCursorNotFound = errors.New("cursor not found")

// Cursor instances iterate a stream of documents. Each document is
// decoded into the result according to the rules of the bson package.
// A typical usage of the Cursor interface would be:
//
//	cursor, _ := ...  // get a cursor from some operation
//	var doc bson.D
//	for cursor.Next(ctx, &doc) {
//		fmt.Println(doc)
//	}
//	err := cursor.Close(ctx)
type Cursor interface {
	// Next gets the next result from the cursor. It returns true if
	// there were no errors and there is a next result. Documents
	// already buffered on the client are returned without I/O.
	Next(context.Context, interface{}) bool

	// Each hands every result document to fn in order, fetching
	// batches as needed. Iteration stops early when fn returns
	// false, which also closes the cursor.
	Each(context.Context, func(*bson.Raw) bool) error

	// Err returns the error status of the cursor.
	Err() error

	// Close closes the cursor. Closing an open server cursor is best
	// effort: a failure is logged, not returned, and the cursor is
	// never killed twice.
	Close(context.Context) error
}

// NewExhaustedCursor creates a cursor that is out of results.
func NewExhaustedCursor() Cursor {
	return &cursorImpl{}
}

func newCursor(reply *msg.Reply, ns Namespace, batchSize, limit int32, server Server) (Cursor, error) {
	c := &cursorImpl{
		namespace: ns,
		batchSize: batchSize,
		limit:     limit,
		cursorID:  reply.CursorID,
		server:    server,
	}
	c.fillBatch(reply)
	return c, c.err
}

type cursorImpl struct {
	namespace    Namespace
	batchSize    int32
	limit        int32
	seen         int32
	currentBatch []*bson.Raw
	current      int
	cursorID     int64
	err          error
	server       Server
}

func (c *cursorImpl) Next(ctx context.Context, result interface{}) bool {
	raw := c.nextDoc(ctx)
	if raw == nil {
		return false
	}

	if err := raw.Unmarshal(result); err != nil {
		c.err = err
		return false
	}
	return true
}

func (c *cursorImpl) Each(ctx context.Context, fn func(*bson.Raw) bool) error {
	for {
		raw := c.nextDoc(ctx)
		if raw == nil {
			return c.err
		}
		if !fn(raw) {
			return c.Close(ctx)
		}
	}
}

func (c *cursorImpl) Err() error {
	return c.err
}

func (c *cursorImpl) Close(ctx context.Context) error {
	c.currentBatch = nil
	c.current = 0

	if c.cursorID == 0 {
		return c.err
	}
	cursorID := c.cursorID
	c.cursorID = 0

	err := KillCursors(ctx, c.server, []int64{cursorID})
	if err != nil {
		logrus.WithError(err).WithField("cursorId", cursorID).
			Warn("unable to kill server side cursor")
	}

	return c.err
}

// nextDoc returns the next raw document, fetching another batch when
// the buffer runs out and the server cursor is still open.
func (c *cursorImpl) nextDoc(ctx context.Context) *bson.Raw {
	if c.err != nil {
		return nil
	}
	if c.limit > 0 && c.seen >= c.limit {
		c.err = c.Close(ctx)
		return nil
	}

	if c.current >= len(c.currentBatch) {
		if c.cursorID == 0 {
			return nil
		}
		c.getMore(ctx)
		if c.err != nil || c.current >= len(c.currentBatch) {
			return nil
		}
	}

	raw := c.currentBatch[c.current]
	c.current++
	c.seen++
	return raw
}

func (c *cursorImpl) getMore(ctx context.Context) {
	request := &msg.GetMore{
		ReqID:              msg.NextRequestID(),
		FullCollectionName: c.namespace.FullName(),
		NumberToReturn:     c.batchSize,
		CursorID:           c.cursorID,
	}

	connection, err := c.server.Connection(ctx)
	if err != nil {
		c.err = internal.WrapErrorf(err, "unable to get a connection to get more for cursor %d", c.cursorID)
		return
	}
	defer connection.Close()

	if err = connection.Write(ctx, request); err != nil {
		c.err = internal.WrapErrorf(err, "unable to get more for cursor %d", c.cursorID)
		return
	}

	resp, err := connection.Read(ctx, request.RequestID())
	if err != nil {
		c.err = internal.WrapErrorf(err, "unable to get more for cursor %d", c.cursorID)
		return
	}

	reply, ok := resp.(*msg.Reply)
	if !ok {
		c.err = errors.New("unknown response message type")
		return
	}

	if reply.ResponseFlags&msg.CursorNotFound != 0 {
		c.cursorID = 0
		c.err = ErrCursorNotFound
		return
	}

	c.cursorID = reply.CursorID
	c.fillBatch(reply)
}

func (c *cursorImpl) fillBatch(reply *msg.Reply) {
	c.currentBatch = c.currentBatch[:0]
	c.current = 0

	iter := reply.Iter()
	for {
		raw, err := iter.NextBytes()
		if err != nil {
			c.err = err
			return
		}
		if raw == nil {
			return
		}
		c.currentBatch = append(c.currentBatch, raw)
	}
}
