package writeconcern

import (
	"errors"
	"time"

	"gopkg.in/mgo.v2/bson"
)

// WriteConcern describes the level of acknowledgement requested from
// the server for write operations. A write concern with w=0 makes
// writes fire-and-forget: the client reports success once the message
// is handed to the transport and any server-side error surfaces only
// on a later acknowledged operation over the same connection.
type WriteConcern struct {
	w        interface{}
	j        bool
	wTimeout time.Duration
}

// Option is an option to provide when creating a WriteConcern.
type Option func(concern *WriteConcern)

// New constructs a new WriteConcern.
func New(options ...Option) *WriteConcern {
	concern := &WriteConcern{}

	for _, option := range options {
		option(concern)
	}

	return concern
}

// W requests acknowledgement that write operations propagate to the
// specified number of instances. W(0) disables acknowledgement.
func W(w int) Option {
	return func(concern *WriteConcern) {
		concern.w = w
	}
}

// WMajority requests acknowledgement that write operations propagate
// to the majority of instances.
func WMajority() Option {
	return func(concern *WriteConcern) {
		concern.w = "majority"
	}
}

// WTagSet requests acknowledgement that write operations propagate to
// the tagged instances.
func WTagSet(tag string) Option {
	return func(concern *WriteConcern) {
		concern.w = tag
	}
}

// J requests acknowledgement that write operations are written to the
// journal.
func J(j bool) Option {
	return func(concern *WriteConcern) {
		concern.j = j
	}
}

// WTimeout specifies a time limit for the write concern.
func WTimeout(d time.Duration) Option {
	return func(concern *WriteConcern) {
		concern.wTimeout = d
	}
}

// Acknowledged indicates whether a write with this write concern
// requires a server acknowledgement. A nil write concern is
// acknowledged.
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil || wc.j {
		return true
	}

	if v, ok := wc.w.(int); ok && v == 0 {
		return false
	}

	return true
}

// IsValid reports whether the write concern is self consistent.
func (wc *WriteConcern) IsValid() bool {
	if wc == nil || !wc.j {
		return true
	}

	if v, ok := wc.w.(int); ok && v == 0 {
		return false
	}

	return true
}

// GetLastErrorCommand builds the acknowledgement command matching this
// write concern, sent on the same connection immediately after a
// write.
func (wc *WriteConcern) GetLastErrorCommand() (bson.D, error) {
	if !wc.IsValid() {
		return nil, errors.New("a write concern cannot have both w=0 and j=true")
	}

	cmd := bson.D{{Name: "getLastError", Value: 1}}
	if wc == nil {
		return cmd, nil
	}

	if wc.w != nil {
		cmd = append(cmd, bson.DocElem{Name: "w", Value: wc.w})
	}
	if wc.j {
		cmd = append(cmd, bson.DocElem{Name: "j", Value: wc.j})
	}
	if wc.wTimeout != 0 {
		cmd = append(cmd, bson.DocElem{Name: "wtimeout", Value: int64(wc.wTimeout / time.Millisecond)})
	}

	return cmd, nil
}
