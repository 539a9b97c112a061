package ops

import (
	"context"
	"errors"
	"strings"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
	"github.com/rotorlabs/rotor-go-driver/writeconcern"
)

// WriteResult is the server acknowledgement of a write operation. It
// is nil for unacknowledged writes.
type WriteResult struct {
	N               int
	UpdatedExisting bool
	UpsertedID      interface{}
}

// WriteError is a write failure reported by the server on
// acknowledgement.
type WriteError struct {
	Code int32
	Msg  string
}

func (e *WriteError) Error() string {
	return e.Msg
}

// IsDuplicateKey returns whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		return false
	}
	switch writeErr.Code {
	case 11000, 11001, 12582:
		return true
	}
	return strings.Contains(writeErr.Msg, "E11000")
}

// executeWrite sends a write message. For acknowledged write concerns
// the acknowledgement command travels in the same flush and its reply
// carries the outcome; for w=0 nothing is read back and the write is
// reported successful as soon as it is handed to the transport.
func executeWrite(ctx context.Context, s Server, db string, request msg.Request, wc *writeconcern.WriteConcern) (*WriteResult, error) {
	c, err := s.Connection(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if !wc.Acknowledged() {
		if err = c.Write(ctx, request); err != nil {
			return nil, internal.WrapError(err, "failed sending write")
		}
		return nil, nil
	}

	gleCmd, err := wc.GetLastErrorCommand()
	if err != nil {
		return nil, err
	}
	gleRequest := msg.NewCommand(msg.NextRequestID(), db, false, gleCmd)

	if err = c.Write(ctx, request, gleRequest); err != nil {
		return nil, internal.WrapError(err, "failed sending write")
	}

	resp, err := c.Read(ctx, gleRequest.RequestID())
	if err != nil {
		return nil, internal.WrapError(err, "failed receiving write acknowledgement")
	}

	var gleResult internal.GetLastErrorResult
	if err = conn.ReadCommandResponse(resp, &gleResult); err != nil {
		return nil, internal.WrapError(err, "failed reading write acknowledgement")
	}

	if gleResult.Err != "" {
		return nil, &WriteError{Code: gleResult.Code, Msg: gleResult.Err}
	}

	return &WriteResult{
		N:               gleResult.N,
		UpdatedExisting: gleResult.UpdatedExisting,
		UpsertedID:      gleResult.UpsertedID,
	}, nil
}
