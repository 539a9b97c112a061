package conn

import (
	"context"
	"fmt"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"

	"gopkg.in/mgo.v2/bson"
)

// ExecuteCommand executes the message on the connection.
func ExecuteCommand(ctx context.Context, c Connection, request msg.Request, out interface{}) error {
	return ExecuteCommands(ctx, c, []msg.Request{request}, []interface{}{out})
}

// ExecuteCommands executes the messages on the connection.
func ExecuteCommands(ctx context.Context, c Connection, requests []msg.Request, out []interface{}) error {
	if len(requests) != len(out) {
		panic("invalid arguments. 'out' length must equal 'requests' length")
	}

	err := c.Write(ctx, requests...)
	if err != nil {
		return internal.WrapErrorf(err, "failed sending commands(%d)", len(requests))
	}

	var errors []error
	for i, req := range requests {
		resp, err := c.Read(ctx, req.RequestID())
		if err != nil {
			return internal.WrapErrorf(err, "failed receiving command response for %d", req.RequestID())
		}

		err = ReadCommandResponse(resp, out[i])
		if err != nil {
			errors = append(errors, err)
			continue
		}
	}

	return internal.MultiError(errors...)
}

// ReadCommandResponse interprets a reply to a command: it surfaces
// query failures and failed ok statuses as errors and otherwise
// decodes the single result document into out.
func ReadCommandResponse(resp msg.Response, out interface{}) error {
	switch typedResp := resp.(type) {
	case *msg.Reply:
		if typedResp.NumberReturned == 0 {
			return ErrNoDocCommandResponse
		}
		if typedResp.NumberReturned > 1 {
			return ErrMultiDocCommandResponse
		}

		if typedResp.ResponseFlags&msg.QueryFailure != 0 {
			// read first document as error
			var doc bson.D
			ok, err := typedResp.Iter().One(&doc)
			if err != nil {
				return NewCommandResponseError(fmt.Sprintf("failed to read command failure document: %v", err))
			}
			if !ok {
				return ErrUnknownCommandFailure
			}
			return &CommandFailureError{
				Msg:      "command failure",
				Response: doc,
			}
		}

		// check the command response for the ok field before
		// decoding into the user provided structure.
		var status struct {
			OK       int    `bson:"ok"`
			ErrMsg   string `bson:"errmsg"`
			Code     int32  `bson:"code"`
			CodeName string `bson:"codeName"`
		}
		ok, err := typedResp.Iter().One(&status)
		if err != nil {
			return NewCommandResponseError(fmt.Sprintf("failed to read command response document: %v", err))
		}
		if !ok {
			return ErrNoCommandResponse
		}

		if status.OK != 1 {
			errmsg := status.ErrMsg
			if errmsg == "" {
				errmsg = "command failed"
			}
			return &CommandError{
				Code:    status.Code,
				Message: errmsg,
				Name:    status.CodeName,
			}
		}

		ok, err = typedResp.Iter().One(out)
		if err != nil {
			return NewCommandResponseError(fmt.Sprintf("failed to read command response document: %v", err))
		}
		if !ok {
			return ErrNoCommandResponse
		}
	default:
		return fmt.Errorf("unsupported response message type: %T", typedResp)
	}

	return nil
}
