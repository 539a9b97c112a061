package ops

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

// KillCursors tells the server to discard the given cursors. The
// server sends no reply.
func KillCursors(ctx context.Context, s Server, cursorIDs []int64) error {
	request := &msg.KillCursors{
		ReqID:     msg.NextRequestID(),
		CursorIDs: cursorIDs,
	}

	c, err := s.Connection(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err = c.Write(ctx, request); err != nil {
		return internal.WrapError(err, "failed to execute killCursors")
	}

	return nil
}
