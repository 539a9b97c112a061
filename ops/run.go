package ops

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

// Run executes an arbitrary command against the given database.
func Run(ctx context.Context, s Server, db string, command interface{}, result interface{}) error {
	request := msg.NewCommand(
		msg.NextRequestID(),
		db,
		true, // slaveOk: a single server is always the writable one
		command,
	)

	c, err := s.Connection(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	return conn.ExecuteCommand(ctx, c, request, result)
}
