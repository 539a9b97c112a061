package ops

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/conn"
)

// Server is the source of connections for operations. Connections
// obtained from it are returned by closing them.
type Server interface {
	// Connection gets a connection to use.
	Connection(context.Context) (conn.Connection, error)
}
