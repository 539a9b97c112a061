package ops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/internal/wiretest"
	"github.com/rotorlabs/rotor-go-driver/model"
	"github.com/rotorlabs/rotor-go-driver/ops"
)

// connServer hands out the same connection for every operation,
// ignoring the pool style close.
type connServer struct {
	c conn.Connection
}

func (s *connServer) Connection(_ context.Context) (conn.Connection, error) {
	return &unclosableConn{s.c}, nil
}

type unclosableConn struct {
	conn.Connection
}

func (c *unclosableConn) Close() error {
	return nil
}

// poolServer draws connections from a real pool against a wiretest
// server.
type poolServer struct {
	pool *conn.Pool
}

func (s *poolServer) Connection(ctx context.Context) (conn.Connection, error) {
	return s.pool.Get(ctx)
}

func startServerAndPool(t *testing.T) (*wiretest.Server, ops.Server) {
	server := wiretest.NewServer()
	require.NoError(t, server.Start())
	t.Cleanup(server.Close)

	pool := conn.NewPool(4, conn.OpeningFactory(conn.New, model.Addr(server.Addr())))
	t.Cleanup(pool.Close)

	return server, &poolServer{pool}
}
