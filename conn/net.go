package conn

import (
	"context"
	"net"
)

// Dialer dials a server according to the network and address.
type Dialer func(ctx context.Context, dialer *net.Dialer, network, address string) (net.Conn, error)

func dialWithoutTLS(ctx context.Context, dialer *net.Dialer, network, address string) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
	}

	return conn, nil
}
