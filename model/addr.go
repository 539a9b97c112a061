package model

import (
	"net"
	"strings"
)

const defaultPort = "27017"

// Addr is the address of a server. It can be a host:port pair,
// an IPv6 literal in brackets with a port, or a unix socket path.
type Addr string

// Network returns the network of the address.
func (a Addr) Network() string {
	if strings.HasSuffix(string(a), "sock") {
		return "unix"
	}
	return "tcp"
}

// String returns the canonical form of the address.
func (a Addr) String() string {
	return string(a)
}

// Canonicalize lowercases the address and applies the default
// port when none is present.
func (a Addr) Canonicalize() Addr {
	s := strings.ToLower(string(a))
	if a.Network() == "unix" {
		return Addr(s)
	}

	_, _, err := net.SplitHostPort(s)
	if err != nil && strings.Contains(err.Error(), "missing port in address") {
		s = net.JoinHostPort(strings.Trim(s, "[]"), defaultPort)
	}

	return Addr(s)
}
