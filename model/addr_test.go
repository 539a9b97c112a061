package model_test

import (
	"testing"

	"github.com/rotorlabs/rotor-go-driver/model"
	"github.com/stretchr/testify/require"
)

func TestAddr_Canonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       model.Addr
		expected model.Addr
	}{
		{"localhost", "localhost:27017"},
		{"localhost:27017", "localhost:27017"},
		{"LOCALHOST:28017", "localhost:28017"},
		{"10.0.0.4", "10.0.0.4:27017"},
		{"[::1]", "[::1]:27017"},
		{"[::1]:28017", "[::1]:28017"},
		{"[fe80::1%lo0]", "[fe80::1%lo0]:27017"},
		{"/tmp/db.sock", "/tmp/db.sock"},
	}

	for _, test := range tests {
		require.Equal(t, test.expected, test.in.Canonicalize())
	}
}

func TestAddr_Network(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tcp", model.Addr("localhost:27017").Network())
	require.Equal(t, "tcp", model.Addr("[::1]:27017").Network())
	require.Equal(t, "unix", model.Addr("/tmp/db.sock").Network())
}
