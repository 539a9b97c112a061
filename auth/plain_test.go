package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	. "github.com/rotorlabs/rotor-go-driver/auth"
	"github.com/rotorlabs/rotor-go-driver/internal/conntest"
	"github.com/rotorlabs/rotor-go-driver/internal/msgtest"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

func TestPlainAuthenticator_Succeeds(t *testing.T) {
	t.Parallel()

	authenticator := PlainAuthenticator{
		DB:       "$external",
		Username: "user",
		Password: "pencil",
	}

	subject := &conntest.MockConnection{}
	subject.ResponseQ(msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: []byte{}},
		{Name: "done", Value: true},
	}))

	err := authenticator.Auth(context.Background(), subject)
	require.NoError(t, err)

	sent := subject.Sent()
	require.Len(t, sent, 1)

	saslStartRequest := sent[0].(*msg.Query)
	require.Equal(t, "$external.$cmd", saslStartRequest.FullCollectionName)
	require.Equal(t, bson.D{
		{Name: "saslStart", Value: 1},
		{Name: "mechanism", Value: "PLAIN"},
		{Name: "payload", Value: []byte("\x00user\x00pencil")},
	}, saslStartRequest.Query)
}

func TestPlainAuthenticator_Extra_server_challenge(t *testing.T) {
	t.Parallel()

	authenticator := PlainAuthenticator{
		Username: "user",
		Password: "pencil",
	}

	subject := &conntest.MockConnection{}
	subject.ResponseQ(msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: []byte("extra")},
		{Name: "done", Value: false},
	}))

	err := authenticator.Auth(context.Background(), subject)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected server challenge")
}
