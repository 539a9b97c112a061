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

func TestMongoDBCRAuthenticator_Fails(t *testing.T) {
	t.Parallel()

	authenticator := MongoDBCRAuthenticator{
		DB:       "source",
		Username: "user",
		Password: "pencil",
	}

	subject := &conntest.MockConnection{}
	subject.ResponseQ(
		msgtest.CreateCommandReply(bson.D{
			{Name: "ok", Value: 1},
			{Name: "nonce", Value: "2375531c32080ae8"},
		}),
		msgtest.CreateCommandReply(bson.D{{Name: "ok", Value: 0}}),
	)

	err := authenticator.Auth(context.Background(), subject)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unable to authenticate using mechanism \"MONGODB-CR\"")
}

func TestMongoDBCRAuthenticator_Succeeds(t *testing.T) {
	t.Parallel()

	authenticator := MongoDBCRAuthenticator{
		DB:       "source",
		Username: "user",
		Password: "pencil",
	}

	subject := &conntest.MockConnection{}
	subject.ResponseQ(
		msgtest.CreateCommandReply(bson.D{
			{Name: "ok", Value: 1},
			{Name: "nonce", Value: "2375531c32080ae8"},
		}),
		msgtest.CreateCommandReply(bson.D{{Name: "ok", Value: 1}}),
	)

	err := authenticator.Auth(context.Background(), subject)
	require.NoError(t, err)

	sent := subject.Sent()
	require.Len(t, sent, 2)

	getNonceRequest := sent[0].(*msg.Query)
	require.Equal(t, bson.D{{Name: "getnonce", Value: 1}}, getNonceRequest.Query)
	require.Equal(t, "source.$cmd", getNonceRequest.FullCollectionName)

	authenticateRequest := sent[1].(*msg.Query)
	require.Equal(t, bson.D{
		{Name: "authenticate", Value: 1},
		{Name: "user", Value: "user"},
		{Name: "nonce", Value: "2375531c32080ae8"},
		{Name: "key", Value: "21742f26431831d5cfca035a08c5bdf6"},
	}, authenticateRequest.Query)
}
