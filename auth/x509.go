package auth

import (
	"context"
	"errors"

	"gopkg.in/mgo.v2/bson"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/msg"
)

// MongoDBX509 is the mechanism name for MONGODB-X509.
const MongoDBX509 = "MONGODB-X509"

func newMongoDBX509Authenticator(cred *Cred) (Authenticator, error) {
	if cred.PasswordSet {
		return nil, newError(errors.New("password cannot be used"), MongoDBX509)
	}
	return &MongoDBX509Authenticator{User: cred.Username}, nil
}

// MongoDBX509Authenticator uses X.509 certificates over TLS to authenticate a connection.
type MongoDBX509Authenticator struct {
	User string
}

// Auth authenticates the connection. The username is the certificate
// subject and may be omitted on servers recent enough to derive it
// from the presented certificate.
func (a *MongoDBX509Authenticator) Auth(ctx context.Context, c conn.Connection) error {
	authRequestDoc := bson.D{
		{Name: "authenticate", Value: 1},
		{Name: "mechanism", Value: MongoDBX509},
	}

	if c.Model() != nil && c.Model().WireVersion.Max < 5 {
		authRequestDoc = append(authRequestDoc, bson.DocElem{Name: "user", Value: a.User})
	}

	authRequest := msg.NewCommand(
		msg.NextRequestID(),
		externalAuthDB,
		true,
		authRequestDoc,
	)
	err := conn.ExecuteCommand(ctx, c, authRequest, &bson.D{})
	if err != nil {
		return newError(err, MongoDBX509)
	}

	return nil
}
