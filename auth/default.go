package auth

import (
	"context"

	"github.com/rotorlabs/rotor-go-driver/conn"
)

func newDefaultAuthenticator(cred *Cred) (Authenticator, error) {
	return &DefaultAuthenticator{
		Cred: cred,
	}, nil
}

// DefaultAuthenticator picks a mechanism based on what the server
// advertises: SCRAM-SHA-256 when listed in saslSupportedMechs,
// SCRAM-SHA-1 on servers that speak it, MONGODB-CR otherwise.
type DefaultAuthenticator struct {
	Cred *Cred
}

// Auth authenticates the connection.
func (a *DefaultAuthenticator) Auth(ctx context.Context, c conn.Connection) error {
	factory := newMongoDBCRAuthenticator

	if desc := c.Model(); desc != nil {
		if desc.WireVersion.Max >= 3 {
			factory = newScramSHA1Authenticator
		}
		for _, mech := range desc.SaslSupportedMechs {
			if mech == SCRAMSHA256 {
				factory = newScramSHA256Authenticator
				break
			}
		}
	}

	actual, err := factory(a.Cred)
	if err != nil {
		return err
	}

	return actual.Auth(ctx, c)
}
