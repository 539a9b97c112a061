package auth

import (
	"context"

	"github.com/xdg/scram"
	"github.com/xdg/stringprep"

	"github.com/rotorlabs/rotor-go-driver/conn"
)

// SCRAMSHA256 is the mechanism name for SCRAM-SHA-256.
const SCRAMSHA256 = "SCRAM-SHA-256"

func newScramSHA256Authenticator(cred *Cred) (Authenticator, error) {
	passprep, err := stringprep.SASLprep.Prepare(cred.Password)
	if err != nil {
		return nil, newError(err, SCRAMSHA256)
	}
	client, err := scram.SHA256.NewClientUnprepped(cred.Username, passprep, "")
	if err != nil {
		return nil, newError(err, SCRAMSHA256)
	}
	client.WithMinIterations(4096)
	return &ScramSHA256Authenticator{
		DB:     cred.Source,
		client: client,
	}, nil
}

// ScramSHA256Authenticator uses the SCRAM-SHA-256 algorithm over SASL to authenticate a connection.
type ScramSHA256Authenticator struct {
	DB     string
	client *scram.Client
}

// Auth authenticates the connection.
func (a *ScramSHA256Authenticator) Auth(ctx context.Context, c conn.Connection) error {
	adapter := &scramSaslAdapter{conversation: a.client.NewConversation()}
	return conductSaslConversation(ctx, c, a.DB, adapter)
}

type scramSaslAdapter struct {
	conversation *scram.ClientConversation
}

func (a *scramSaslAdapter) Start() (string, []byte, error) {
	step, err := a.conversation.Step("")
	if err != nil {
		return SCRAMSHA256, nil, err
	}
	return SCRAMSHA256, []byte(step), nil
}

func (a *scramSaslAdapter) Next(challenge []byte) ([]byte, error) {
	step, err := a.conversation.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	return []byte(step), nil
}

func (a *scramSaslAdapter) Completed() bool {
	return a.conversation.Done()
}
