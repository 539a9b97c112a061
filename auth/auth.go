package auth

import (
	"context"
	"fmt"

	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/model"
)

const defaultAuthDB = "admin"
const externalAuthDB = "$external"

// Cred is a set of credentials for a mechanism.
type Cred struct {
	Source      string
	Username    string
	Password    string
	PasswordSet bool
	Props       map[string]string
}

// AuthenticatorFactory constructs an authenticator.
type AuthenticatorFactory func(cred *Cred) (Authenticator, error)

var authFactories = make(map[string]AuthenticatorFactory)

func init() {
	RegisterAuthenticatorFactory("", newDefaultAuthenticator)
	RegisterAuthenticatorFactory(SCRAMSHA1, newScramSHA1Authenticator)
	RegisterAuthenticatorFactory(SCRAMSHA256, newScramSHA256Authenticator)
	RegisterAuthenticatorFactory(MONGODBCR, newMongoDBCRAuthenticator)
	RegisterAuthenticatorFactory(PLAIN, newPlainAuthenticator)
	RegisterAuthenticatorFactory(MongoDBX509, newMongoDBX509Authenticator)
}

// CreateAuthenticator creates an authenticator.
func CreateAuthenticator(name string, cred *Cred) (Authenticator, error) {
	if f, ok := authFactories[name]; ok {
		return f(cred)
	}

	return nil, newError(fmt.Errorf("unknown mechanism"), name)
}

// RegisterAuthenticatorFactory registers the authenticator factory.
func RegisterAuthenticatorFactory(name string, factory AuthenticatorFactory) {
	authFactories[name] = factory
}

// Opener returns a connection opener that will open and authenticate
// the connection.
func Opener(opener conn.Opener, authenticator Authenticator) conn.Opener {
	return func(ctx context.Context, addr model.Addr, opts ...conn.Option) (conn.Connection, error) {
		return NewConnection(ctx, authenticator, opener, addr, opts...)
	}
}

// NewConnection opens a connection and authenticates it.
func NewConnection(ctx context.Context, authenticator Authenticator, opener conn.Opener, addr model.Addr, opts ...conn.Option) (conn.Connection, error) {
	c, err := opener(ctx, addr, opts...)
	if err != nil {
		if c != nil {
			// Ignore any error that occurs since we're already returning a different one.
			_ = c.Close()
		}
		return nil, err
	}

	err = authenticator.Auth(ctx, c)
	if err != nil {
		// Ignore any error that occurs since we're already returning a different one.
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Authenticator handles authenticating a connection.
type Authenticator interface {
	// Auth authenticates the connection.
	Auth(context.Context, conn.Connection) error
}

func newError(err error, mech string) error {
	return &Error{
		message: fmt.Sprintf("unable to authenticate using mechanism \"%s\"", mech),
		inner:   err,
	}
}

// Error is an error that occurred during authentication.
type Error struct {
	message string
	inner   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.message, e.inner)
}

// Inner returns the wrapped error.
func (e *Error) Inner() error {
	return e.inner
}

// Unwrap supports errors.Is/As.
func (e *Error) Unwrap() error {
	return e.inner
}

// Message returns the message.
func (e *Error) Message() string {
	return e.message
}
