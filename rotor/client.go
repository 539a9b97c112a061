// Package rotor is the user-facing driver API. A Client owns a
// connection pool to a single server and hands out Database and
// Collection handles over it.
package rotor

import (
	"context"
	"time"

	"github.com/rotorlabs/rotor-go-driver/auth"
	"github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/connstring"
	"github.com/rotorlabs/rotor-go-driver/model"
	"github.com/rotorlabs/rotor-go-driver/msg/compress"
	"github.com/rotorlabs/rotor-go-driver/ops"
	"github.com/rotorlabs/rotor-go-driver/writeconcern"
)

const defaultMaxPoolSize = 100

// Client performs operations on a server.
type Client struct {
	connString   connstring.ConnString
	writeConcern *writeconcern.WriteConcern
	pool         *conn.Pool
	acquireLimit time.Duration
}

// NewClient creates a new client to connect to the server named by
// the uri.
func NewClient(uri string) (*Client, error) {
	cs, err := connstring.Parse(uri)
	if err != nil {
		return nil, err
	}

	return NewClientFromConnString(cs)
}

// NewClientFromConnString creates a new client from a parsed
// connection string.
func NewClientFromConnString(cs connstring.ConnString) (*Client, error) {
	if len(cs.Hosts) != 1 {
		return nil, ConfigurationError("a client connects to exactly one host")
	}

	opts, err := connOptions(cs)
	if err != nil {
		return nil, err
	}

	opener := conn.New
	if cs.Username != "" || cs.AuthMechanism != "" {
		authenticator, err := auth.CreateAuthenticator(cs.AuthMechanism, &auth.Cred{
			Source:      authSource(cs),
			Username:    cs.Username,
			Password:    cs.Password,
			PasswordSet: cs.PasswordSet,
			Props:       cs.AuthMechanismProperties,
		})
		if err != nil {
			return nil, err
		}
		opener = auth.Opener(opener, authenticator)
	}

	wc := writeConcernFromConnString(&cs)
	if wc != nil && !wc.IsValid() {
		return nil, ConfigurationError("write concern requests journaling from unacknowledged writes")
	}

	maxPoolSize := uint16(defaultMaxPoolSize)
	if cs.MaxPoolSizeSet {
		maxPoolSize = cs.MaxPoolSize
	}

	addr := model.Addr(cs.Hosts[0]).Canonicalize()
	pool := conn.NewPool(maxPoolSize, conn.OpeningFactory(opener, addr, opts...))

	return &Client{
		connString:   cs,
		writeConcern: wc,
		pool:         pool,
		acquireLimit: cs.ServerSelectionTimeout,
	}, nil
}

func connOptions(cs connstring.ConnString) ([]conn.Option, error) {
	var opts []conn.Option

	if cs.AppName != "" {
		opts = append(opts, conn.WithAppName(cs.AppName))
	}
	if cs.ConnectTimeoutSet {
		opts = append(opts, conn.WithConnectTimeout(cs.ConnectTimeout))
	}
	if cs.SocketTimeoutSet {
		opts = append(opts,
			conn.WithReadTimeout(cs.SocketTimeout),
			conn.WithWriteTimeout(cs.SocketTimeout),
		)
	}
	if cs.MaxConnIdleTimeSet {
		opts = append(opts, conn.WithIdleTimeout(cs.MaxConnIdleTime))
	}
	if cs.MaxConnLifeTimeSet {
		opts = append(opts, conn.WithLifeTimeout(cs.MaxConnLifeTime))
	}

	if len(cs.Compressors) > 0 {
		compressors := make([]compress.Compressor, 0, len(cs.Compressors))
		for _, name := range cs.Compressors {
			compressor, err := compress.ByName(name)
			if err != nil {
				return nil, err
			}
			compressors = append(compressors, compressor)
		}
		opts = append(opts, conn.WithCompressors(compressors...))
	}

	if cs.SSL {
		tlsConfig := conn.NewTLSConfig()
		if cs.SSLInsecure {
			tlsConfig.SetInsecure(true)
		}
		if cs.SSLCaFileSet {
			if err := tlsConfig.AddCaCertFromFile(cs.SSLCaFile); err != nil {
				return nil, err
			}
		}
		if cs.SSLClientCertificateKeySet {
			if _, err := tlsConfig.SetClientCertFromFile(cs.SSLClientCertificateKeyFile); err != nil {
				return nil, err
			}
		}
		opts = append(opts, conn.WithTLSConfig(tlsConfig))
	}

	return opts, nil
}

func authSource(cs connstring.ConnString) string {
	if cs.AuthSource != "" {
		return cs.AuthSource
	}
	switch cs.AuthMechanism {
	case auth.PLAIN, auth.MongoDBX509:
		return "$external"
	}
	return cs.Database
}

func writeConcernFromConnString(cs *connstring.ConnString) *writeconcern.WriteConcern {
	var opts []writeconcern.Option

	if cs.WNumberSet {
		opts = append(opts, writeconcern.W(cs.WNumber))
	}
	if cs.WString != "" {
		if cs.WString == "majority" {
			opts = append(opts, writeconcern.WMajority())
		} else {
			opts = append(opts, writeconcern.WTagSet(cs.WString))
		}
	}
	if cs.JournalSet {
		opts = append(opts, writeconcern.J(cs.Journal))
	}
	if cs.WTimeoutSet {
		opts = append(opts, writeconcern.WTimeout(cs.WTimeout))
	}

	if len(opts) == 0 {
		return nil
	}
	return writeconcern.New(opts...)
}

// Connection gets a pooled connection to the server. It implements
// ops.Server. The serverSelectionTimeoutMS option bounds the wait for
// a free connection when the caller's context carries no deadline.
func (c *Client) Connection(ctx context.Context) (conn.Connection, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.acquireLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.acquireLimit)
		defer cancel()
	}
	return c.pool.Get(ctx)
}

// ConnectionString returns the connection string this client was
// created from.
func (c *Client) ConnectionString() connstring.ConnString {
	return c.connString
}

// Database gets a handle for a given database.
func (c *Client) Database(name string) *Database {
	return &Database{client: c, name: name}
}

// RunCommand runs a command against the given database.
func (c *Client) RunCommand(ctx context.Context, db string, command interface{}, result interface{}) error {
	return ops.Run(ctx, c, db, command, result)
}

// Close shuts down the client's connection pool. In-flight operations
// fail once their connections are returned.
func (c *Client) Close() {
	c.pool.Close()
}
