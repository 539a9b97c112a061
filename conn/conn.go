package conn

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rotorlabs/rotor-go-driver/internal"
	"github.com/rotorlabs/rotor-go-driver/model"
	"github.com/rotorlabs/rotor-go-driver/msg"
	"github.com/rotorlabs/rotor-go-driver/msg/compress"

	"gopkg.in/mgo.v2/bson"
)

var globalClientConnectionID int32

func nextClientConnectionID() int32 {
	return atomic.AddInt32(&globalClientConnectionID, 1)
}

// Opener opens a connection.
type Opener func(context.Context, model.Addr, ...Option) (Connection, error)

// New opens a connection to a server. The handshake runs before the
// connection is returned; a connection that fails its handshake is
// closed and never handed out.
func New(ctx context.Context, addr model.Addr, opts ...Option) (Connection, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	netConn, err := cfg.dialer(ctx, &net.Dialer{Timeout: cfg.connectTimeout}, addr.Network(), addr.String())
	if err != nil {
		return nil, err
	}

	c := &connectionImpl{
		id:           fmt.Sprintf("%s[-%d]", addr, nextClientConnectionID()),
		addr:         addr,
		codec:        cfg.codec,
		compressors:  cfg.compressors,
		transport:    netConn,
		readTimeout:  cfg.readTimeout,
		writeTimeout: cfg.writeTimeout,
		idleTimeout:  cfg.idleTimeout,
		lifeDeadline: time.Now().Add(cfg.lifeTimeout),
		alive:        true,
	}
	c.bumpIdleDeadline()

	err = c.initialize(ctx, cfg.appName)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// Connection is responsible for reading and writing messages.
type Connection interface {
	// Alive indicates whether the connection is still usable.
	Alive() bool
	// Close closes the connection. It is safe to call Close
	// multiple times.
	Close() error
	// MarkDead flags the connection so that the pool discards it.
	MarkDead()
	// Model gets a description of the connection built during
	// the handshake.
	Model() *model.Conn
	// Expired indicates whether the connection has passed its
	// idle or lifetime deadline.
	Expired() bool
	// Read reads a message from the connection. The reply's
	// correlation id must equal responseTo; any other reply is a
	// protocol desync and kills the connection.
	Read(ctx context.Context, responseTo int32) (msg.Response, error)
	// Write writes a number of messages to the connection.
	Write(ctx context.Context, reqs ...msg.Request) error
}

type connectionImpl struct {
	// if id is negative, it's the client identifier; otherwise it's the
	// same as the id the server is using.
	id           string
	addr         model.Addr
	codec        msg.Codec
	compressors  []compress.Compressor
	desc         *model.Conn
	transport    net.Conn
	alive        bool
	closed       bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	idleDeadline time.Time
	lifeDeadline time.Time
}

func (c *connectionImpl) Alive() bool {
	return c.alive
}

func (c *connectionImpl) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.alive = false

	err := c.transport.Close()
	if err != nil {
		return c.wrapError(err, "failed closing")
	}

	return nil
}

func (c *connectionImpl) MarkDead() {
	c.alive = false
}

func (c *connectionImpl) Model() *model.Conn {
	return c.desc
}

func (c *connectionImpl) Expired() bool {
	now := time.Now()
	if !c.idleDeadline.IsZero() && now.After(c.idleDeadline) {
		return true
	}
	if !c.lifeDeadline.IsZero() && now.After(c.lifeDeadline) {
		return true
	}
	return !c.alive
}

func (c *connectionImpl) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	if !c.alive {
		return nil, c.wrapError(ErrConnectionDead, "failed reading")
	}
	if err := ctx.Err(); err != nil {
		return nil, c.wrapError(err, "failed reading")
	}

	c.transport.SetReadDeadline(c.deadline(ctx, c.readTimeout))

	message, err := c.codec.Decode(c.transport)
	if err != nil {
		c.MarkDead()
		return nil, c.wrapError(err, "failed reading")
	}

	resp, ok := message.(msg.Response)
	if !ok {
		c.MarkDead()
		return nil, c.wrapError(nil, "failed reading: invalid message type received")
	}

	if resp.ResponseTo() != responseTo {
		c.MarkDead()
		return nil, &DesyncError{
			ConnectionID: c.id,
			Expected:     responseTo,
			Actual:       resp.ResponseTo(),
		}
	}

	c.bumpIdleDeadline()
	return resp, nil
}

func (c *connectionImpl) String() string {
	return c.id
}

func (c *connectionImpl) Write(ctx context.Context, requests ...msg.Request) error {
	if !c.alive {
		return c.wrapError(ErrConnectionDead, "failed writing")
	}
	if err := ctx.Err(); err != nil {
		return c.wrapError(err, "failed writing")
	}

	var messages []msg.Message
	for _, message := range requests {
		messages = append(messages, message)
	}

	c.transport.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))

	err := c.codec.Encode(c.transport, messages...)
	if err != nil {
		c.MarkDead()
		return c.wrapError(err, "failed writing")
	}

	c.bumpIdleDeadline()
	return nil
}

func (c *connectionImpl) bumpIdleDeadline() {
	if c.idleTimeout > 0 {
		c.idleDeadline = time.Now().Add(c.idleTimeout)
	}
}

func (c *connectionImpl) deadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline
}

func (c *connectionImpl) initialize(ctx context.Context, appName string) error {
	var compressorNames []string
	for _, compressor := range c.compressors {
		compressorNames = append(compressorNames, compressor.Name())
	}

	isMasterResult, buildInfoResult, err := describeServer(ctx, c, createClientDoc(appName), compressorNames)
	if err != nil {
		return err
	}

	c.desc = &model.Conn{
		ID:   c.id,
		Addr: c.addr,

		GitVersion: buildInfoResult.GitVersion,
		Version: model.Version{
			Desc:  buildInfoResult.Version,
			Parts: buildInfoResult.VersionArray,
		},
		MaxBSONObjectSize:   isMasterResult.MaxBSONObjectSize,
		MaxMessageSizeBytes: isMasterResult.MaxMessageSizeBytes,
		MaxWriteBatchSize:   isMasterResult.MaxWriteBatchSize,
		ReadOnly:            isMasterResult.ReadOnly,
		WireVersion: model.Range{
			Min: isMasterResult.MinWireVersion,
			Max: isMasterResult.MaxWireVersion,
		},
		Compression:        isMasterResult.Compression,
		SaslSupportedMechs: isMasterResult.SaslSupportedMechs,
	}

	c.negotiateCompression(isMasterResult.Compression)

	getLastErrorReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "getLastError", Value: 1}},
	)

	var getLastErrorResult internal.GetLastErrorResult
	err = ExecuteCommand(ctx, c, getLastErrorReq, &getLastErrorResult)
	// NOTE: we don't care about this result. If it fails, it doesn't
	// harm us in any way other than not being able to correlate
	// our logs with the server's logs.
	if err == nil {
		c.id = fmt.Sprintf("%s[%d]", c.addr, getLastErrorResult.ConnectionID)
		c.desc.ID = c.id
	}

	return nil
}

// negotiateCompression switches the codec to a compressed one when the
// server advertises a compressor the connection was configured with.
// Handshake commands always travel uncompressed.
func (c *connectionImpl) negotiateCompression(serverCompressors []string) {
	for _, compressor := range c.compressors {
		for _, name := range serverCompressors {
			if compressor.Name() == name {
				c.codec = msg.NewCompressedWireProtocolCodec(compressor)
				return
			}
		}
	}
}

func (c *connectionImpl) wrapError(inner error, message string) error {
	return &Error{
		c.id,
		fmt.Sprintf("connection(%s) error: %s", c.id, message),
		inner,
	}
}

func createClientDoc(appName string) bson.M {
	clientDoc := bson.M{
		"driver": bson.M{
			"name":    "rotor-go-driver",
			"version": internal.Version,
		},
	}
	if appName != "" {
		clientDoc["application"] = bson.M{"name": appName}
	}

	return clientDoc
}

func describeServer(ctx context.Context, c Connection, clientDoc bson.M, compressors []string) (*internal.IsMasterResult, *internal.BuildInfoResult, error) {
	isMasterCmd := bson.D{{Name: "ismaster", Value: 1}}
	if clientDoc != nil {
		isMasterCmd = append(isMasterCmd, bson.DocElem{
			Name:  "client",
			Value: clientDoc,
		})
	}
	if len(compressors) > 0 {
		isMasterCmd = append(isMasterCmd, bson.DocElem{
			Name:  "compression",
			Value: compressors,
		})
	}

	isMasterReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		isMasterCmd,
	)
	buildInfoReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "buildInfo", Value: 1}},
	)

	var isMasterResult internal.IsMasterResult
	var buildInfoResult internal.BuildInfoResult
	err := ExecuteCommands(ctx, c, []msg.Request{isMasterReq, buildInfoReq}, []interface{}{&isMasterResult, &buildInfoResult})
	if err != nil {
		return nil, nil, err
	}

	return &isMasterResult, &buildInfoResult, nil
}
