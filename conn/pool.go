package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/rotorlabs/rotor-go-driver/model"
)

var (
	// ErrPoolClosed is an error that occurs when attempting to use
	// a pool that is closed.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolTimeout is an error that occurs when no connection
	// became available before the caller's deadline. The caller
	// may retry.
	ErrPoolTimeout = errors.New("timed out waiting for an available connection")
)

// Factory creates a connection.
type Factory func(context.Context) (Connection, error)

// OpeningFactory returns a Factory that opens connections to addr.
func OpeningFactory(opener Opener, addr model.Addr, opts ...Option) Factory {
	return func(ctx context.Context) (Connection, error) {
		return opener(ctx, addr, opts...)
	}
}

// NewPool creates a new connection pool holding at most maxSize
// connections. Get applies backpressure: when all permits are in use,
// callers block until a connection is released or their context
// expires.
func NewPool(maxSize uint16, factory Factory) *Pool {
	return &Pool{
		factory: factory,
		permits: semaphore.NewWeighted(int64(maxSize)),
		conns:   make(chan *poolConn, maxSize),
		done:    make(chan struct{}),
	}
}

// Pool holds connections such that they can be checked out
// and reused.
type Pool struct {
	factory Factory
	permits *semaphore.Weighted

	connsLock sync.Mutex
	conns     chan *poolConn
	closed    bool
	done      chan struct{}
	gen       uint32
}

// Clear clears the pool. This does not happen immediately,
// but rather occurs as connections are checked out and
// checked in.
func (p *Pool) Clear() {
	atomic.AddUint32(&p.gen, 1)
}

// Close closes the pool, making it unusable. It closes all idle
// connections and fails queued Get calls with ErrPoolClosed.
func (p *Pool) Close() {
	p.connsLock.Lock()
	if p.closed {
		p.connsLock.Unlock()
		return
	}
	p.closed = true
	conns := p.conns
	p.conns = nil
	p.connsLock.Unlock()

	close(p.done)
	close(conns)
	for c := range conns {
		if err := c.Connection.Close(); err != nil {
			logrus.WithError(err).Debug("failed closing pooled connection")
		}
	}
}

// Get gets a connection from the pool. To return the connection
// to the pool, close it.
func (p *Pool) Get(ctx context.Context) (Connection, error) {
	if err := p.acquirePermit(ctx); err != nil {
		return nil, err
	}

	p.connsLock.Lock()
	if p.closed {
		p.connsLock.Unlock()
		p.permits.Release(1)
		return nil, ErrPoolClosed
	}
	conns := p.conns
	p.connsLock.Unlock()

	gen := atomic.LoadUint32(&p.gen)

	for {
		select {
		case c := <-conns:
			if c == nil {
				p.permits.Release(1)
				return nil, ErrPoolClosed
			}
			if c.Expired() {
				c.Connection.Close()
				continue
			}
			return c, nil
		default:
			c, err := p.factory(ctx)
			if err != nil {
				p.permits.Release(1)
				return nil, err
			}
			return &poolConn{c, p, gen}, nil
		}
	}
}

// acquirePermit waits for a free permit, translating a lost race with
// the caller's deadline into ErrPoolTimeout and a pool shutdown into
// ErrPoolClosed.
func (p *Pool) acquirePermit(ctx context.Context) error {
	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-p.done:
			cancel()
		case <-acquireCtx.Done():
		}
	}()

	if err := p.permits.Acquire(acquireCtx, 1); err != nil {
		select {
		case <-p.done:
			return ErrPoolClosed
		default:
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrPoolTimeout
		}
		return ctx.Err()
	}

	return nil
}

func (p *Pool) connExpired(gen uint32) bool {
	return gen < atomic.LoadUint32(&p.gen)
}

func (p *Pool) returnConn(c *poolConn) error {
	defer p.permits.Release(1)

	if c.Expired() || !c.Alive() {
		return c.Connection.Close()
	}

	p.connsLock.Lock()
	defer p.connsLock.Unlock()

	if p.conns == nil {
		return c.Connection.Close()
	}

	select {
	case p.conns <- c:
		return nil
	default:
		// pool is full
		return c.Connection.Close()
	}
}

type poolConn struct {
	Connection
	p   *Pool
	gen uint32
}

// Close returns the connection to its pool. Dead or expired
// connections are discarded, freeing their permit so a later Get can
// dial a replacement.
func (c *poolConn) Close() error {
	return c.p.returnConn(c)
}

func (c *poolConn) Expired() bool {
	return c.Connection.Expired() || c.p.connExpired(c.gen)
}
