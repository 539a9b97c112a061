package conn_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/rotorlabs/rotor-go-driver/conn"
	"github.com/rotorlabs/rotor-go-driver/internal/conntest"
)

func countingFactory(created *[]*conntest.MockConnection) Factory {
	var lock sync.Mutex
	return func(_ context.Context) (Connection, error) {
		lock.Lock()
		defer lock.Unlock()
		*created = append(*created, &conntest.MockConnection{})
		return (*created)[len(*created)-1], nil
	}
}

func TestPool_reuses_connections(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(2, countingFactory(&created))

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)

	require.NoError(t, c1.Close())

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NoError(t, c2.Close())
}

func TestPool_applies_backpressure(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(1, countingFactory(&created))

	c1, err := p.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Get(ctx)
	require.True(t, errors.Is(err, ErrPoolTimeout))

	require.NoError(t, c1.Close())

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NoError(t, c2.Close())
}

func TestPool_Get_when_context_is_cancelled(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(1, countingFactory(&created))

	_, err := p.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Get(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestPool_Get_when_pool_is_closed(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(1, countingFactory(&created))

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	p.Close()

	_, err = p.Get(context.Background())
	require.True(t, errors.Is(err, ErrPoolClosed))
	require.False(t, created[0].Alive())
}

func TestPool_Close_fails_waiting_getters(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(1, countingFactory(&created))

	_, err := p.Get(context.Background())
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := p.Get(context.Background())
		errs <- err
	}()

	// let the getter park on the pool
	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errs:
		require.True(t, errors.Is(err, ErrPoolClosed))
	case <-time.After(time.Second):
		t.Fatal("waiting getter was not failed by Close")
	}
}

func TestPool_discards_dead_connections(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(1, countingFactory(&created))

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)

	created[0].Dead = true
	require.NoError(t, c1.Close())

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.NoError(t, c2.Close())
}

func TestPool_Clear_expires_pooled_connections(t *testing.T) {
	t.Parallel()

	var created []*conntest.MockConnection
	p := NewPool(2, countingFactory(&created))

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	p.Clear()

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.NoError(t, c2.Close())
}

func TestPool_Get_when_factory_fails(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("dial failed")
	fail := true
	factory := func(_ context.Context) (Connection, error) {
		if fail {
			fail = false
			return nil, dialErr
		}
		return &conntest.MockConnection{}, nil
	}

	p := NewPool(1, factory)

	_, err := p.Get(context.Background())
	require.Equal(t, dialErr, err)

	// the failed dial must not leak its permit
	c, err := p.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
