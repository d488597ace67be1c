package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						_, _ = c.Write(buf[:n])
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

func borrow(t *testing.T, p *Pool) (*Connection, error) {
	t.Helper()
	type result struct {
		conn *Connection
		err  error
	}
	ch := make(chan result, 1)
	p.AsyncBorrowConnection(context.Background(), func(c *Connection, err error) {
		ch <- result{c, err}
	})
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("borrow timed out")
		return nil, nil
	}
}

func TestPoolBorrowAndRelease(t *testing.T) {
	addr := startEchoListener(t)
	p := NewPool(addr, PoolConfig{MaxConnections: 2})

	c, err := borrow(t, p)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, Stats{Total: 1, Idle: 0, Borrowed: 1}, p.Stats())

	c.Release()
	assert.Equal(t, Stats{Total: 1, Idle: 1, Borrowed: 0}, p.Stats())
}

func TestPoolReusesReleasedConnection(t *testing.T) {
	addr := startEchoListener(t)
	p := NewPool(addr, PoolConfig{MaxConnections: 1})

	c1, err := borrow(t, p)
	require.NoError(t, err)
	c1.Release()

	c2, err := borrow(t, p)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, Stats{Total: 1, Idle: 0, Borrowed: 1}, p.Stats())
	c2.Release()
}

func TestPoolDestroyDoesNotReturnToIdle(t *testing.T) {
	addr := startEchoListener(t)
	p := NewPool(addr, PoolConfig{MaxConnections: 2})

	c, err := borrow(t, p)
	require.NoError(t, err)
	c.Destroy()

	assert.Equal(t, Stats{Total: 0, Idle: 0, Borrowed: 0}, p.Stats())
}

func TestPoolWaiterParkedUntilReleaseAtCapacity(t *testing.T) {
	addr := startEchoListener(t)
	p := NewPool(addr, PoolConfig{MaxConnections: 1})

	c1, err := borrow(t, p)
	require.NoError(t, err)

	type result struct {
		conn *Connection
		err  error
	}
	ch := make(chan result, 1)
	p.AsyncBorrowConnection(context.Background(), func(c *Connection, err error) {
		ch <- result{c, err}
	})

	select {
	case <-ch:
		t.Fatal("second borrow resolved before release despite capacity=1")
	case <-time.After(50 * time.Millisecond):
	}

	c1.Release()

	select {
	case r := <-ch:
		require.NoError(t, r.err)
		assert.Same(t, c1, r.conn)
	case <-time.After(2 * time.Second):
		t.Fatal("parked waiter never resolved after release")
	}
}
