// Package transport implements the bounded connection pool, manual
// HTTP/1.1 request writer, and incremental response parser spec §4.3
// describes, plus the per-request orchestration that ties them to the
// actor runtime.
//
// The pool's TLS-vs-cleartext client construction is grounded on
// internal/transport/grpc.go's TLSConfig/NewGRPCClient shape (CA file
// presence selects TLS, optional mTLS client cert). The env-var
// overridable limits and slog.Info-on-construction pattern are grounded
// on internal/postgres/conn.go's NewPool.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// Env var names overriding the pool's defaults (grounded on
// internal/postgres/conn.go's DB_MAX_CONNS-style knobs).
const (
	EnvMaxConnections = "COLSTORE_MAX_CONNECTIONS"
	EnvDialTimeout    = "COLSTORE_DIAL_TIMEOUT"
)

const (
	defaultMaxConnections = 32
	defaultDialTimeout    = 5 * time.Second
)

// TLSConfig selects TLS vs cleartext for the pool's dialed connections,
// mirroring internal/transport/grpc.go's TLSConfig.
type TLSConfig struct {
	Enabled    bool
	CACertFile string
	CertFile   string
	KeyFile    string
}

func (c TLSConfig) clientTLSConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CACertFile != "" {
		pem, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("transport: read CA cert %s: %w", c.CACertFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: failed to parse CA cert %s", c.CACertFile)
		}
		cfg.RootCAs = pool
	}
	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	MaxConnections int
	DialTimeout    time.Duration
	TLS            TLSConfig
}

// PoolConfigFromEnv applies EnvMaxConnections/EnvDialTimeout over
// sensible defaults, logging the resolved configuration the way
// postgres.NewPool does.
func PoolConfigFromEnv(tlsCfg TLSConfig) PoolConfig {
	cfg := PoolConfig{
		MaxConnections: envInt(EnvMaxConnections, defaultMaxConnections),
		DialTimeout:    envDuration(EnvDialTimeout, defaultDialTimeout),
		TLS:            tlsCfg,
	}
	slog.Info("transport pool configured",
		"max_connections", cfg.MaxConnections,
		"dial_timeout", cfg.DialTimeout,
		"tls", cfg.TLS.Enabled,
	)
	return cfg
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("transport: invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("transport: invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return d
}

// Connection is one pooled socket to a single host:port. Destroyed
// (never returned) on write failure, parse failure, or an explicit
// server connection-close indication (spec §4.3).
type Connection struct {
	Addr    string
	netConn net.Conn
	pool    *Pool

	mu        sync.Mutex
	destroyed bool
}

// Conn exposes the underlying net.Conn for writing/reading.
func (c *Connection) Conn() net.Conn { return c.netConn }

// Release returns the connection to its pool's idle set. A destroyed
// connection is not returned; it is simply dropped.
func (c *Connection) Release() {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		c.pool.forget(c)
		return
	}
	c.pool.release(c)
}

// Destroy closes the socket and removes it from the pool permanently.
// Idempotent (spec requires the same discipline as Block.Release).
func (c *Connection) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()
	_ = c.netConn.Close()
	c.pool.forget(c)
}

// waiter is a parked borrow request.
type waiter struct {
	ctx    context.Context
	result chan borrowResult
}

type borrowResult struct {
	conn *Connection
	err  error
}

// Pool is a bounded pool of Connections to one host:port, with lazy
// connection creation up to MaxConnections (spec §4.3).
type Pool struct {
	addr   string
	cfg    PoolConfig
	dialer net.Dialer

	mu       sync.Mutex
	total    int
	idle     []*Connection
	waiters  []*waiter
	borrowed int
}

// NewPool creates a Pool dialing addr (host:port) on demand.
func NewPool(addr string, cfg PoolConfig) *Pool {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Pool{addr: addr, cfg: cfg, dialer: net.Dialer{Timeout: cfg.DialTimeout}}
}

// Stats reports the pool's current connection accounting, for the
// debug surface (spec §4.8).
type Stats struct {
	Total    int
	Idle     int
	Borrowed int
	Waiting  int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: p.total, Idle: len(p.idle), Borrowed: p.borrowed, Waiting: len(p.waiters)}
}

// AsyncBorrowConnection hands back an idle connection immediately if one
// exists; otherwise it parks the request until one is released, a new
// one is created, or ctx is done (spec §4.3: "async_borrow_connection").
func (p *Pool) AsyncBorrowConnection(ctx context.Context, cb func(*Connection, error)) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.borrowed++
		p.mu.Unlock()
		cb(c, nil)
		return
	}
	if p.total < p.cfg.MaxConnections {
		p.total++
		p.borrowed++
		p.mu.Unlock()
		go p.dialAndDeliver(ctx, cb)
		return
	}
	w := &waiter{ctx: ctx, result: make(chan borrowResult, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	go func() {
		select {
		case r := <-w.result:
			cb(r.conn, r.err)
		case <-ctx.Done():
			p.cancelWaiter(w)
			cb(nil, ctx.Err())
		}
	}()
}

func (p *Pool) dialAndDeliver(ctx context.Context, cb func(*Connection, error)) {
	netConn, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.borrowed--
		p.mu.Unlock()
		cb(nil, err)
		return
	}
	cb(&Connection{Addr: p.addr, netConn: netConn, pool: p}, nil)
}

func (p *Pool) dial(ctx context.Context) (net.Conn, error) {
	tlsCfg, err := p.cfg.TLS.clientTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg == nil {
		return p.dialer.DialContext(ctx, "tcp", p.addr)
	}
	d := tls.Dialer{NetDialer: &p.dialer, Config: tlsCfg}
	return d.DialContext(ctx, "tcp", p.addr)
}

func (p *Pool) cancelWaiter(w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.waiters {
		if cur == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// release returns a healthy connection to the idle set, or hands it
// straight to the oldest waiter.
func (p *Pool) release(c *Connection) {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w.result <- borrowResult{conn: c}
		return
	}
	p.idle = append(p.idle, c)
	p.borrowed--
	p.mu.Unlock()
}

// forget removes a destroyed connection from the pool's accounting
// entirely, potentially unblocking a waiter by dialing a fresh one.
func (p *Pool) forget(c *Connection) {
	p.mu.Lock()
	p.total--
	p.borrowed--
	var w *waiter
	if len(p.waiters) > 0 {
		w = p.waiters[0]
		p.waiters = p.waiters[1:]
		p.total++
		p.borrowed++
	}
	p.mu.Unlock()

	if w != nil {
		netConn, err := p.dial(w.ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.borrowed--
			p.mu.Unlock()
			w.result <- borrowResult{err: err}
			return
		}
		w.result <- borrowResult{conn: &Connection{Addr: p.addr, netConn: netConn, pool: p}}
	}
}
