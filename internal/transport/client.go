package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rat-data/colstore/internal/actor"
	colerrors "github.com/rat-data/colstore/internal/errors"
	"github.com/rat-data/colstore/internal/mempool"
)

// readBlockSize is not used by writeAndParse: each read fills a whole
// block borrowed from the shared mempool.Pool, so the read size is that
// pool's block size.
const readBlockSize = 64 * 1024

// Client orchestrates one request end-to-end: borrow, write, parse,
// return/destroy (spec §4.3 "Per-request orchestration"). Sony
// gobreaker wraps each host's borrow so a host in a failure storm stops
// accepting new work instead of piling up borrow timeouts — grounded on
// other_examples/manifests/sawpanic-cryptorun's use of the same library
// for guarding an unreliable upstream.
type Client struct {
	pools    map[string]*Pool
	breakers map[string]*gobreaker.CircuitBreaker[any]
	poolCfg  PoolConfig
	pieces   *mempool.Pool
	alarms   *actor.AlarmClock
	logger   *slog.Logger
}

// NewClient creates a Client. alarms must already be Start'd; pieces is
// the shared mempool.Pool that read buffers are borrowed from.
func NewClient(cfg PoolConfig, pieces *mempool.Pool, alarms *actor.AlarmClock, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		pools:    make(map[string]*Pool),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		poolCfg:  cfg,
		pieces:   pieces,
		alarms:   alarms,
		logger:   logger,
	}
}

func (c *Client) poolFor(addr string) *Pool {
	if p, ok := c.pools[addr]; ok {
		return p
	}
	p := NewPool(addr, c.poolCfg)
	c.pools[addr] = p
	return p
}

// PoolStats reports Stats for every host the Client has dialed so far,
// keyed by address (spec §4.8's debug surface).
func (c *Client) PoolStats() map[string]Stats {
	out := make(map[string]Stats, len(c.pools))
	for addr, p := range c.pools {
		out[addr] = p.Stats()
	}
	return out
}

func (c *Client) breakerFor(addr string) *gobreaker.CircuitBreaker[any] {
	if b, ok := c.breakers[addr]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        addr,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	c.breakers[addr] = b
	return b
}

// Response is the typed result of one request (spec §6: "callback with
// typed headers+body").
type Response struct {
	StatusCode int64
	Headers    map[string]string
	Body       []byte
}

// Do performs the per-request pipeline described in spec §4.3:
// timer -> borrow -> write -> parse loop -> finalize, destroying the
// connection on any failure along the way except a pre-borrow one.
func (c *Client) Do(ctx context.Context, addr string, req Request, fixed *FixedHeaderBlock, mailbox *actor.Mailbox, timeout time.Duration) (*Response, error) {
	result := make(chan struct {
		resp *Response
		err  error
	}, 1)

	deliver := func(resp *Response, err error) {
		select {
		case result <- struct {
			resp *Response
			err  error
		}{resp, err}:
		default:
		}
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	var timer *actor.Timer
	if timeout > 0 {
		reqCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		timer = c.alarms.Schedule(time.Now().Add(timeout), mailbox, func(tctx context.Context) {
			cancel()
			deliver(nil, colerrors.NewTransport(colerrors.StatusTimeout, "request timed out"))
		})
	}

	breaker := c.breakerFor(addr)
	pool := c.poolFor(addr)

	// Execute's req blocks until the borrow+write+parse pipeline
	// resolves, so the breaker's failure counts reflect real outcomes
	// rather than the borrow's async dispatch returning immediately.
	resp, berr := breaker.Execute(func() (any, error) {
		pool.AsyncBorrowConnection(reqCtx, func(conn *Connection, err error) {
			if timer != nil {
				timer.Cancel()
			}
			if err != nil {
				deliver(nil, colerrors.NewTransport(colerrors.StatusResolveFailed, fmt.Sprintf("borrow connection: %v", err)))
				return
			}
			resp, err := c.writeAndParse(reqCtx, conn, req, fixed)
			if err != nil {
				conn.Destroy()
				deliver(nil, err)
				return
			}
			serverClose := false
			for k, v := range resp.Headers {
				if strings.EqualFold(k, "Connection") && strings.EqualFold(strings.TrimSpace(v), "close") {
					serverClose = true
				}
			}
			if serverClose {
				conn.Destroy()
			} else {
				conn.Release()
			}
			deliver(resp, nil)
		})
		r := <-result
		if r.err != nil {
			return nil, r.err
		}
		return r.resp, nil
	})
	if berr != nil {
		if berr == gobreaker.ErrOpenState || berr == gobreaker.ErrTooManyRequests {
			return nil, colerrors.NewTransport(colerrors.StatusNoConnection, fmt.Sprintf("circuit open for %s: %v", addr, berr))
		}
		return nil, berr
	}
	return resp.(*Response), nil
}

func (c *Client) writeAndParse(ctx context.Context, conn *Connection, req Request, fixed *FixedHeaderBlock) (*Response, error) {
	req.Host = conn.Addr
	pieces, err := WriteRequest(req, fixed)
	if err != nil {
		return nil, colerrors.NewClient(colerrors.CodeCorruptedResponse, err.Error())
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.Conn().SetDeadline(deadline)
	}
	for _, p := range pieces.Parts() {
		if _, err := conn.Conn().Write(p.Bytes()); err != nil {
			return nil, colerrors.NewTransport(colerrors.StatusWriteFailed, fmt.Sprintf("write request: %v", err))
		}
	}

	parser := NewResponseParser()
	for !parser.Done() {
		block := c.pieces.Get()
		n, err := conn.Conn().Read(block.Bytes())
		if n > 0 {
			needMore, perr := parser.Feed(mempool.PieceOf(block.Bytes()[:n]))
			if perr != nil {
				block.Release()
				return nil, colerrors.NewTransport(colerrors.StatusCorruptedResponse, perr.Error())
			}
			_ = needMore
		}
		if err != nil {
			block.Release()
			if err == io.EOF && parser.Done() {
				break
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, colerrors.NewTransport(colerrors.StatusTimeout, "response read timed out")
			}
			return nil, colerrors.NewTransport(colerrors.StatusReadFailed, fmt.Sprintf("read response: %v", err))
		}
	}

	headers := make(map[string]string)
	for _, k := range parser.headerKeys {
		if v, ok := parser.Header(k); ok {
			headers[k] = v
		}
	}
	return &Response{
		StatusCode: parser.StatusCode(),
		Headers:    headers,
		Body:       parser.Body().Concat(),
	}, nil
}
