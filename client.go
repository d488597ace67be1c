// Package colstore is a wide-column NoSQL table store client library
// modeled on the TableStore wire protocol: a typed WireClient for the
// thirteen table/row RPCs, a background bulk coordinator that folds
// single-row calls into batch RPCs, and an index overlay providing
// Insert/Find/Delete/Update/Upsert over a schema of a primary table plus
// any number of secondary indexes (spec §2).
package colstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rat-data/colstore/internal/actor"
	"github.com/rat-data/colstore/internal/bulk"
	"github.com/rat-data/colstore/internal/config"
	"github.com/rat-data/colstore/internal/debugserver"
	"github.com/rat-data/colstore/internal/index"
	"github.com/rat-data/colstore/internal/mempool"
	"github.com/rat-data/colstore/internal/retry"
	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/signing"
	"github.com/rat-data/colstore/internal/transport"
	"github.com/rat-data/colstore/internal/wireclient"
)

// mempoolBlockSize is the size of the shared slab blocks transport reads
// into (spec §4.1).
const mempoolBlockSize = 64 * 1024

// mailboxCapacity bounds each actor's FIFO mailbox (spec §4.2).
const mailboxCapacity = 1024

// Client is the single entry point wiring every layer spec §2 describes
// into one shared runtime: one connection pool, one actor pool, one
// alarm clock, and one bulk coordinator serve every Collection overlay
// built on this Client (spec §5's resource-sharing model).
type Client struct {
	opts      *config.ClientOptions
	endpoint  wireclient.Endpoint
	creds     signing.Credentials
	logger    *slog.Logger

	pieces    *mempool.Pool
	alarms    *actor.AlarmClock
	transport *transport.Client

	actors *actor.Pool
	wire   *wireclient.Client
	coord  *bulk.Coordinator

	debugHTTP *http.Server
	started   bool
}

// New builds a Client from an endpoint, credentials, and ClientOptions
// (a nil opts uses config.DefaultClientOptions). The transport layer is
// constructed immediately; the actor pool, wire client, and bulk
// coordinator are finished wiring in Start, since the actor pool's
// mailboxes run against a caller-supplied context.
func New(endpoint wireclient.Endpoint, creds signing.Credentials, opts *config.ClientOptions) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = config.DefaultClientOptions()
	}
	logger := slog.Default()

	pieces := mempool.New(mempoolBlockSize)
	alarms := actor.NewAlarmClock(logger)
	tc := transport.NewClient(transport.PoolConfig{
		MaxConnections: opts.MaxConnections,
		DialTimeout:    opts.ConnectTimeout,
	}, pieces, alarms, logger)

	return &Client{
		opts:      opts,
		endpoint:  endpoint,
		creds:     creds,
		logger:    logger,
		pieces:    pieces,
		alarms:    alarms,
		transport: tc,
	}, nil
}

// Start launches the alarm clock, the actor pool (spec §4.2: one actor
// per tracker-id hash bucket), and the bulk coordinator (spec §4.6),
// then starts the debug introspection server if ClientOptions.DebugAddr
// is set (spec §4.8). ctx governs the lifetime of every background loop;
// cancel it (or call Stop) to shut the Client down.
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return fmt.Errorf("colstore: client already started")
	}

	c.alarms.Start(ctx)
	c.actors = actor.NewPool(ctx, c.opts.ActorCount, mailboxCapacity, c.logger)

	wire, err := wireclient.NewClient(wireclient.Config{
		Endpoint:       c.endpoint,
		Credentials:    c.creds,
		RequestTimeout: c.opts.RequestTimeout,
	}, c.transport, c.actors)
	if err != nil {
		return fmt.Errorf("colstore: build wire client: %w", err)
	}
	c.wire = wire

	retryPolicy := retry.NewDeadlineBoundedPolicy(retry.Config{
		Deadline:  c.opts.Retry.MaxElapsed,
		BaseDelay: c.opts.Retry.BaseDelay,
		MaxDelay:  c.opts.Retry.MaxDelay,
	})
	c.coord = bulk.NewCoordinator(c.wire, c.alarms, retryPolicy, bulk.DefaultConfig(), c.logger)
	c.coord.Start(ctx)

	if c.opts.DebugAddr != "" {
		router := debugserver.NewRouter(&debugserver.Server{
			Transport: c.transport,
			Alarms:    c.alarms,
			Bulk:      c.coord,
			Logger:    c.logger,
		})
		c.debugHTTP = &http.Server{Addr: c.opts.DebugAddr, Handler: router}
		go func() {
			if err := c.debugHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.logger.Error("debug server failed", "error", err)
			}
		}()
	}

	c.started = true
	return nil
}

// Stop drains the bulk coordinator, the actor pool, and the alarm clock
// in that order, and shuts down the debug server if it was started.
func (c *Client) Stop(ctx context.Context) {
	if !c.started {
		return
	}
	if c.debugHTTP != nil {
		_ = c.debugHTTP.Shutdown(ctx)
	}
	c.coord.Stop()
	c.actors.Stop()
	c.alarms.Stop()
	c.started = false
}

// WireClient exposes the typed RPC surface directly, for table DDL
// (CreateTable/ListTable/DescribeTable/DeleteTable/UpdateTable) and any
// row operation a caller wants to issue without going through an index
// overlay's batching.
func (c *Client) WireClient() *wireclient.Client {
	return c.wire
}

// Collection builds an index.Overlay for coll, sharing this Client's
// bulk coordinator (spec §4.7). Call this once per Collection and reuse
// the returned Overlay; it carries no per-call state of its own.
func (c *Client) Collection(coll schema.Collection) *index.Overlay {
	return index.NewOverlay(c.coord, coll)
}
