// Package bulk implements the background batching coordinator that
// folds single-row operations into BatchWriteRow/BatchGetRow RPCs
// (spec §4.6).
//
// Grounded on internal/executor/warmpool.go's Start/Stop lifecycle and
// active-work bookkeeping, generalized from "poll a fixed set of active
// runs on a ticker" to "drain two FIFOs on a recurring actor tick",
// reusing internal/actor's AlarmClock for the recurring tick and for
// GetRange's jittered retry scheduling instead of a second goroutine.
package bulk

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rat-data/colstore/internal/actor"
	colerrors "github.com/rat-data/colstore/internal/errors"
	"github.com/rat-data/colstore/internal/retry"
	"github.com/rat-data/colstore/internal/value"
	"github.com/rat-data/colstore/internal/wireclient"
)

// Config tunes the coordinator's batching cadence and limits (spec
// §4.6).
type Config struct {
	TickInterval     time.Duration // default 5ms
	BatchWriteLimit  int           // default 100
	BatchGetRowLimit int           // default 10
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     5 * time.Millisecond,
		BatchWriteLimit:  100,
		BatchGetRowLimit: 10,
	}
}

type opKind int

const (
	opPut opKind = iota
	opUpdate
	opDelete
)

type writeItem struct {
	table       string
	pk          value.PrimaryKey
	kind        opKind
	put         wireclient.PutRowRequest
	update      wireclient.UpdateRowRequest
	del         wireclient.DeleteRowRequest
	future      *Future
	attempt     int
	submittedAt time.Time
}

type readItem struct {
	table       string
	item        wireclient.BatchGetRowItem
	future      *Future
	attempt     int
	submittedAt time.Time
}

// Coordinator batches row-level operations into BatchWriteRow and
// BatchGetRow RPCs on a recurring tick (spec §4.6).
type Coordinator struct {
	wire         *wireclient.Client
	alarms       *actor.AlarmClock
	mailbox      *actor.Mailbox
	retryPolicy  retry.Policy
	cfg          Config
	logger       *slog.Logger

	mu         sync.Mutex
	writeQueue []*writeItem
	readQueue  []*readItem
	stopped    bool
}

// NewCoordinator wires a Coordinator to a shared wireclient.Client,
// actor.AlarmClock, and retry.Policy (spec §5's resource-sharing
// model).
func NewCoordinator(wire *wireclient.Client, alarms *actor.AlarmClock, retryPolicy retry.Policy, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.BatchWriteLimit <= 0 {
		cfg.BatchWriteLimit = DefaultConfig().BatchWriteLimit
	}
	if cfg.BatchGetRowLimit <= 0 {
		cfg.BatchGetRowLimit = DefaultConfig().BatchGetRowLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retryPolicy == nil {
		retryPolicy = retry.NewDeadlineBoundedPolicy(retry.DefaultConfig())
	}
	return &Coordinator{
		wire:        wire,
		alarms:      alarms,
		mailbox:     actor.NewMailbox(0, logger),
		retryPolicy: retryPolicy,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start launches the coordinator's own mailbox and schedules the first
// tick.
func (c *Coordinator) Start(ctx context.Context) {
	c.mailbox.Start(ctx)
	c.scheduleTick()
}

// Stop cancels further ticks and drains the coordinator's mailbox.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.mailbox.Stop()
}

// QueueDepth reports the number of writes and reads currently queued
// awaiting the next tick, for the debug surface (spec §4.8).
func (c *Coordinator) QueueDepth() (writes, reads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writeQueue), len(c.readQueue)
}

func (c *Coordinator) scheduleTick() {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}
	c.alarms.Schedule(time.Now().Add(c.cfg.TickInterval), c.mailbox, func(ctx context.Context) {
		c.tick(ctx)
		c.scheduleTick()
	})
}

// tick dequeues up to the configured limits from each FIFO and, if
// either is non-empty, dispatches the corresponding batch RPC (spec
// §4.6 steps 1-2).
func (c *Coordinator) tick(ctx context.Context) {
	if writes := c.dequeueWriteBatch(); len(writes) > 0 {
		c.dispatchWriteBatch(ctx, writes)
	}
	if reads := c.dequeueReadBatch(); len(reads) > 0 {
		c.dispatchReadBatch(ctx, reads)
	}
}

// SubmitPut enqueues a single-row PutRow for the next write batch.
func (c *Coordinator) SubmitPut(table string, req wireclient.PutRowRequest) *Future {
	f := newFuture()
	c.pushWrite(&writeItem{table: table, pk: req.Row.Key, kind: opPut, put: req, future: f, submittedAt: time.Now()})
	return f
}

// SubmitUpdate enqueues a single-row UpdateRow for the next write batch.
func (c *Coordinator) SubmitUpdate(table string, req wireclient.UpdateRowRequest) *Future {
	f := newFuture()
	c.pushWrite(&writeItem{table: table, pk: req.PrimaryKey, kind: opUpdate, update: req, future: f, submittedAt: time.Now()})
	return f
}

// SubmitDelete enqueues a single-row DeleteRow for the next write batch.
func (c *Coordinator) SubmitDelete(table string, req wireclient.DeleteRowRequest) *Future {
	f := newFuture()
	c.pushWrite(&writeItem{table: table, pk: req.PrimaryKey, kind: opDelete, del: req, future: f, submittedAt: time.Now()})
	return f
}

// SubmitGet enqueues a single-row GetRow for the next read batch.
func (c *Coordinator) SubmitGet(table string, item wireclient.BatchGetRowItem) *Future {
	f := newFuture()
	c.mu.Lock()
	c.readQueue = append(c.readQueue, &readItem{table: table, item: item, future: f, submittedAt: time.Now()})
	c.mu.Unlock()
	return f
}

func (c *Coordinator) pushWrite(it *writeItem) {
	c.mu.Lock()
	c.writeQueue = append(c.writeQueue, it)
	c.mu.Unlock()
}

// dequeueWriteBatch pulls up to BatchWriteLimit items off the front of
// the write FIFO, skipping any row whose fingerprint already appears
// earlier in the batch (spec §4.6 step 3); skipped items keep their
// relative order for the next tick.
func (c *Coordinator) dequeueWriteBatch() []*writeItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[uint64]bool)
	batch := make([]*writeItem, 0, c.cfg.BatchWriteLimit)
	remaining := make([]*writeItem, 0, len(c.writeQueue))
	for _, it := range c.writeQueue {
		if len(batch) >= c.cfg.BatchWriteLimit {
			remaining = append(remaining, it)
			continue
		}
		fp := fingerprint(it.table, it.pk)
		if seen[fp] {
			remaining = append(remaining, it)
			continue
		}
		seen[fp] = true
		batch = append(batch, it)
	}
	c.writeQueue = remaining
	return batch
}

func (c *Coordinator) dequeueReadBatch() []*readItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[uint64]bool)
	batch := make([]*readItem, 0, c.cfg.BatchGetRowLimit)
	remaining := make([]*readItem, 0, len(c.readQueue))
	for _, it := range c.readQueue {
		if len(batch) >= c.cfg.BatchGetRowLimit {
			remaining = append(remaining, it)
			continue
		}
		fp := fingerprint(it.table, it.item.PrimaryKey)
		if seen[fp] {
			remaining = append(remaining, it)
			continue
		}
		seen[fp] = true
		batch = append(batch, it)
	}
	c.readQueue = remaining
	return batch
}

// requeueWrites pushes a batch back onto the front of the write FIFO,
// preserving its internal order (spec §4.6 step 5).
func (c *Coordinator) requeueWrites(items []*writeItem) {
	c.mu.Lock()
	c.writeQueue = append(append([]*writeItem{}, items...), c.writeQueue...)
	c.mu.Unlock()
}

func (c *Coordinator) requeueReads(items []*readItem) {
	c.mu.Lock()
	c.readQueue = append(append([]*readItem{}, items...), c.readQueue...)
	c.mu.Unlock()
}

// dispatchWriteBatch groups items by (kind, table), issues one
// BatchWriteRow RPC, and splits the response back to per-row futures.
func (c *Coordinator) dispatchWriteBatch(ctx context.Context, items []*writeItem) {
	req := wireclient.BatchWriteRowRequest{
		Puts:    make(map[string][]wireclient.PutRowRequest),
		Updates: make(map[string][]wireclient.UpdateRowRequest),
		Deletes: make(map[string][]wireclient.DeleteRowRequest),
	}
	order := make(map[string][]*writeItem) // "kind/table" -> items in request order

	for _, it := range items {
		switch it.kind {
		case opPut:
			req.Puts[it.table] = append(req.Puts[it.table], it.put)
			key := "put/" + it.table
			order[key] = append(order[key], it)
		case opUpdate:
			req.Updates[it.table] = append(req.Updates[it.table], it.update)
			key := "update/" + it.table
			order[key] = append(order[key], it)
		case opDelete:
			req.Deletes[it.table] = append(req.Deletes[it.table], it.del)
			key := "delete/" + it.table
			order[key] = append(order[key], it)
		}
	}

	resp, err := c.wire.BatchWriteRow(ctx, req)
	if err != nil {
		c.handleWholeBatchError(items, err)
		return
	}

	var temporaryRetries []*writeItem
	splitResults := func(kindPrefix string, results map[string][]wireclient.BatchRowResult) {
		for key, batchItems := range order {
			if !strings.HasPrefix(key, kindPrefix) {
				continue
			}
			table := strings.TrimPrefix(key, kindPrefix)
			rows := results[table]
			for i, it := range batchItems {
				if i >= len(rows) {
					it.future.complete(Result{Err: colerrors.NewClient("OTSClientShortResponse", "batch response missing row result")})
					continue
				}
				c.completeOrRetryWrite(it, rows[i], &temporaryRetries)
			}
		}
	}
	splitResults("put/", resp.PutResults)
	splitResults("update/", resp.UpdateResults)
	splitResults("delete/", resp.DeleteResults)

	if len(temporaryRetries) > 0 {
		c.requeueWrites(temporaryRetries)
	}
}

func (c *Coordinator) completeOrRetryWrite(it *writeItem, res wireclient.BatchRowResult, retries *[]*writeItem) {
	if res.Err == nil {
		it.future.complete(Result{Found: res.Found, Row: res.Row})
		return
	}
	// A per-row error carries no HTTP status of its own; a 4xx status
	// lets IsTemporary classify it by its code.
	ce := &colerrors.Error{Code: res.Err.Code, Message: res.Err.Message, HTTPStatus: 400}
	if !ce.IsTemporary() {
		it.future.complete(Result{Err: ce})
		return
	}
	decision := c.retryPolicy.Decide("BatchWriteRow", ce, it.attempt, time.Since(it.submittedAt))
	if !decision.Retry {
		it.future.complete(Result{Err: ce})
		return
	}
	it.attempt++
	*retries = append(*retries, it)
}

func (c *Coordinator) handleWholeBatchError(items []*writeItem, err error) {
	var ce *colerrors.Error
	if errors.As(err, &ce) && ce.IsTemporary() {
		c.requeueWrites(items)
		return
	}
	for _, it := range items {
		it.future.complete(Result{Err: err})
	}
}

func (c *Coordinator) dispatchReadBatch(ctx context.Context, items []*readItem) {
	req := wireclient.BatchGetRowRequest{Tables: make(map[string][]wireclient.BatchGetRowItem)}
	order := make(map[string][]*readItem)
	for _, it := range items {
		req.Tables[it.table] = append(req.Tables[it.table], it.item)
		order[it.table] = append(order[it.table], it)
	}

	resp, err := c.wire.BatchGetRow(ctx, req)
	if err != nil {
		var ce *colerrors.Error
		if errors.As(err, &ce) && ce.IsTemporary() {
			c.requeueReads(items)
			return
		}
		for _, it := range items {
			it.future.complete(Result{Err: err})
		}
		return
	}

	var temporaryRetries []*readItem
	for table, batchItems := range order {
		rows := resp.Tables[table]
		for i, it := range batchItems {
			if i >= len(rows) {
				it.future.complete(Result{Err: colerrors.NewClient("OTSClientShortResponse", "batch response missing row result")})
				continue
			}
			res := rows[i]
			if res.Err == nil {
				it.future.complete(Result{Found: res.Found, Row: res.Row})
				continue
			}
			ce := &colerrors.Error{Code: res.Err.Code, Message: res.Err.Message, HTTPStatus: 400}
			if !ce.IsTemporary() {
				it.future.complete(Result{Err: ce})
				continue
			}
			decision := c.retryPolicy.Decide("BatchGetRow", ce, it.attempt, time.Since(it.submittedAt))
			if !decision.Retry {
				it.future.complete(Result{Err: ce})
				continue
			}
			it.attempt++
			temporaryRetries = append(temporaryRetries, it)
		}
	}
	if len(temporaryRetries) > 0 {
		c.requeueReads(temporaryRetries)
	}
}

// RangeResult is what SubmitGetRange eventually resolves to.
type RangeResult struct {
	Resp *wireclient.GetRangeResponse
	Err  error
}

// RangeFuture is the completion handle returned by SubmitGetRange.
type RangeFuture struct {
	done chan struct{}
	res  RangeResult
}

func newRangeFuture() *RangeFuture {
	return &RangeFuture{done: make(chan struct{})}
}

func (f *RangeFuture) complete(res RangeResult) {
	select {
	case <-f.done:
	default:
		f.res = res
		close(f.done)
	}
}

func (f *RangeFuture) Wait() RangeResult {
	<-f.done
	return f.res
}

const (
	rangeRetryMinJitter = 5 * time.Millisecond
	rangeRetryMaxJitter = 20 * time.Millisecond
)

// SubmitGetRange issues req directly against the WireClient. GetRange
// is never batched, but a temporary failure still schedules a retry
// through the alarm clock with a 5-20ms jittered delay.
func (c *Coordinator) SubmitGetRange(ctx context.Context, req wireclient.GetRangeRequest) *RangeFuture {
	f := newRangeFuture()
	submittedAt := time.Now()
	var attempt int
	var issue func()
	issue = func() {
		resp, err := c.wire.GetRange(ctx, req)
		if err == nil {
			f.complete(RangeResult{Resp: resp})
			return
		}
		var ce *colerrors.Error
		if !errors.As(err, &ce) {
			f.complete(RangeResult{Err: err})
			return
		}
		decision := c.retryPolicy.Decide("GetRange", ce, attempt, time.Since(submittedAt))
		if !decision.Retry {
			f.complete(RangeResult{Err: ce})
			return
		}
		attempt++
		jitter := rangeRetryMinJitter + time.Duration(rand.Int63n(int64(rangeRetryMaxJitter-rangeRetryMinJitter)))
		c.alarms.Schedule(time.Now().Add(jitter), c.mailbox, func(ctx context.Context) { issue() })
	}
	issue()
	return f
}
