package actor

import (
	"context"
	"hash/fnv"
	"log/slog"
)

// Pool is a fixed-size set of actors. A request is pinned to one actor by
// hash(tracker_id) mod actor_count (spec §4.2), so every callback for a
// given tracker observes the others' writes without explicit locking.
type Pool struct {
	mailboxes []*Mailbox
}

// NewPool creates a Pool of n actors, each with the given per-mailbox
// capacity (0 uses the default).
func NewPool(ctx context.Context, n, mailboxCapacity int, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{mailboxes: make([]*Mailbox, n)}
	for i := range p.mailboxes {
		m := NewMailbox(mailboxCapacity, logger)
		m.Start(ctx)
		p.mailboxes[i] = m
	}
	return p
}

// For returns the actor a trackerID is pinned to.
func (p *Pool) For(trackerID string) *Mailbox {
	return p.mailboxes[hashTrackerID(trackerID)%uint64(len(p.mailboxes))]
}

// PushBack enqueues t on the actor that trackerID hashes to.
func (p *Pool) PushBack(trackerID string, t Task) error {
	return p.For(trackerID).PushBack(t)
}

// Stop stops every actor in the pool and waits for each to drain.
func (p *Pool) Stop() {
	for _, m := range p.mailboxes {
		m.Stop()
	}
}

// Depths reports each actor's current mailbox depth, for the debug
// surface (spec §4.8).
func (p *Pool) Depths() []int {
	out := make([]int, len(p.mailboxes))
	for i, m := range p.mailboxes {
		out[i] = m.Depth()
	}
	return out
}

func hashTrackerID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
