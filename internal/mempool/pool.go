// Package mempool implements the fixed-block slab allocator and the
// zero-copy byte-view types (Piece, MutableMemPiece, Pieces) that the
// transport and wireclient layers pass request/response bytes through
// without copying (spec §4.1).
//
// Grounded on internal/cache/cache.go's generic, mutex-guarded,
// capacity-aware container shape — the same "map + bookkeeping slice,
// guarded by one mutex, evict when full" structure, with blocks standing
// in for cache entries and a free-list standing in for TTL expiry.
//
// An explicit free-list is used instead of sync.Pool because sync.Pool
// offers no way to report {total, available, borrowed} counts (spec
// §4.1 requires the pool to report them) and may silently drop pooled
// items under GC pressure, which would violate "blocks may grow without
// bound but must report counts" — callers need an exact count, not a
// best-effort one.
package mempool

import (
	"fmt"
	"sync"
)

// DefaultBlockSize is the default block size lent to callers (~1 MiB,
// spec §4.1).
const DefaultBlockSize = 1 << 20

// Stats reports the pool's current block accounting (spec §4.1:
// "{total, available, borrowed}").
type Stats struct {
	Total     int
	Available int
	Borrowed  int
}

// block is one fixed-size allocation owned by the pool.
type block struct {
	buf []byte
}

// Pool is a thread-safe slab allocator of fixed-size blocks. Blocks are
// lent via Get and returned via Put; the pool never shrinks, only grows,
// matching spec §4.1 ("blocks may grow without bound").
type Pool struct {
	mu        sync.Mutex
	blockSize int
	free      []*block
	total     int
	borrowed  int
}

// New creates a Pool whose blocks are blockSize bytes. blockSize <= 0
// uses DefaultBlockSize.
func New(blockSize int) *Pool {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Pool{blockSize: blockSize}
}

// Get lends a block from the free-list, allocating a new one if the
// free-list is empty.
func (p *Pool) Get() *Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b *block
	if n := len(p.free); n > 0 {
		b = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		b = &block{buf: make([]byte, p.blockSize)}
		p.total++
	}
	p.borrowed++
	return &Block{pool: p, raw: b}
}

// put returns a block to the free-list. Called from Block.Release.
func (p *Pool) put(b *block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, b)
	p.borrowed--
}

// Stats returns the pool's current accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: p.total, Available: len(p.free), Borrowed: p.borrowed}
}

// BlockSize returns the fixed size of every block this pool lends.
func (p *Pool) BlockSize() int { return p.blockSize }

// Block is a lent block of memory. Callers must call Release exactly
// once when done; a Block used after Release is a programming error
// (the same discipline spec §3 places on Connection.destroy()).
type Block struct {
	pool     *Pool
	raw      *block
	released bool
}

// Bytes returns the full backing slice. Callers typically take a
// sub-slice and wrap it in a Piece rather than holding this directly.
func (b *Block) Bytes() []byte { return b.raw.buf }

// Piece returns an immutable view over the whole block.
func (b *Block) Piece() Piece { return Piece{block: b, data: b.raw.buf} }

// Release returns the block to its pool. Idempotent — a second call is a
// no-op, mirroring Connection's destroy() idempotence (spec §3).
func (b *Block) Release() {
	if b.released {
		return
	}
	b.released = true
	b.pool.put(b.raw)
}

// Piece is an immutable byte view into a pool-owned block, moved by
// reference without copying (spec §4.1 glossary).
type Piece struct {
	block *Block // keeps the backing block alive; nil for a view over caller-owned bytes
	data  []byte
}

// PieceOf wraps a caller-owned slice (e.g. a cached fixed-header block
// shared across requests, spec §4.3) without pool bookkeeping.
func PieceOf(b []byte) Piece { return Piece{data: b} }

// Bytes returns the viewed bytes. Callers must not retain a reference
// past the owning Block's Release.
func (p Piece) Bytes() []byte { return p.data }

// Len returns the number of bytes in the view.
func (p Piece) Len() int { return len(p.data) }

// Slice returns a sub-view [from:to) sharing the same backing block.
func (p Piece) Slice(from, to int) (Piece, error) {
	if from < 0 || to > len(p.data) || from > to {
		return Piece{}, fmt.Errorf("mempool: invalid slice [%d:%d) of piece len %d", from, to, len(p.data))
	}
	return Piece{block: p.block, data: p.data[from:to]}, nil
}

// MutableMemPiece is a writable view into a pool-owned block, used while
// a buffer is still being filled (e.g. the parser's current read target).
type MutableMemPiece struct {
	block *Block
	data  []byte
	n     int // bytes written so far
}

// NewMutablePiece wraps a block for writing.
func NewMutablePiece(b *Block) *MutableMemPiece {
	return &MutableMemPiece{block: b, data: b.raw.buf}
}

// Remaining returns the unwritten tail of the backing buffer, the slice a
// reader should fill next.
func (m *MutableMemPiece) Remaining() []byte { return m.data[m.n:] }

// Advance records that n more bytes were written.
func (m *MutableMemPiece) Advance(n int) { m.n += n }

// Written returns an immutable Piece over the bytes written so far.
func (m *MutableMemPiece) Written() Piece {
	return Piece{block: m.block, data: m.data[:m.n]}
}

// Full reports whether the backing buffer has no remaining capacity.
func (m *MutableMemPiece) Full() bool { return m.n >= len(m.data) }

// Pieces is a discontiguous buffer: a sequence of Piece views, used
// wherever bytes cross layers (request body, parsed response body,
// chunked transfer) without ever being copied into one contiguous slice
// (spec §4.1, §4.3).
type Pieces struct {
	parts []Piece
}

// Append adds p to the end of the sequence.
func (ps *Pieces) Append(p Piece) { ps.parts = append(ps.parts, p) }

// Len returns the total byte length across all pieces.
func (ps *Pieces) Len() int {
	n := 0
	for _, p := range ps.parts {
		n += p.Len()
	}
	return n
}

// Parts returns the underlying piece slice. Callers must not mutate it.
func (ps *Pieces) Parts() []Piece { return ps.parts }

// Concat copies every piece into one contiguous slice. Used only at the
// boundary where a caller needs a single []byte (e.g. handing a body to
// a Codec) — everything upstream of that boundary stays zero-copy.
func (ps *Pieces) Concat() []byte {
	out := make([]byte, 0, ps.Len())
	for _, p := range ps.parts {
		out = append(out, p.Bytes()...)
	}
	return out
}

// Reset empties the sequence without releasing the underlying blocks —
// callers that own the blocks release them independently.
func (ps *Pieces) Reset() { ps.parts = ps.parts[:0] }
