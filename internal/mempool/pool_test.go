package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGetReleaseReusesBlocks(t *testing.T) {
	p := New(64)

	b1 := p.Get()
	assert.Equal(t, Stats{Total: 1, Available: 0, Borrowed: 1}, p.Stats())

	b1.Release()
	assert.Equal(t, Stats{Total: 1, Available: 1, Borrowed: 0}, p.Stats())

	b2 := p.Get()
	assert.Equal(t, Stats{Total: 1, Available: 0, Borrowed: 1}, p.Stats())
	b2.Release()
}

func TestPoolGrowsWithoutBound(t *testing.T) {
	p := New(16)
	var blocks []*Block
	for i := 0; i < 5; i++ {
		blocks = append(blocks, p.Get())
	}
	assert.Equal(t, Stats{Total: 5, Available: 0, Borrowed: 5}, p.Stats())
	for _, b := range blocks {
		b.Release()
	}
	assert.Equal(t, Stats{Total: 5, Available: 5, Borrowed: 0}, p.Stats())
}

func TestBlockReleaseIsIdempotent(t *testing.T) {
	p := New(8)
	b := p.Get()
	b.Release()
	b.Release()
	assert.Equal(t, Stats{Total: 1, Available: 1, Borrowed: 0}, p.Stats())
}

func TestPieceSlice(t *testing.T) {
	p := New(8)
	b := p.Get()
	defer b.Release()
	copy(b.Bytes(), []byte("abcdefgh"))

	piece := b.Piece()
	sub, err := piece.Slice(2, 5)
	require.NoError(t, err)
	assert.Equal(t, "cde", string(sub.Bytes()))

	_, err = piece.Slice(-1, 3)
	assert.Error(t, err)
	_, err = piece.Slice(3, 100)
	assert.Error(t, err)
	_, err = piece.Slice(5, 2)
	assert.Error(t, err)
}

func TestMutableMemPieceFillsIncrementally(t *testing.T) {
	p := New(8)
	b := p.Get()
	defer b.Release()

	m := NewMutablePiece(b)
	assert.False(t, m.Full())

	n := copy(m.Remaining(), []byte("abcd"))
	m.Advance(n)
	assert.False(t, m.Full())
	assert.Equal(t, "abcd", string(m.Written().Bytes()))

	n = copy(m.Remaining(), []byte("efgh"))
	m.Advance(n)
	assert.True(t, m.Full())
	assert.Equal(t, "abcdefgh", string(m.Written().Bytes()))
}

func TestPiecesConcatAndLen(t *testing.T) {
	var ps Pieces
	ps.Append(PieceOf([]byte("foo")))
	ps.Append(PieceOf([]byte("bar")))

	assert.Equal(t, 6, ps.Len())
	assert.Equal(t, "foobar", string(ps.Concat()))
	assert.Len(t, ps.Parts(), 2)

	ps.Reset()
	assert.Equal(t, 0, ps.Len())
}
