package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/value"
)

type recordingObserver struct {
	rows      []value.Row
	completed bool
	err       error
}

func (r *recordingObserver) OnNext(row value.Row) error {
	r.rows = append(r.rows, row)
	return nil
}
func (r *recordingObserver) OnCompletion()  { r.completed = true }
func (r *recordingObserver) OnError(err error) { r.err = err }

func TestGraphEmitNextReachesChildren(t *testing.T) {
	g := NewGraph()
	a := &recordingObserver{}
	b := &recordingObserver{}
	parent := g.Add(&recordingObserver{})
	childA := g.Add(a)
	childB := g.Add(b)
	g.Connect(parent, childA)
	g.Connect(parent, childB)

	row := value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(1)}}}}
	require.NoError(t, g.EmitNext(parent, row))
	assert.Len(t, a.rows, 1)
	assert.Len(t, b.rows, 1)
}

func TestGraphEmitNextStopsAtFirstError(t *testing.T) {
	g := NewGraph()
	parent := g.Add(&recordingObserver{})
	failing := g.Add(&failingObserver{err: errors.New("boom")})
	g.Connect(parent, failing)

	err := g.EmitNext(parent, value.Row{})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestGraphEmitCompletionAndError(t *testing.T) {
	g := NewGraph()
	a := &recordingObserver{}
	parent := g.Add(&recordingObserver{})
	child := g.Add(a)
	g.Connect(parent, child)

	g.EmitCompletion(parent)
	assert.True(t, a.completed)

	boom := errors.New("boom")
	g.EmitError(parent, boom)
	assert.Equal(t, boom, a.err)
}

type failingObserver struct{ err error }

func (f *failingObserver) OnNext(value.Row) error { return f.err }
func (f *failingObserver) OnCompletion()          {}
func (f *failingObserver) OnError(error)          {}
