package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/value"
)

func rowWithAttr(id int64, name string, v value.Value) value.Row {
	return value.Row{
		Key:        value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(id)}}},
		Attributes: []value.Attribute{{Name: name, Value: v}},
	}
}

func TestMatcherDropsNonMatchingRows(t *testing.T) {
	g := NewGraph()
	sinkID, sink := newRowCollector(g)
	m := NewMatcher(g, FieldCondition{Field: "status", Op: OpEq, Value: value.StringFrom("active")})
	g.Connect(m, sinkID)

	require.NoError(t, g.EmitNext(m, rowWithAttr(1, "status", value.StringFrom("active"))))
	require.NoError(t, g.EmitNext(m, rowWithAttr(2, "status", value.StringFrom("inactive"))))
	g.EmitCompletion(m)

	<-sink.done
	require.Len(t, sink.rows, 1)
	idv, _ := sink.rows[0].Key.Get("id")
	n, _ := idv.AsInteger()
	assert.Equal(t, int64(1), n)
}

func TestMatcherFallsBackToKeyColumn(t *testing.T) {
	g := NewGraph()
	sinkID, sink := newRowCollector(g)
	m := NewMatcher(g, FieldCondition{Field: "id", Op: OpGe, Value: value.Integer(2)})
	g.Connect(m, sinkID)

	require.NoError(t, g.EmitNext(m, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(1)}}}}))
	require.NoError(t, g.EmitNext(m, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(3)}}}}))
	g.EmitCompletion(m)

	<-sink.done
	require.Len(t, sink.rows, 1)
}

func TestSorterOrdersOnCompletion(t *testing.T) {
	g := NewGraph()
	sinkID, sink := newRowCollector(g)
	s := NewSorter(g, "id", -1)
	g.Connect(s, sinkID)

	require.NoError(t, g.EmitNext(s, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(1)}}}}))
	require.NoError(t, g.EmitNext(s, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(3)}}}}))
	require.NoError(t, g.EmitNext(s, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(2)}}}}))
	g.EmitCompletion(s)

	<-sink.done
	require.Len(t, sink.rows, 3)
	var got []int64
	for _, r := range sink.rows {
		v, _ := r.Key.Get("id")
		n, _ := v.AsInteger()
		got = append(got, n)
	}
	assert.Equal(t, []int64{3, 2, 1}, got)
}

func TestSliceWindowSkipsAndLimits(t *testing.T) {
	g := NewGraph()
	sinkID, sink := newRowCollector(g)
	qq := &QuickQuit{}
	w := NewSliceWindow(g, 1, 2, qq)
	g.Connect(w, sinkID)

	for i := int64(0); i < 5; i++ {
		require.NoError(t, g.EmitNext(w, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(i)}}}}))
	}
	g.EmitCompletion(w)

	<-sink.done
	require.Len(t, sink.rows, 2)
	v0, _ := sink.rows[0].Key.Get("id")
	n0, _ := v0.AsInteger()
	assert.Equal(t, int64(1), n0)
	assert.True(t, qq.Get())
}

func TestSliceWindowUnboundedLimitZero(t *testing.T) {
	g := NewGraph()
	sinkID, sink := newRowCollector(g)
	w := NewSliceWindow(g, 0, 0, nil)
	g.Connect(w, sinkID)

	for i := int64(0); i < 3; i++ {
		require.NoError(t, g.EmitNext(w, value.Row{Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(i)}}}}))
	}
	g.EmitCompletion(w)

	<-sink.done
	assert.Len(t, sink.rows, 3)
}

func TestRowToJsonProjection(t *testing.T) {
	g := NewGraph()
	_, sink := NewRowToJson(g, []string{"id", "name"})

	row := value.Row{
		Key:        value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(7)}}},
		Attributes: []value.Attribute{{Name: "name", Value: value.StringFrom("widget")}, {Name: "secret", Value: value.Integer(1)}},
	}
	require.NoError(t, sink.OnNext(row))
	sink.OnCompletion()
	<-sink.Done

	require.Len(t, sink.Rows, 1)
	assert.Equal(t, int64(7), sink.Rows[0]["id"])
	assert.Equal(t, "widget", sink.Rows[0]["name"])
	_, hasSecret := sink.Rows[0]["secret"]
	assert.False(t, hasSecret)
}

func TestRowToJsonEmptyProjectionIncludesAll(t *testing.T) {
	g := NewGraph()
	_, sink := NewRowToJson(g, nil)

	row := value.Row{
		Key:        value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(7)}}},
		Attributes: []value.Attribute{{Name: "name", Value: value.StringFrom("widget")}},
	}
	require.NoError(t, sink.OnNext(row))
	sink.OnCompletion()
	<-sink.Done

	require.Len(t, sink.Rows, 1)
	assert.Equal(t, int64(7), sink.Rows[0]["id"])
	assert.Equal(t, "widget", sink.Rows[0]["name"])
}
