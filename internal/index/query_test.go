package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/value"
)

func TestBindColumnsPointThenRange(t *testing.T) {
	defs := []schema.PkeyColDef{
		{Name: "tenant", Expr: schema.Attr("tenant")},
		{Name: "score", Expr: schema.Attr("score")},
		{Name: "id", Expr: schema.Attr("id")},
	}
	cond := Condition{Fields: []FieldCondition{
		{Field: "tenant", Op: OpEq, Value: value.Integer(1)},
		{Field: "score", Op: OpGe, Value: value.Integer(10)},
	}}
	bindings := bindColumns(defs, cond)
	require.Len(t, bindings, 3)
	assert.Equal(t, "point", bindings[0].kind)
	assert.Equal(t, "range", bindings[1].kind)
	assert.Equal(t, "unbounded", bindings[2].kind)
	assert.False(t, fullyPointFixed(bindings))
}

func TestBindColumnsAllPoint(t *testing.T) {
	defs := []schema.PkeyColDef{
		{Name: "id", Expr: schema.Attr("id")},
	}
	cond := Condition{Fields: []FieldCondition{{Field: "id", Op: OpEq, Value: value.Integer(9)}}}
	bindings := bindColumns(defs, cond)
	assert.True(t, fullyPointFixed(bindings))
}

func TestCrossProductCombosMultipliesOverIn(t *testing.T) {
	defs := []schema.PkeyColDef{
		{Name: "tenant", Expr: schema.Attr("tenant")},
		{Name: "id", Expr: schema.Attr("id")},
	}
	cond := Condition{Fields: []FieldCondition{
		{Field: "tenant", Op: OpIn, Values: []value.Value{value.Integer(1), value.Integer(2)}},
		{Field: "id", Op: OpIn, Values: []value.Value{value.Integer(10), value.Integer(20)}},
	}}
	bindings := bindColumns(defs, cond)
	combos := crossProductCombos(bindings, cond)
	assert.Len(t, combos, 4)
}

func TestRangeBoundsExclusiveUpperFromSuccessor(t *testing.T) {
	defs := []schema.PkeyColDef{
		{Name: "id", Expr: schema.Attr("id")},
	}
	cond := Condition{Fields: []FieldCondition{{Field: "id", Op: OpLe, Value: value.Integer(9)}}}
	bindings := bindColumns(defs, cond)
	start, end, err := rangeBounds(bindings, map[string]value.Value{})
	require.NoError(t, err)
	sv, _ := start.Get("id")
	ev, _ := end.Get("id")
	assert.Equal(t, value.KindInfMin, sv.Kind())
	n, _ := ev.AsInteger()
	assert.Equal(t, int64(10), n)
}

func TestRangeBoundsUnboundedColumnsClampToSentinels(t *testing.T) {
	defs := []schema.PkeyColDef{
		{Name: "tenant", Expr: schema.Attr("tenant")},
		{Name: "id", Expr: schema.Attr("id")},
	}
	cond := Condition{Fields: []FieldCondition{{Field: "tenant", Op: OpEq, Value: value.Integer(7)}}}
	bindings := bindColumns(defs, cond)
	start, end, err := rangeBounds(bindings, map[string]value.Value{"tenant": value.Integer(7)})
	require.NoError(t, err)
	sid, _ := start.Get("id")
	eid, _ := end.Get("id")
	assert.Equal(t, value.KindInfMin, sid.Kind())
	assert.Equal(t, value.KindInfMax, eid.Kind())
}

func TestMergeRowSetAndUnset(t *testing.T) {
	row := value.Row{
		Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(1)}}},
		Attributes: []value.Attribute{
			{Name: "name", Value: value.StringFrom("old")},
			{Name: "extra", Value: value.Integer(1)},
		},
	}
	mut := Mutation{
		Set:   map[string]value.Value{"name": value.StringFrom("new")},
		Unset: []string{"extra"},
	}
	merged := mergeRow(row, mut)
	nameBytes, _ := merged["name"].AsBytes()
	assert.Equal(t, "new", string(nameBytes))
	_, hasExtra := merged["extra"]
	assert.False(t, hasExtra)
	_, hasID := merged["id"]
	assert.True(t, hasID)
}

func TestConditionIsPointOnPrimaryPkey(t *testing.T) {
	coll := widgetCollection()
	o := NewOverlay(nil, coll)

	good := Condition{Fields: []FieldCondition{{Field: "id", Op: OpEq, Value: value.Integer(1)}}}
	assert.True(t, o.conditionIsPointOnPrimaryPkey(good))

	bad := Condition{Fields: []FieldCondition{{Field: "id", Op: OpGe, Value: value.Integer(1)}}}
	assert.False(t, o.conditionIsPointOnPrimaryPkey(bad))

	missing := Condition{}
	assert.False(t, o.conditionIsPointOnPrimaryPkey(missing))
}
