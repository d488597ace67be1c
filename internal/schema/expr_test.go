package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/value"
)

func attrLookup(m map[string]value.Value) func(string) (value.Value, bool) {
	return func(name string) (value.Value, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestEvalHexCrc64Str(t *testing.T) {
	expr := Hex(Crc64Str(Attr("name")))
	lookup := attrLookup(map[string]value.Value{"name": value.StringFrom("123456789")})

	got, err := Eval(expr, lookup)
	require.NoError(t, err)

	// Spec example 4's pinned worked value for hash_name.
	assert.Equal(t, value.KindString, got.Kind())
	s, _ := got.AsBytes()
	assert.Equal(t, "E9C6D914C4B8D9CA", string(s))
}

func TestCrc64JonesMatchesPinnedCheckValue(t *testing.T) {
	assert.Equal(t, uint64(0xe9c6d914c4b8d9ca), crc64Jones([]byte("123456789")))
}

func TestShiftToUint64FlipsSignBit(t *testing.T) {
	cases := []struct {
		in   int64
		want uint64
	}{
		{in: math.MinInt64, want: 0},                  // INT64_MIN
		{in: 0, want: 0x8000000000000000},             // 0
		{in: math.MaxInt64, want: 0xFFFFFFFFFFFFFFFF}, // INT64_MAX
	}
	for _, tc := range cases {
		expr := ShiftToUint64(Attr("n"))
		lookup := attrLookup(map[string]value.Value{"n": value.Integer(tc.in)})
		got, err := Eval(expr, lookup)
		require.NoError(t, err)
		i, ok := got.AsInteger()
		require.True(t, ok)
		assert.Equal(t, tc.want, uint64(i))
	}
}

func TestExprValidateRejectsConcatOfHash(t *testing.T) {
	bad := Concat("|", Crc64Int(Attr("a")), Attr("b"))
	require.Error(t, bad.Validate())

	good := Concat("|", Attr("a"), Attr("b"))
	require.NoError(t, good.Validate())
}

func TestExprAttrNames(t *testing.T) {
	e := Concat("|", Attr("a"), Hex(Crc64Str(Attr("b"))))
	names := e.AttrNames()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestIsHashed(t *testing.T) {
	assert.True(t, Crc64Int(Attr("a")).IsHashed())
	assert.True(t, Hex(Crc64Str(Attr("a"))).IsHashed())
	assert.False(t, Attr("a").IsHashed())
}

func TestPkeyColSchemaAutoIncrementRequiresInteger(t *testing.T) {
	bad := PkeyColSchema{Name: "pkey", Type: ColumnTypeString, Option: PkeyOptionAutoIncrement}
	require.Error(t, bad.Validate())

	good := PkeyColSchema{Name: "pkey", Type: ColumnTypeInteger, Option: PkeyOptionAutoIncrement}
	require.NoError(t, good.Validate())
}

func TestCollectionValidateRejectsUnknownAttr(t *testing.T) {
	c := Collection{
		Name:          "faces",
		Primary:       TableSchema{Name: "primary", PkeySchema: []PkeyColSchema{{Name: "pkey", Type: ColumnTypeInteger}}},
		RequiredAttrs: []string{"name"},
		Indexes: []IndexSchema{{
			Table: TableSchema{Name: "by_hash", PkeySchema: []PkeyColSchema{{Name: "hash_name", Type: ColumnTypeString}}},
			PkeyDefs: []PkeyColDef{{
				Name: "hash_name",
				Type: ColumnTypeString,
				Expr: Hex(Crc64Str(Attr("missing"))),
			}},
		}},
	}
	require.Error(t, c.Validate())
}
