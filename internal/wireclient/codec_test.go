package wireclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/value"
)

func TestJSONCodecRoundTripsValueBearingTypes(t *testing.T) {
	codec := JSONCodec{}

	req := PutRowRequest{
		TableName: "widgets",
		Row: value.Row{
			Key: value.PrimaryKey{Columns: []value.PrimaryKeyColumn{{Name: "id", Value: value.Integer(7)}}},
			Attributes: []value.Attribute{
				{Name: "name", Value: value.StringFrom("bolt")},
			},
		},
	}

	data, err := codec.Encode(req)
	require.NoError(t, err)

	var got PutRowRequest
	require.NoError(t, codec.Decode(data, &got))

	assert.Equal(t, "widgets", got.TableName)
	gotID, ok := got.Row.Key.Get("id")
	require.True(t, ok)
	i, ok := gotID.AsInteger()
	require.True(t, ok)
	assert.EqualValues(t, 7, i)

	name, ok := got.Row.Attr("name")
	require.True(t, ok)
	s, _ := name.AsBytes()
	assert.Equal(t, "bolt", string(s))
}

func TestJSONCodecName(t *testing.T) {
	assert.Equal(t, "json", JSONCodec{}.Name())
}
