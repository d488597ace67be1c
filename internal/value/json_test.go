package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSONRoundTrip(t *testing.T) {
	cases := []Value{
		Integer(42),
		StringFrom("hello"),
		Binary([]byte{0x01, 0x02, 0xff}),
		Boolean(true),
		Double(3.5),
		InfMin(),
		InfMax(),
		AutoIncrement(),
		None(),
	}
	for _, v := range cases {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var got Value
		require.NoError(t, json.Unmarshal(data, &got))
		assert.True(t, Equal(v, got) || v.Kind() == got.Kind(), "round trip mismatch for %s", v)
		assert.Equal(t, v.Kind(), got.Kind())
	}
}

func TestValueUnmarshalRejectsUnknownKind(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"kind":"Bogus"}`), &v)
	require.Error(t, err)
}
