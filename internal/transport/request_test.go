package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/mempool"
)

func TestWriteRequestShape(t *testing.T) {
	fixed := NewFixedHeaderBlock(map[string]string{"X-Signature": "abc", "Content-Type": "application/json"})

	var body mempool.Pieces
	body.Append(mempool.PieceOf([]byte(`{"a":1}`)))

	req := Request{
		Method:  "POST",
		Path:    "/PutRow",
		Host:    "127.0.0.1:80",
		Headers: map[string]string{"X-Tracker-Id": "t-1"},
		Body:    body,
	}

	pieces, err := WriteRequest(req, fixed)
	require.NoError(t, err)

	raw := string(pieces.Concat())
	assert.True(t, strings.HasPrefix(raw, "POST /PutRow HTTP/1.1\r\n"))
	assert.Contains(t, raw, "X-Tracker-Id: t-1\r\n")
	assert.Contains(t, raw, "Host: 127.0.0.1:80\r\n")
	assert.Contains(t, raw, "X-Signature: abc\r\n")
	assert.True(t, strings.HasSuffix(raw, `{"a":1}`))
	assert.Contains(t, raw, "\r\n\r\n{")
}

func TestWriteRequestRejectsMissingFields(t *testing.T) {
	_, err := WriteRequest(Request{}, nil)
	require.Error(t, err)
}
