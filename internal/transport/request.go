package transport

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rat-data/colstore/internal/mempool"
)

// Request is the data needed to write one HTTP/1.1 request (spec §4.3
// "Request write"). Headers does not include Host or the fixed headers
// (signing, content-type) — those are supplied separately so a client
// can cache its fixed-header block across requests.
type Request struct {
	Method  string
	Path    string
	Host    string // "host:port"
	Headers map[string]string
	Body    mempool.Pieces
}

// FixedHeaderBlock is a cached, pre-rendered block of headers shared
// across requests on one client (e.g. signing algorithm name,
// content-type) — spec §4.3: "a cached 'fixed header block' shared
// across requests on this client".
type FixedHeaderBlock struct {
	rendered []byte
}

// NewFixedHeaderBlock renders headers once into CRLF-separated bytes.
func NewFixedHeaderBlock(headers map[string]string) *FixedHeaderBlock {
	return &FixedHeaderBlock{rendered: renderHeaders(headers)}
}

func renderHeaders(headers map[string]string) []byte {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

// WriteRequest assembles a Pieces sequence representing the full
// request: request line, per-request headers, Host, the fixed header
// block, a blank line, and the body (spec §4.3). No payload bytes are
// copied — the body pieces are appended by reference.
func WriteRequest(req Request, fixed *FixedHeaderBlock) (mempool.Pieces, error) {
	if req.Method == "" || req.Path == "" || req.Host == "" {
		return mempool.Pieces{}, fmt.Errorf("transport: request missing method/path/host")
	}

	var head strings.Builder
	fmt.Fprintf(&head, "%s %s HTTP/1.1\r\n", req.Method, req.Path)
	head.Write(renderHeaders(req.Headers))
	fmt.Fprintf(&head, "Host: %s\r\n", req.Host)
	if fixed != nil {
		head.Write(fixed.rendered)
	}
	head.WriteString("\r\n")

	var out mempool.Pieces
	out.Append(mempool.PieceOf([]byte(head.String())))
	for _, p := range req.Body.Parts() {
		out.Append(p)
	}
	return out, nil
}
