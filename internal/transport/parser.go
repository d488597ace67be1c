package transport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/rat-data/colstore/internal/mempool"
)

// parserStage is the response parser's current state (spec §4.3:
// "STATUS_LINE -> HEADERS -> {CONTENT_LENGTH_BODY|CHUNKED_BODY|DONE}").
// Grounded on response_reader.cpp's ResponseParserState chain
// (StatusLineParser -> HeaderParser -> body parser), generalized from a
// byte-at-a-time state class chain to a stage enum plus per-stage feed
// methods operating on whole Pieces.
type parserStage int

const (
	stageStatusLine parserStage = iota
	stageHeaders
	stageContentLengthBody
	stageChunkedBody
	stageDone
)

// ErrCorruptedResponse marks any response parser invariant being
// violated (spec §4.3), classified as a transport error by the caller.
type ErrCorruptedResponse struct{ Reason string }

func (e *ErrCorruptedResponse) Error() string {
	return "transport: corrupted response: " + e.Reason
}

const maxStatusLineLen = 256

// ResponseParser incrementally parses an HTTP/1.1 response without
// copying payload bytes: it records Piece views over the fed buffers and
// only concatenates when a caller asks for the body (spec §4.3
// invariants).
type ResponseParser struct {
	stage parserStage

	// partial carries a prefix of the status line or a header line that
	// has not yet seen its terminating CRLF.
	partial []byte

	httpStatus int64
	headers    map[string]string
	headerKeys []string // preserves first-seen case+order for debug/echo

	contentLength int64
	haveLength    bool
	chunked       bool

	body mempool.Pieces

	// chunk body state
	chunkRemaining int64
	chunkState     chunkParseState
}

type chunkParseState int

const (
	chunkReadSize chunkParseState = iota
	chunkReadData
	chunkReadDataCRLF
	chunkReadTrailerCRLF
)

// NewResponseParser creates a parser positioned at the start of a
// response.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{headers: make(map[string]string)}
}

// Done reports whether the full response (headers + body) has been
// parsed.
func (p *ResponseParser) Done() bool { return p.stage == stageDone }

// StatusCode returns the parsed HTTP status, valid once headers are
// parsed.
func (p *ResponseParser) StatusCode() int64 { return p.httpStatus }

// Header returns a header value by case-insensitive name.
func (p *ResponseParser) Header(name string) (string, bool) {
	v, ok := p.headers[strings.ToLower(name)]
	return v, ok
}

// Body returns the accumulated response body pieces. Valid once Done.
func (p *ResponseParser) Body() *mempool.Pieces { return &p.body }

// Feed delivers one more chunk of response bytes. It returns true if the
// parser needs more input to make progress (spec §4.3: "need more");
// once Done() is true, any further input is ignored and Feed returns
// (false, nil).
func (p *ResponseParser) Feed(piece mempool.Piece) (needMore bool, err error) {
	data := piece.Bytes()
	for len(data) > 0 && p.stage != stageDone {
		var consumed int
		switch p.stage {
		case stageStatusLine:
			consumed, err = p.feedStatusLine(data)
		case stageHeaders:
			consumed, err = p.feedHeaders(data)
		case stageContentLengthBody:
			consumed, err = p.feedContentLengthBody(data, piece)
		case stageChunkedBody:
			consumed, err = p.feedChunkedBody(data, piece)
		}
		if err != nil {
			return false, err
		}
		if consumed == 0 {
			// stage made no progress on the rest of this piece; it needs
			// a fresh feed to continue.
			return true, nil
		}
		data = data[consumed:]
	}
	if p.stage == stageDone {
		return false, nil
	}
	return true, nil
}

func (p *ResponseParser) feedStatusLine(data []byte) (int, error) {
	buf := append(p.partial, data...)
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		if len(buf) > maxStatusLineLen {
			return 0, &ErrCorruptedResponse{Reason: fmt.Sprintf("status line exceeds %d bytes", maxStatusLineLen)}
		}
		consumed := len(data)
		p.partial = buf
		return consumed, nil
	}
	line := buf[:idx]
	consumedFromData := idx + 2 - len(p.partial)
	p.partial = nil

	status, err := parseStatusLine(string(line))
	if err != nil {
		return 0, err
	}
	p.httpStatus = status
	p.stage = stageHeaders
	if consumedFromData < 0 {
		consumedFromData = 0
	}
	return consumedFromData, nil
}

func parseStatusLine(line string) (int64, error) {
	// "HTTP/1.1 <3-digit status> <reason>"
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.1") {
		return 0, &ErrCorruptedResponse{Reason: fmt.Sprintf("malformed status line %q", line)}
	}
	if len(parts[1]) != 3 {
		return 0, &ErrCorruptedResponse{Reason: fmt.Sprintf("malformed status code %q", parts[1])}
	}
	status, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, &ErrCorruptedResponse{Reason: fmt.Sprintf("non-numeric status code %q", parts[1])}
	}
	return status, nil
}

func (p *ResponseParser) feedHeaders(data []byte) (int, error) {
	buf := append(p.partial, data...)
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		consumed := len(data)
		p.partial = buf
		return consumed, nil
	}
	line := buf[:idx]
	consumedFromData := idx + 2 - len(p.partial)
	if consumedFromData < 0 {
		consumedFromData = 0
	}
	p.partial = nil

	if len(line) == 0 {
		// blank line: end of headers, select body mode
		if err := p.selectBodyMode(); err != nil {
			return 0, err
		}
		return consumedFromData, nil
	}

	name, value, err := parseHeaderLine(string(line))
	if err != nil {
		return 0, err
	}
	key := strings.ToLower(name)
	if _, dup := p.headers[key]; dup {
		return 0, &ErrCorruptedResponse{Reason: fmt.Sprintf("duplicate header %q", name)}
	}
	p.headers[key] = value
	p.headerKeys = append(p.headerKeys, name)
	return consumedFromData, nil
}

func parseHeaderLine(line string) (name, value string, err error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", &ErrCorruptedResponse{Reason: fmt.Sprintf("malformed header line %q", line)}
	}
	name = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if name == "" {
		return "", "", &ErrCorruptedResponse{Reason: "empty header name"}
	}
	return name, value, nil
}

func (p *ResponseParser) selectBodyMode() error {
	if te, ok := p.Header("Transfer-Encoding"); ok {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return &ErrCorruptedResponse{Reason: fmt.Sprintf("unsupported Transfer-Encoding %q", te)}
		}
		p.chunked = true
		p.stage = stageChunkedBody
		p.chunkState = chunkReadSize
		return nil
	}
	cl, ok := p.Header("Content-Length")
	if !ok {
		return &ErrCorruptedResponse{Reason: "response has neither Content-Length nor chunked Transfer-Encoding"}
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return &ErrCorruptedResponse{Reason: fmt.Sprintf("malformed Content-Length %q", cl)}
	}
	p.contentLength = n
	p.haveLength = true
	if n == 0 {
		p.stage = stageDone
		return nil
	}
	p.stage = stageContentLengthBody
	return nil
}

func (p *ResponseParser) feedContentLengthBody(data []byte, piece mempool.Piece) (int, error) {
	remaining := p.contentLength - int64(p.body.Len())
	take := int64(len(data))
	if take > remaining {
		take = remaining
	}
	sub, err := piece.Slice(len(piece.Bytes())-len(data), len(piece.Bytes())-len(data)+int(take))
	if err != nil {
		return 0, err
	}
	p.body.Append(sub)
	if int64(p.body.Len()) >= p.contentLength {
		p.stage = stageDone
	}
	return int(take), nil
}

// feedChunkedBody implements "HEXSIZE CRLF <size bytes> CRLF ... 0 CRLF
// CRLF" (spec §4.3). Chunk size overflow during hex accumulation is
// corruption.
func (p *ResponseParser) feedChunkedBody(data []byte, piece mempool.Piece) (int, error) {
	switch p.chunkState {
	case chunkReadSize:
		buf := append(p.partial, data...)
		idx := bytes.Index(buf, []byte("\r\n"))
		if idx < 0 {
			consumed := len(data)
			p.partial = buf
			return consumed, nil
		}
		line := buf[:idx]
		consumedFromData := idx + 2 - len(p.partial)
		if consumedFromData < 0 {
			consumedFromData = 0
		}
		p.partial = nil

		// chunk extensions after ';' are ignored
		sizeHex := string(line)
		if semi := strings.IndexByte(sizeHex, ';'); semi >= 0 {
			sizeHex = sizeHex[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeHex), 16, 64)
		if err != nil || size < 0 {
			return 0, &ErrCorruptedResponse{Reason: fmt.Sprintf("malformed chunk size %q", sizeHex)}
		}
		p.chunkRemaining = size
		if size == 0 {
			p.chunkState = chunkReadTrailerCRLF
		} else {
			p.chunkState = chunkReadData
		}
		return consumedFromData, nil

	case chunkReadData:
		take := p.chunkRemaining
		if int64(len(data)) < take {
			take = int64(len(data))
		}
		sub, err := piece.Slice(len(piece.Bytes())-len(data), len(piece.Bytes())-len(data)+int(take))
		if err != nil {
			return 0, err
		}
		p.body.Append(sub)
		p.chunkRemaining -= take
		if p.chunkRemaining == 0 {
			p.chunkState = chunkReadDataCRLF
		}
		return int(take), nil

	case chunkReadDataCRLF:
		buf := append(p.partial, data...)
		if len(buf) < 2 {
			p.partial = buf
			return len(data), nil
		}
		if buf[0] != '\r' || buf[1] != '\n' {
			return 0, &ErrCorruptedResponse{Reason: "chunk data not terminated by CRLF"}
		}
		consumedFromData := 2 - len(p.partial)
		if consumedFromData < 0 {
			consumedFromData = 0
		}
		p.partial = nil
		p.chunkState = chunkReadSize
		return consumedFromData, nil

	case chunkReadTrailerCRLF:
		buf := append(p.partial, data...)
		idx := bytes.Index(buf, []byte("\r\n"))
		if idx < 0 {
			consumed := len(data)
			p.partial = buf
			return consumed, nil
		}
		consumedFromData := idx + 2 - len(p.partial)
		if consumedFromData < 0 {
			consumedFromData = 0
		}
		p.partial = nil
		if idx == 0 {
			// final CRLF after the zero-length chunk: body done
			p.stage = stageDone
			return consumedFromData, nil
		}
		// a trailer header line: ignored, keep consuming trailer lines
		return consumedFromData, nil

	default:
		return 0, &ErrCorruptedResponse{Reason: "unreachable chunk parse state"}
	}
}
