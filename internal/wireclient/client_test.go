package wireclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/actor"
	colerrors "github.com/rat-data/colstore/internal/errors"
	"github.com/rat-data/colstore/internal/mempool"
	"github.com/rat-data/colstore/internal/signing"
	"github.com/rat-data/colstore/internal/transport"
)

// startFakeServer accepts one connection, reads one HTTP/1.1 request
// (headers + Content-Length body), and replies with the given raw
// status line/body, repeating for every subsequent request on the same
// connection. It is a server-side stand-in written only for this test,
// not a reimplementation of the library's own parser.
func startFakeServer(t *testing.T, status string, body string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := r.ReadString('\n'); err != nil { // request line
			return
		}
		contentLength := 0
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			if strings.HasPrefix(strings.ToLower(line), "content-length:") {
				fmt.Sscanf(strings.TrimSpace(line[len("content-length:"):]), "%d", &contentLength)
			}
		}
		buf := make([]byte, contentLength)
		if contentLength > 0 {
			if _, err := readFull(r, buf); err != nil {
				return
			}
		}
		resp := fmt.Sprintf("HTTP/1.1 %s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
		_, _ = conn.Write([]byte(resp))
	}()
	return ln.Addr().String()
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	pool := mempool.New(0)
	alarms := actor.NewAlarmClock(nil)
	alarms.Start(context.Background())
	t.Cleanup(alarms.Stop)
	actors := actor.NewPool(context.Background(), 2, 16, nil)
	t.Cleanup(actors.Stop)

	tc := transport.NewClient(transport.PoolConfig{MaxConnections: 4}, pool, alarms, nil)

	client, err := NewClient(Config{
		Endpoint:       Endpoint{Host: host, Port: port, InstanceName: "test-instance"},
		Credentials:    signing.Credentials{AccessKeyID: "ak", AccessKeySecret: "sk"},
		RequestTimeout: 2 * time.Second,
	}, tc, actors)
	require.NoError(t, err)
	return client
}

func TestClientPutRowSuccess(t *testing.T) {
	addr := startFakeServer(t, "200 OK", `{}`)
	client := newTestClient(t, addr)

	resp, err := client.PutRow(context.Background(), PutRowRequest{TableName: "widgets"})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestClientServiceErrorIsClassified(t *testing.T) {
	addr := startFakeServer(t, "500 Internal Server Error", `{"Code":"OTSInternalServerError","Message":"boom"}`)
	client := newTestClient(t, addr)

	_, err := client.GetRow(context.Background(), GetRowRequest{TableName: "widgets"})
	require.Error(t, err)

	var ce *colerrors.Error
	require.ErrorAs(t, err, &ce)
	assert.EqualValues(t, 500, ce.HTTPStatus)
	assert.Equal(t, "OTSInternalServerError", ce.Code)
	assert.True(t, ce.IsTemporary())
}

func TestClientQuotaExhaustedRequiresExactMessage(t *testing.T) {
	addr := startFakeServer(t, "400 Bad Request", `{"Code":"OTSQuotaExhausted","Message":"Too frequent table operations."}`)
	client := newTestClient(t, addr)

	_, err := client.GetRow(context.Background(), GetRowRequest{TableName: "widgets"})
	require.Error(t, err)
	var ce *colerrors.Error
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.IsTemporary())
}
