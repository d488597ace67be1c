package colstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rat-data/colstore/internal/config"
	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/signing"
	"github.com/rat-data/colstore/internal/wireclient"
)

func validCreds() signing.Credentials {
	return signing.Credentials{AccessKeyID: "ak", AccessKeySecret: "sk"}
}

func loopbackEndpoint(t *testing.T, srv *httptest.Server) wireclient.Endpoint {
	t.Helper()
	u := strings.TrimPrefix(srv.URL, "http://")
	parts := strings.Split(u, ":")
	require.Len(t, parts, 2)
	port, err := strconv.Atoi(parts[1])
	require.NoError(t, err)
	return wireclient.Endpoint{Host: parts[0], Port: port, InstanceName: "test-instance"}
}

func TestNewRejectsInvalidCredentials(t *testing.T) {
	_, err := New(wireclient.Endpoint{Host: "localhost", Port: 80, InstanceName: "i"}, signing.Credentials{}, nil)
	assert.Error(t, err)
}

func TestNewFillsDefaultOptionsWhenNil(t *testing.T) {
	c, err := New(wireclient.Endpoint{Host: "localhost", Port: 80, InstanceName: "i"}, validCreds(), nil)
	require.NoError(t, err)
	require.NotNil(t, c.opts)
	assert.Equal(t, config.DefaultClientOptions(), c.opts)
	assert.NotNil(t, c.pieces)
	assert.NotNil(t, c.alarms)
	assert.NotNil(t, c.transport)
	assert.Nil(t, c.wire)
}

func TestNewHonorsSuppliedOptions(t *testing.T) {
	opts := &config.ClientOptions{
		MaxConnections: 7,
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
		ActorCount:     2,
		Retry: config.RetryOptions{
			MaxElapsed: 100 * time.Millisecond,
			BaseDelay:  time.Millisecond,
			MaxDelay:   10 * time.Millisecond,
		},
	}
	c, err := New(wireclient.Endpoint{Host: "localhost", Port: 80, InstanceName: "i"}, validCreds(), opts)
	require.NoError(t, err)
	assert.Same(t, opts, c.opts)
}

func TestStartThenStopLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := New(loopbackEndpoint(t, srv), validCreds(), &config.ClientOptions{
		MaxConnections: 2,
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
		ActorCount:     1,
		Retry: config.RetryOptions{
			MaxElapsed: 50 * time.Millisecond,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.started)
	assert.NotNil(t, c.WireClient())

	c.Stop(context.Background())
	assert.False(t, c.started)
}

func TestStartTwiceReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := New(loopbackEndpoint(t, srv), validCreds(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Start(ctx))
	defer c.Stop(context.Background())

	err = c.Start(ctx)
	assert.Error(t, err)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	c, err := New(wireclient.Endpoint{Host: "localhost", Port: 80, InstanceName: "i"}, validCreds(), nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { c.Stop(context.Background()) })
}

func TestCollectionBuildsOverlaySharingCoordinator(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := New(loopbackEndpoint(t, srv), validCreds(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop(context.Background())

	coll := schema.Collection{
		Name: "widgets",
		Primary: schema.TableSchema{
			Name: "widgets",
			PkeySchema: []schema.PkeyColSchema{
				{Name: "id", Type: schema.ColumnTypeInteger},
			},
		},
	}
	overlay := c.Collection(coll)
	assert.NotNil(t, overlay)
}

func TestStartWithDebugAddrServesIntrospectionEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := New(loopbackEndpoint(t, srv), validCreds(), &config.ClientOptions{
		MaxConnections: 2,
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
		ActorCount:     1,
		Retry: config.RetryOptions{
			MaxElapsed: 50 * time.Millisecond,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
		DebugAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop(context.Background())

	require.NotNil(t, c.debugHTTP)
}
