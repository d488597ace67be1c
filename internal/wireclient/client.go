package wireclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rat-data/colstore/internal/actor"
	colerrors "github.com/rat-data/colstore/internal/errors"
	"github.com/rat-data/colstore/internal/mempool"
	"github.com/rat-data/colstore/internal/signing"
	"github.com/rat-data/colstore/internal/transport"
)

// Endpoint is the (protocol, host, port, instance_name) tuple spec §6
// names.
type Endpoint struct {
	HTTPS        bool
	Host         string
	Port         int
	InstanceName string
}

func (e Endpoint) addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Client is the typed per-API wire client (spec §4.4). One method per
// RPC; each validates nothing itself (callers validate via schema/value
// before calling) but serializes, signs, dispatches through transport,
// and classifies the result.
type Client struct {
	endpoint    Endpoint
	creds       signing.Credentials
	codec       Codec
	transport   *transport.Client
	actors      *actor.Pool
	fixed       *transport.FixedHeaderBlock
	reqTimeout  time.Duration
}

// Config bundles what NewClient needs beyond the transport/actor runtime
// it is handed (those are constructed once, shared across every layer of
// the client, per spec §5's resource-sharing model).
type Config struct {
	Endpoint       Endpoint
	Credentials    signing.Credentials
	Codec          Codec // nil uses JSONCodec
	RequestTimeout time.Duration
}

// NewClient wires a Config to a shared transport.Client and actor.Pool.
func NewClient(cfg Config, tc *transport.Client, actors *actor.Pool) (*Client, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	codec := cfg.Codec
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		creds:      cfg.Credentials,
		codec:      codec,
		transport:  tc,
		actors:     actors,
		fixed:      transport.NewFixedHeaderBlock(map[string]string{"Content-Type": "application/" + codec.Name()}),
		reqTimeout: cfg.RequestTimeout,
	}, nil
}

// call implements the common request path shared by every typed method:
// encode, sign, dispatch on the tracker's pinned actor, decode on
// success, classify on failure (spec §4.4).
func (c *Client) call(ctx context.Context, path string, reqBody, respOut any) error {
	body, err := c.codec.Encode(reqBody)
	if err != nil {
		return colerrors.NewClient("OTSClientEncodeError", err.Error())
	}

	tracker := uuid.NewString()
	mailbox := c.actors.For(tracker)

	headers, err := signing.BuildHeaders(c.creds, c.endpoint.InstanceName, body, time.Now())
	if err != nil {
		return &colerrors.Error{HTTPStatus: colerrors.StatusSigningFailed, Code: "OTSSigningFailed", Message: err.Error()}
	}
	headers["x-ots-tracker-id"] = tracker
	signing.Sign("POST", path, headers, c.creds.AccessKeySecret)

	req := transport.Request{
		Method:  "POST",
		Path:    path,
		Headers: headers,
	}
	req.Body.Append(mempool.PieceOf(body))

	resp, err := c.transport.Do(ctx, c.endpoint.addr(), req, c.fixed, mailbox, c.reqTimeout)
	if err != nil {
		return err
	}

	requestID, traceID := signing.ExtractResponseIDs(resp.Headers)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var wireErr WireError
		_ = c.codec.Decode(resp.Body, &wireErr)
		return &colerrors.Error{
			HTTPStatus: resp.StatusCode,
			Code:       wireErr.Code,
			Message:    wireErr.Message,
			RequestID:  requestID,
			TraceID:    traceID,
		}
	}

	if respOut == nil {
		return nil
	}
	if err := c.codec.Decode(resp.Body, respOut); err != nil {
		return &colerrors.Error{
			HTTPStatus: colerrors.StatusCorruptedResponse,
			Code:       colerrors.CodeCorruptedResponse,
			Message:    err.Error(),
			RequestID:  requestID,
			TraceID:    traceID,
		}
	}
	return nil
}

func (c *Client) CreateTable(ctx context.Context, req CreateTableRequest) (*CreateTableResponse, error) {
	var resp CreateTableResponse
	if err := c.call(ctx, "/CreateTable", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListTable(ctx context.Context) (*ListTableResponse, error) {
	var resp ListTableResponse
	if err := c.call(ctx, "/ListTable", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DescribeTable(ctx context.Context, req DescribeTableRequest) (*DescribeTableResponse, error) {
	var resp DescribeTableResponse
	if err := c.call(ctx, "/DescribeTable", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteTable(ctx context.Context, req DeleteTableRequest) (*DeleteTableResponse, error) {
	var resp DeleteTableResponse
	if err := c.call(ctx, "/DeleteTable", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateTable(ctx context.Context, req UpdateTableRequest) (*UpdateTableResponse, error) {
	var resp UpdateTableResponse
	if err := c.call(ctx, "/UpdateTable", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetRow(ctx context.Context, req GetRowRequest) (*GetRowResponse, error) {
	var resp GetRowResponse
	if err := c.call(ctx, "/GetRow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PutRow(ctx context.Context, req PutRowRequest) (*PutRowResponse, error) {
	var resp PutRowResponse
	if err := c.call(ctx, "/PutRow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateRow(ctx context.Context, req UpdateRowRequest) (*UpdateRowResponse, error) {
	var resp UpdateRowResponse
	if err := c.call(ctx, "/UpdateRow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteRow(ctx context.Context, req DeleteRowRequest) (*DeleteRowResponse, error) {
	var resp DeleteRowResponse
	if err := c.call(ctx, "/DeleteRow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BatchGetRow(ctx context.Context, req BatchGetRowRequest) (*BatchGetRowResponse, error) {
	var resp BatchGetRowResponse
	if err := c.call(ctx, "/BatchGetRow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BatchWriteRow(ctx context.Context, req BatchWriteRowRequest) (*BatchWriteRowResponse, error) {
	var resp BatchWriteRowResponse
	if err := c.call(ctx, "/BatchWriteRow", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetRange(ctx context.Context, req GetRangeRequest) (*GetRangeResponse, error) {
	var resp GetRangeResponse
	if err := c.call(ctx, "/GetRange", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ComputeSplitPointsBySize(ctx context.Context, req ComputeSplitPointsBySizeRequest) (*ComputeSplitPointsBySizeResponse, error) {
	var resp ComputeSplitPointsBySizeResponse
	if err := c.call(ctx, "/ComputeSplitPointsBySize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
