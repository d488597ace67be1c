package wireclient

import (
	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/value"
)

// Direction controls GetRange's scan order (spec §4.7.5 reuses the same
// Forward/Backward convention for the index overlay's range queries).
type Direction int

const (
	Forward Direction = iota
	Backward
)

type CreateTableRequest struct {
	Schema schema.TableSchema
}

type CreateTableResponse struct{}

type ListTableResponse struct {
	TableNames []string
}

type DescribeTableRequest struct {
	TableName string
}

type DescribeTableResponse struct {
	Schema schema.TableSchema
}

type DeleteTableRequest struct {
	TableName string
}

type DeleteTableResponse struct{}

type UpdateTableRequest struct {
	TableName string
	Options   schema.TableOptions
}

type UpdateTableResponse struct {
	Options schema.TableOptions
}

type GetRowRequest struct {
	TableName    string
	PrimaryKey   value.PrimaryKey
	ColumnsToGet []string // empty means "all columns"
	MaxVersions  int64
}

type GetRowResponse struct {
	Found bool
	Row   value.Row
}

type PutRowRequest struct {
	TableName string
	Row       value.Row
	// Condition is the row-existence precondition (spec §3's
	// Ignore/ExpectExist/ExpectNotExist); empty means Ignore.
	Condition string
}

type PutRowResponse struct {
	Row value.Row // server-assigned AutoIncrement pkey values, if any
}

type UpdateRowRequest struct {
	TableName  string
	PrimaryKey value.PrimaryKey
	Put        []value.Attribute
	Delete     []string
	Condition  string
}

type UpdateRowResponse struct{}

type DeleteRowRequest struct {
	TableName  string
	PrimaryKey value.PrimaryKey
	Condition  string
}

type DeleteRowResponse struct{}

// BatchGetRowRequest groups per-table row fetches into one RPC (spec
// §4.6).
type BatchGetRowRequest struct {
	Tables map[string][]BatchGetRowItem
}

type BatchGetRowItem struct {
	PrimaryKey   value.PrimaryKey
	ColumnsToGet []string
}

type BatchGetRowResponse struct {
	Tables map[string][]BatchRowResult
}

// BatchRowResult is one row's outcome within a batch response. Err is
// nil on success.
type BatchRowResult struct {
	Found bool
	Row   value.Row
	Err   *WireError
}

// BatchWriteRowRequest groups per-table put/update/delete operations
// into one RPC (spec §4.6).
type BatchWriteRowRequest struct {
	Puts    map[string][]PutRowRequest
	Updates map[string][]UpdateRowRequest
	Deletes map[string][]DeleteRowRequest
}

type BatchWriteRowResponse struct {
	PutResults    map[string][]BatchRowResult
	UpdateResults map[string][]BatchRowResult
	DeleteResults map[string][]BatchRowResult
}

type GetRangeRequest struct {
	TableName    string
	Start        value.PrimaryKey
	End          value.PrimaryKey
	Direction    Direction
	Limit        int64 // 0 means unbounded
	ColumnsToGet []string
}

type GetRangeResponse struct {
	Rows []value.Row
	// NextStart is set when the response was truncated by Limit; the
	// caller resumes by issuing another GetRange starting here.
	NextStart   *value.PrimaryKey
	Truncated   bool
}

type ComputeSplitPointsBySizeRequest struct {
	TableName string
	SplitSize int64 // in units of 100 MB, matching the original SDK
}

type ComputeSplitPointsBySizeResponse struct {
	Splits []value.PrimaryKey
}

// WireError is the JSON-wire form of a service-reported error, decoded
// from a non-2xx response body and turned into an internal/errors.Error
// by the caller.
type WireError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}
