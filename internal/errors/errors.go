// Package errors implements the HTTP-level and service-level error
// taxonomy from spec §7 and the retryability classification from spec
// §4.4, shared by internal/transport, internal/wireclient and
// internal/retry.
//
// Grounded on internal/domain/models.go's sentinel-error convention and
// internal/executor/warmpool.go's errors.As-based classification of
// transport-level failures.
package errors

import "fmt"

// Kind tags the broad category an Error belongs to (spec §7).
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindServiceTemporary
	KindServicePermanent
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServiceTemporary:
		return "service-temporary"
	case KindServicePermanent:
		return "service-permanent"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Sentinel HTTP-status-shaped codes for non-service faults (spec §4.4:
// "two negative/low ranges encode non-service faults with small sentinel
// statuses"). Values below 100 never collide with a real HTTP status.
const (
	StatusResolveFailed     int64 = 1
	StatusConnectFailed     int64 = 2
	StatusWriteFailed       int64 = 3
	StatusReadFailed        int64 = 4
	StatusTLSHandshake      int64 = 5
	StatusNoConnection      int64 = 6
	StatusTimeout           int64 = 28
	StatusCorruptedResponse int64 = 56
	StatusSigningFailed     int64 = 57
)

// Service error codes named explicitly by spec §4.4's temporary-error list.
const (
	CodeQuotaExhausted                    = "OTSQuotaExhausted"
	CodeRowOperationConflict              = "OTSRowOperationConflict"
	CodeTableNotReady                     = "OTSTableNotReady"
	CodeTooFrequentThroughputAdjustment   = "OTSTooFrequentReservedThroughputAdjustment"
	CodeCapacityUnitExhausted             = "OTSCapacityUnitExhausted"
	CodeRequestTimeout                    = "OTSRequestTimeout"
	CodeCorruptedResponse                 = "OTSCorruptedResponse"
	quotaExhaustedMessage                 = "Too frequent table operations."
)

// Error is the single uniform shape every failure takes once it is
// reported to a caller (spec §4.4, §7).
type Error struct {
	HTTPStatus int64
	Code       string
	Message    string
	RequestID  string
	TraceID    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("colstore: status=%d code=%s message=%s request_id=%s trace_id=%s",
		e.HTTPStatus, e.Code, e.Message, e.RequestID, e.TraceID)
}

// IsOK reports whether status is in [200, 299].
func (e *Error) IsOK() bool {
	return e.HTTPStatus >= 200 && e.HTTPStatus <= 299
}

// IsTransportError reports whether status is in the sentinel transport
// range [1, 99] (spec §4.4).
func (e *Error) IsTransportError() bool {
	return e.HTTPStatus >= 1 && e.HTTPStatus <= 99
}

// temporaryTransportStatuses is the curated set of transport sentinels the
// retry policy treats as worth retrying (spec §4.4: "resolve/connect/
// timeout/TLS/read/write/no-connection").
var temporaryTransportStatuses = map[int64]bool{
	StatusResolveFailed: true,
	StatusConnectFailed: true,
	StatusWriteFailed:   true,
	StatusReadFailed:    true,
	StatusTLSHandshake:  true,
	StatusNoConnection:  true,
	StatusTimeout:       true,
}

// temporaryServiceCodes is the curated set of 4xx service codes spec §4.4
// classifies as temporary despite the 4xx status, keyed by code; the quota
// code additionally requires an exact message match.
var temporaryServiceCodes = map[string]bool{
	CodeRowOperationConflict:            true,
	CodeTableNotReady:                   true,
	CodeTooFrequentThroughputAdjustment: true,
	CodeCapacityUnitExhausted:           true,
	CodeRequestTimeout:                  true,
}

// IsTemporary implements spec §4.4's classification: all 5xx are temporary;
// certain 4xx codes are temporary (with the quota code also requiring its
// exact message); the curated transport sentinels are temporary.
func (e *Error) IsTemporary() bool {
	if e.HTTPStatus >= 500 && e.HTTPStatus <= 599 {
		return true
	}
	if e.HTTPStatus >= 400 && e.HTTPStatus <= 499 {
		if e.Code == CodeQuotaExhausted {
			return e.Message == quotaExhaustedMessage
		}
		return temporaryServiceCodes[e.Code]
	}
	if e.IsTransportError() {
		return temporaryTransportStatuses[e.HTTPStatus]
	}
	return false
}

// NewTransport builds a transport-kind Error from one of the Status*
// sentinels.
func NewTransport(status int64, message string) *Error {
	return &Error{HTTPStatus: status, Code: transportCode(status), Message: message}
}

func transportCode(status int64) string {
	switch status {
	case StatusResolveFailed:
		return "TransportResolveFailed"
	case StatusConnectFailed:
		return "TransportConnectFailed"
	case StatusWriteFailed:
		return "TransportWriteFailed"
	case StatusReadFailed:
		return "TransportReadFailed"
	case StatusTLSHandshake:
		return "TransportTLSHandshake"
	case StatusNoConnection:
		return "TransportNoConnection"
	case StatusTimeout:
		return CodeRequestTimeout
	case StatusCorruptedResponse:
		return CodeCorruptedResponse
	case StatusSigningFailed:
		return "TransportSigningFailed"
	default:
		return "TransportUnknown"
	}
}

// NewClient builds a client-kind Error (validation, out-of-range argument,
// schema mismatch) for failures detected before a request is ever issued.
func NewClient(code, message string) *Error {
	return &Error{HTTPStatus: 0, Code: code, Message: message}
}
