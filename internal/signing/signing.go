// Package signing builds the canonical string and HMAC-SHA1 signature
// for a request, and validates the credential triple (spec §4.4, §6).
//
// Grounded on internal/auth/middleware.go's header-extraction style,
// inverted: that package validates an inbound Authorization header
// against a static key; this one produces the outbound
// date/access-key-id/content-MD5/signature header set a request must
// carry. golang.org/x/net/http/httpguts validates header field values
// before they are folded into the canonical string, the same defensive
// posture middleware.go applies to the Authorization header it reads.
package signing

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// Credentials is the (access_key_id, access_key_secret, security_token)
// triple spec §6 names.
type Credentials struct {
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string // optional
}

// Validate enforces spec §6: id/secret non-empty and CR/LF free; token
// may be empty but must also be CR/LF free.
func (c Credentials) Validate() error {
	if c.AccessKeyID == "" {
		return fmt.Errorf("signing: access key id must not be empty")
	}
	if c.AccessKeySecret == "" {
		return fmt.Errorf("signing: access key secret must not be empty")
	}
	if containsCRLF(c.AccessKeyID) {
		return fmt.Errorf("signing: access key id must not contain CR/LF")
	}
	if containsCRLF(c.AccessKeySecret) {
		return fmt.Errorf("signing: access key secret must not contain CR/LF")
	}
	if containsCRLF(c.SecurityToken) {
		return fmt.Errorf("signing: security token must not contain CR/LF")
	}
	return nil
}

func containsCRLF(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

// Header names spec §6 lists as mandatory and signed.
const (
	HeaderDate      = "x-ots-date"
	HeaderAccessKey = "x-ots-accesskeyid"
	HeaderContentMD5 = "x-ots-contentmd5"
	HeaderSignature = "x-ots-signature"
	HeaderInstance  = "x-ots-instancename"
	HeaderToken     = "x-ots-sts-token"

	HeaderRequestID  = "x-ots-requestid"
	HeaderTraceInfo  = "x-ots-traceinfo"
)

// dateLayout is RFC 1123 GMT, spec §6's "date (RFC 1123 GMT)".
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate renders t in the mandatory header's wire format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ContentMD5 returns the base64-encoded MD5 digest of body, spec §6's
// "content-MD5" header value.
func ContentMD5(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Headers is the set of mandatory request headers, already populated
// with date/access-key-id/content-MD5/instance — Signature is filled in
// by Sign once the canonical string is known.
type Headers map[string]string

// BuildHeaders assembles every mandatory header except the signature
// (spec §6).
func BuildHeaders(creds Credentials, instance string, body []byte, now time.Time) (Headers, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	h := Headers{
		HeaderDate:      FormatDate(now),
		HeaderAccessKey: creds.AccessKeyID,
		HeaderContentMD5: ContentMD5(body),
		HeaderInstance:  instance,
	}
	if creds.SecurityToken != "" {
		h[HeaderToken] = creds.SecurityToken
	}
	for k, v := range h {
		if !httpguts.ValidHeaderFieldValue(v) {
			return nil, fmt.Errorf("signing: header %q has an invalid field value", k)
		}
	}
	return h, nil
}

// CanonicalString builds the string that is HMAC-SHA1 signed: method,
// path, and every signed header sorted by name, each followed by "\n" (spec §4.4:
// "HMAC-SHA1 over a canonical string of method/path/date/headers/body
// hash").
func CanonicalString(method, path string, headers Headers) string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		if k == HeaderSignature {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(method)
	b.WriteString("\n")
	b.WriteString(path)
	b.WriteString("\n")
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(":")
		b.WriteString(headers[name])
		b.WriteString("\n")
	}
	return b.String()
}

// Sign computes the base64 HMAC-SHA1 signature over the canonical
// string and stores it in headers under HeaderSignature.
func Sign(method, path string, headers Headers, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(CanonicalString(method, path, headers)))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	headers[HeaderSignature] = sig
	return sig
}

// ExtractResponseIDs pulls the request/trace identifiers spec §6 says
// every response header set carries, for propagation into Error.
func ExtractResponseIDs(headers map[string]string) (requestID, traceID string) {
	return headers[HeaderRequestID], headers[HeaderTraceInfo]
}
