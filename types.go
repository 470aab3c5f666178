package renovo

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
)

// ErrNoBody is returned by Result.Decode when the response carried no payload,
// for example a 204 No Content or a HEAD response.
var ErrNoBody = errors.New("renovo: response has no body")

// Result is the normalized outcome of a successful request. Data holds the raw
// response payload so callers decide when (and into what) to decode it.
type Result struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
}

// Decode unmarshals the response payload into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return ErrNoBody
	}
	return json.Unmarshal(r.Data, v)
}

// HasBody reports whether the response carried a payload.
func (r *Result) HasBody() bool {
	return r != nil && len(r.Data) > 0
}

// Middleware represents a middleware function
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option represents a configuration option
type Option func(*Client)

// RequestOption adjusts a single request without touching client-wide state.
type RequestOption func(*requestConfig)

type requestConfig struct {
	query       url.Values
	header      http.Header
	contentType string
	noAuth      bool
	noAuthRetry bool
	dedup       bool
	dedupKey    string
}

// WithQuery merges the given values into the request query string.
func WithQuery(values url.Values) RequestOption {
	return func(rc *requestConfig) {
		if rc.query == nil {
			rc.query = url.Values{}
		}
		for k, vs := range values {
			for _, v := range vs {
				rc.query.Add(k, v)
			}
		}
	}
}

// WithQueryParam adds a single query parameter to the request.
func WithQueryParam(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.query == nil {
			rc.query = url.Values{}
		}
		rc.query.Add(key, value)
	}
}

// WithHeader sets a header on the request.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.header == nil {
			rc.header = http.Header{}
		}
		rc.header.Set(key, value)
	}
}

// WithContentType overrides the Content-Type header for the request body.
func WithContentType(contentType string) RequestOption {
	return func(rc *requestConfig) { rc.contentType = contentType }
}

// WithoutAuth sends the request without an Authorization header. Responses are
// still classified, but a 401 is returned as-is instead of triggering a
// credential refresh.
func WithoutAuth() RequestOption {
	return func(rc *requestConfig) { rc.noAuth = true }
}

// WithoutUnauthorizedRetry disables the single refresh-and-retry cycle for
// this request. A 401 becomes the final answer.
func WithoutUnauthorizedRetry() RequestOption {
	return func(rc *requestConfig) { rc.noAuthRetry = true }
}

// WithDeduplication coalesces this request with identical in-flight requests
// so only one of them reaches the network.
func WithDeduplication() RequestOption {
	return func(rc *requestConfig) { rc.dedup = true }
}

// WithDedupKey enables deduplication under an explicit key instead of the
// default method+URL key.
func WithDedupKey(key string) RequestOption {
	return func(rc *requestConfig) {
		rc.dedup = true
		rc.dedupKey = key
	}
}
