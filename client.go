package renovo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Client is an authenticated API client that layers bearer-token attachment,
// single-flight token refresh, retry-once-on-401, session teardown,
// de-duplication, middleware and metrics around the standard net/http
// Client. It is safe for concurrent use.
type Client struct {
	baseURL       string
	refreshPath   string
	refreshURL    string
	httpClient    *http.Client
	timeout       time.Duration
	middleware    []Middleware
	defaultHeader http.Header

	credMu       sync.Mutex
	accessToken  string
	refreshToken string
	loggedOut    atomic.Bool

	refreshMu  sync.Mutex
	refreshing *refreshAttempt

	callbackMu     sync.Mutex
	onUnauthorized func()

	store              TokenStore
	eagerRefreshLeeway time.Duration

	deduplication *DeduplicationTracker
	dedupKeyFunc  DeduplicationKeyFunc

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	validationError error
}

// New constructs a Client for the given API base URL using the provided
// functional options. A best effort validation is performed; call IsValid /
// ValidationError for errors.
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		timeout:       30 * time.Second,
		refreshPath:   "/api/token/refresh/",
		middleware:    []Middleware{},
		defaultHeader: http.Header{},
		deduplication: NewDeduplicationTracker(),
		dedupKeyFunc:  DefaultDeduplicationKeyFunc,
		metrics:       nil,
		debug:         DefaultDebugConfig(),
		logger:        nil,
	}

	for _, option := range options {
		option(client)
	}

	if client.defaultHeader.Get("User-Agent") == "" {
		client.defaultHeader.Set("User-Agent", "renovo/"+Version)
	}

	client.refreshURL = client.resolveURL(client.refreshPath)

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get performs a GET against the endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, opts...)
}

// Delete performs a DELETE against the endpoint.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, opts...)
}

// Post performs a POST with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body, opts...)
}

// Put performs a PUT with a JSON-encoded body.
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body, opts...)
}

// Patch performs a PATCH with a JSON-encoded body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, body, opts...)
}

// GetJSON performs a GET and decodes the response payload into out. A
// missing body leaves out untouched.
func (c *Client) GetJSON(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	res, err := c.Get(ctx, endpoint, opts...)
	if err != nil {
		return err
	}
	if out == nil || !res.HasBody() {
		return nil
	}
	return res.Decode(out)
}

// PostJSON performs a POST with a JSON body and decodes the response into
// out. A missing body leaves out untouched.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	res, err := c.Post(ctx, endpoint, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || !res.HasBody() {
		return nil
	}
	return res.Decode(out)
}

// PutJSON performs a PUT with a JSON body and decodes the response into out.
func (c *Client) PutJSON(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	res, err := c.Put(ctx, endpoint, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || !res.HasBody() {
		return nil
	}
	return res.Decode(out)
}

// PatchJSON performs a PATCH with a JSON body and decodes the response into
// out.
func (c *Client) PatchJSON(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	res, err := c.Patch(ctx, endpoint, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || !res.HasBody() {
		return nil
	}
	return res.Decode(out)
}

// Do executes a request against the endpoint, applying authentication, the
// 401 refresh-retry cycle, optional de-duplication and metrics. body may be
// nil, a []byte / json.RawMessage sent verbatim, or any value that will be
// JSON-encoded. Every returned error is an *APIError.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Result, error) {
	start := time.Now()

	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	payload, apiErr := encodeBody(body)
	if apiErr != nil {
		apiErr.Method = method
		apiErr.Endpoint = endpointLabel(endpoint)
		return nil, apiErr
	}
	if payload != nil && rc.contentType == "" {
		rc.contentType = "application/json"
	}

	fullURL := c.resolveURL(endpoint)
	if len(rc.query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + rc.query.Encode()
	}
	label := endpointLabel(endpoint)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	if c.debugEnabled() && c.debug.LogRequests {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "url", fullURL)
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(method, label)
		defer c.metrics.RecordRequestEnd(method, label)
	}

	var dedupEntry *DeduplicationEntry
	var dedupKey string
	var isDedupOwner bool
	if rc.dedup && c.deduplication != nil {
		dedupKey = rc.dedupKey
		if dedupKey == "" {
			dedupKey = c.dedupKeyFunc(method, fullURL, payload)
		}
		dedupEntry, isDedupOwner = c.deduplication.GetOrCreateEntry(dedupKey)

		if !isDedupOwner {
			res, err := dedupEntry.Wait(ctx)
			var shared *APIError
			if err != nil && !errors.As(err, &shared) {
				err = c.annotateError(classifyTransport(err), method, fullURL, label, requestID, time.Since(start))
			}
			if c.metrics != nil {
				c.metrics.RecordDeduplicationHit(method, label)
				c.metrics.RecordRequest(method, label, resultStatus(res), time.Since(start))
			}
			if c.debugEnabled() && c.debug.LogRequests {
				c.logger.Debug("Deduplication hit", "requestID", requestID, "dedupKey", dedupKey)
			}
			return res, err
		}
	}

	res, err := c.execute(ctx, method, fullURL, label, payload, rc, requestID)

	if c.metrics != nil {
		c.metrics.RecordRequest(method, label, resultStatus(res), time.Since(start))
	}
	if c.debugEnabled() && c.debug.LogRequests {
		if err != nil {
			c.logger.Debug("Request failed", "requestID", requestID, "error", err.Error(), "duration", time.Since(start))
		} else {
			c.logger.Debug("Request completed", "requestID", requestID, "status", res.StatusCode, "duration", time.Since(start))
		}
	}

	if isDedupOwner {
		c.deduplication.Complete(dedupKey, res, err)
	}

	return res, err
}

// execute runs one request through the credential lifecycle: an optional
// eager refresh, the send itself, and on a 401 a single refresh-and-retry
// cycle. The retried call is final either way; if the refresh fails instead,
// the session is torn down and the original 401 classification surfaces.
func (c *Client) execute(ctx context.Context, method, fullURL, label string, payload []byte, rc requestConfig, requestID string) (*Result, error) {
	if !rc.noAuth {
		c.maybeRefreshEarly(ctx)
	}

	res, sendErr := c.send(ctx, method, fullURL, label, payload, rc, requestID)
	if sendErr == nil {
		return res, nil
	}

	if rc.noAuth || rc.noAuthRetry || sendErr.StatusCode != http.StatusUnauthorized {
		c.recordError(sendErr, method, label)
		return nil, sendErr
	}

	ok, waitErr := c.refreshAccessToken(ctx)
	if waitErr != nil {
		// Our own context ended while another request's refresh ran; the
		// shared attempt continues without us.
		err := c.annotateError(classifyTransport(waitErr), method, fullURL, label, requestID, 0)
		c.recordError(err, method, label)
		return nil, err
	}
	if !ok {
		c.signalUnauthorized()
		c.recordError(sendErr, method, label)
		return nil, sendErr
	}

	if c.metrics != nil {
		c.metrics.RecordUnauthorizedRetry(method, label)
	}
	if c.debugEnabled() && c.debug.LogAuth {
		c.logger.Debug("Retrying after token refresh", "requestID", requestID, "method", method)
	}

	res, sendErr = c.send(ctx, method, fullURL, label, payload, rc, requestID)
	if sendErr != nil {
		c.recordError(sendErr, method, label)
		return nil, sendErr
	}
	return res, nil
}

// send performs a single HTTP exchange. The bearer token is read at send
// time, so a retry after refresh automatically picks up the new credential
// and never resends a superseded one.
func (c *Client) send(ctx context.Context, method, fullURL, label string, payload []byte, rc requestConfig, requestID string) (*Result, *APIError) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		e := &APIError{Kind: KindUnknown, Message: "invalid request", Cause: err, Timestamp: time.Now()}
		return nil, c.annotateError(e, method, fullURL, label, requestID, 0)
	}

	for k, vs := range c.defaultHeader {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range rc.header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", rc.contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if !rc.noAuth {
		if access := c.currentAccessToken(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	start := time.Now()
	resp, err := c.transport(req)
	duration := time.Since(start)
	if err != nil {
		return nil, c.annotateError(classifyTransport(err), method, fullURL, label, requestID, duration)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.annotateError(classifyTransport(err), method, fullURL, label, requestID, duration)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result := &Result{StatusCode: resp.StatusCode, Header: resp.Header}
		if len(respBody) > 0 {
			result.Data = json.RawMessage(respBody)
		}
		return result, nil
	}

	return nil, c.annotateError(classifyResponse(resp.StatusCode, respBody), method, fullURL, label, requestID, duration)
}

// transport runs the request through the middleware chain down to the
// underlying HTTP client. The credential refresh call goes through here too,
// so tracing middleware observes it like any other exchange.
func (c *Client) transport(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

func (c *Client) annotateError(e *APIError, method, fullURL, label, requestID string, duration time.Duration) *APIError {
	e.RequestID = requestID
	e.Method = method
	e.URL = fullURL
	e.Endpoint = label
	e.Duration = duration
	return e
}

func (c *Client) recordError(e *APIError, method, label string) {
	if c.metrics != nil {
		c.metrics.RecordError(string(e.Kind), method, label)
	}
}

func (c *Client) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}

// resolveURL joins an endpoint to the base URL. Absolute URLs pass through
// untouched so callers can hit signed or cross-host links.
func (c *Client) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	full := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(endpoint, "/") {
		full += "/"
	}
	return full + endpoint
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func encodeBody(body any) ([]byte, *APIError) {
	if body == nil {
		return nil, nil
	}
	switch b := body.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Kind: KindUnknown, Message: "encode request body", Cause: err, Timestamp: time.Now()}
		}
		return payload, nil
	}
}

// endpointLabel normalizes an endpoint into a low-cardinality metrics label.
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	if endpoint == "" {
		return "/"
	}
	return endpoint
}

func resultStatus(res *Result) int {
	if res == nil {
		return 0
	}
	return res.StatusCode
}
