package renovo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ErrorKind identifies one failure class in the closed error taxonomy. Every
// error surfaced by the client carries exactly one of the kinds below, so
// callers can switch on Kind without new cases appearing between releases.
type ErrorKind string

const (
	// KindNetwork covers transport failures where no HTTP response arrived:
	// DNS errors, refused connections, timeouts, canceled contexts.
	KindNetwork ErrorKind = "NETWORK_ERROR"
	// KindTokenExpired is a 401 whose body names TOKEN_EXPIRED as the error
	// code, meaning the access token aged out and a refresh may revive the
	// session.
	KindTokenExpired ErrorKind = "TOKEN_EXPIRED"
	// KindUnauthorized is any other 401: missing, malformed or revoked
	// credentials.
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	// KindForbidden is a 403: authenticated but not allowed.
	KindForbidden ErrorKind = "FORBIDDEN"
	// KindNotFound is a 404.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindValidation is a 400 or 422 carrying field-level complaints. It is
	// also used for client configuration mistakes caught before any request.
	KindValidation ErrorKind = "VALIDATION_ERROR"
	// KindServer is a 500, 502 or 503.
	KindServer ErrorKind = "SERVER_ERROR"
	// KindUnknown is every status the taxonomy does not name.
	KindUnknown ErrorKind = "UNKNOWN"
)

// tokenExpiredCode is the discriminator the backend places in a 401 body when
// the access token (rather than the whole session) is stale.
const tokenExpiredCode = "TOKEN_EXPIRED"

// APIError is the single error type surfaced by the client. StatusCode is 0
// when no HTTP response arrived; Payload retains the raw response body so
// callers can inspect field errors themselves.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Payload    json.RawMessage

	RequestID string
	Method    string
	URL       string
	Endpoint  string
	Timestamp time.Time
	Duration  time.Duration
	Cause     error
}

// Error implements error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		msg := fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Cause)
		if e.RequestID != "" {
			msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
		}
		return msg
	}

	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *APIError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if len(e.Payload) > 0 {
		info += fmt.Sprintf("Payload: %s\n", string(e.Payload))
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsRecoverable reports whether retrying the same call later could plausibly
// succeed without changing the request: transport failures and 5xx responses.
// Auth and validation failures need the caller to change something first.
func IsRecoverable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindNetwork, KindServer:
			return true
		}
	}
	return false
}

// IsAuthError reports whether the error concerns the caller's credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindTokenExpired, KindUnauthorized:
			return true
		}
	}
	return false
}

// KindOf extracts the taxonomy kind from an error, or KindUnknown when the
// error did not originate from this client.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// classifyResponse folds a non-2xx response into the error taxonomy. The
// mapping depends only on the status code and, for 401s, the body's
// error_code field, so the same response always classifies the same way.
func classifyResponse(statusCode int, body []byte) *APIError {
	e := &APIError{
		Kind:       kindForStatus(statusCode, body),
		Message:    messageFromBody(statusCode, body),
		StatusCode: statusCode,
		Timestamp:  time.Now(),
	}
	if len(body) > 0 {
		e.Payload = json.RawMessage(append([]byte(nil), body...))
	}
	return e
}

// classifyTransport wraps a failure that produced no HTTP response at all.
func classifyTransport(err error) *APIError {
	return &APIError{
		Kind:      KindNetwork,
		Message:   "network request failed",
		Timestamp: time.Now(),
		Cause:     err,
	}
}

func kindForStatus(statusCode int, body []byte) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized:
		if payloadErrorCode(body) == tokenExpiredCode {
			return KindTokenExpired
		}
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return KindServer
	default:
		return KindUnknown
	}
}

// payloadErrorCode pulls the machine-readable error_code out of a response
// body, tolerating bodies that are not JSON objects.
func payloadErrorCode(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var probe struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.ErrorCode
}

// messageFromBody extracts a human-readable message from an error response.
// Backends disagree on the field name, so detail, message and error are each
// tried before the field-error map shape that validation failures use, and
// finally the standard status text.
func messageFromBody(statusCode int, body []byte) string {
	if len(body) > 0 {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err == nil {
			for _, key := range []string{"detail", "message", "error"} {
				raw, ok := payload[key]
				if !ok {
					continue
				}
				var s string
				if err := json.Unmarshal(raw, &s); err == nil && s != "" {
					return s
				}
			}
			if msg := firstFieldError(payload); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return fmt.Sprintf("request failed with status %d", statusCode)
}

// firstFieldError handles the {"field": ["problem", ...]} shape produced by
// serializer validation, returning the first complaint with its field name.
// Keys are visited in sorted order to keep the pick deterministic.
func firstFieldError(payload map[string]json.RawMessage) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var msgs []string
		if err := json.Unmarshal(payload[k], &msgs); err == nil && len(msgs) > 0 {
			return fmt.Sprintf("%s: %s", k, msgs[0])
		}
	}
	return ""
}
