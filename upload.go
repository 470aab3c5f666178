package renovo

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Form accumulates multipart/form-data fields and files for Upload. Builder
// errors are sticky: the first failure is reported by Upload and later calls
// become no-ops.
type Form struct {
	buf    bytes.Buffer
	w      *multipart.Writer
	closed bool
	err    error
}

// NewForm returns an empty multipart form.
func NewForm() *Form {
	f := &Form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

// AddField appends a plain text field.
func (f *Form) AddField(name, value string) *Form {
	if f.err != nil || f.closed {
		return f
	}
	f.err = f.w.WriteField(name, value)
	return f
}

// AddFile appends a file part read from r.
func (f *Form) AddFile(field, filename string, r io.Reader) *Form {
	if f.err != nil || f.closed {
		return f
	}
	part, err := f.w.CreateFormFile(field, filename)
	if err != nil {
		f.err = err
		return f
	}
	_, f.err = io.Copy(part, r)
	return f
}

// Err returns the first error encountered while building the form.
func (f *Form) Err() error {
	return f.err
}

func (f *Form) finish() ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if !f.closed {
		if err := f.w.Close(); err != nil {
			f.err = err
			return nil, "", err
		}
		f.closed = true
	}
	return f.buf.Bytes(), f.w.FormDataContentType(), nil
}

// Upload sends the form as a multipart/form-data POST, typically for file
// uploads. The Content-Type carries the form boundary instead of the JSON
// default; authentication and the 401 refresh-retry cycle behave exactly as
// for Do.
func (c *Client) Upload(ctx context.Context, endpoint string, form *Form, opts ...RequestOption) (*Result, error) {
	body, contentType, err := form.finish()
	if err != nil {
		return nil, &APIError{
			Kind:      KindUnknown,
			Message:   "build multipart form",
			Cause:     err,
			Timestamp: time.Now(),
			Method:    http.MethodPost,
			Endpoint:  endpointLabel(endpoint),
		}
	}
	opts = append(opts, WithContentType(contentType))
	return c.Do(ctx, http.MethodPost, endpoint, body, opts...)
}
