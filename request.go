package goAuthClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Request is a replayable request descriptor. Client.Do never mutates it;
// every send works on a copy so the original stays intact for replay.
type Request struct {
	// ID correlates log lines and audit events. NewRequest fills it in.
	ID     string
	Method string
	// Path is joined to the configured base URL unless it is absolute.
	Path   string
	Header http.Header
	Body   []byte

	replayed bool
	sentWith string
}

// NewRequest returns a Request with a fresh ID.
func NewRequest(method, path string, body []byte) *Request {
	return &Request{
		ID:     uuid.NewString(),
		Method: method,
		Path:   path,
		Header: make(http.Header),
		Body:   body,
	}
}

// NewJSONRequest encodes body as JSON and sets the content type.
func NewJSONRequest(method, path string, body any) (*Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req := NewRequest(method, path, data)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Replayed reports whether the request is a resubmission after a renewal.
func (r *Request) Replayed() bool {
	return r != nil && r.replayed
}

func (r *Request) clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	return &out
}

func (r *Request) forReplay() *Request {
	out := r.clone()
	out.replayed = true
	return out
}

func (r *Request) httpRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	hreq, err := http.NewRequestWithContext(ctx, method, joinURL(baseURL, r.Path), bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		hreq.Header[k] = append([]string(nil), v...)
	}
	return hreq, nil
}

func joinURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Response is a completed 2xx exchange with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("decode response: empty body")
	}
	return json.Unmarshal(r.Body, v)
}

// BearerToken extracts the credential from an "Authorization: Bearer" header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
