package framework

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/kodal/kodal/pkg/gateway"
)

// TestingT is the subset of *testing.T the framework needs.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Client drives the in-process router without a network listener.
type Client struct {
	handler http.Handler
}

// NewClient wraps a router for test calls.
func NewClient(h http.Handler) *Client {
	return &Client{handler: h}
}

// Result is one decoded response.
type Result struct {
	Status   int
	Header   http.Header
	Success  bool
	Data     json.RawMessage
	Error    *gateway.ErrorInfo
	Metadata gateway.Metadata
}

// wireEnvelope keeps Data raw so callers can decode into typed views.
type wireEnvelope struct {
	Success  bool               `json:"success"`
	Data     json.RawMessage    `json:"data"`
	Error    *gateway.ErrorInfo `json:"error"`
	Metadata gateway.Metadata   `json:"metadata"`
}

// Get performs a GET and decodes the envelope.
func (c *Client) Get(t TestingT, path string) *Result {
	t.Helper()
	return c.do(t, httptest.NewRequest("GET", path, nil))
}

// Post performs a POST with a JSON body and decodes the envelope.
func (c *Client) Post(t TestingT, path, body string) *Result {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return c.do(t, req)
}

func (c *Client) do(t TestingT, req *http.Request) *Result {
	t.Helper()

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	var env wireEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\nbody: %s", err, rec.Body.String())
	}

	return &Result{
		Status:   rec.Code,
		Header:   rec.Header(),
		Success:  env.Success,
		Data:     env.Data,
		Error:    env.Error,
		Metadata: env.Metadata,
	}
}

// DecodeData unmarshals the data payload into v.
func (r *Result) DecodeData(t TestingT, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, v); err != nil {
		t.Fatalf("cannot decode data: %v\ndata: %s", err, string(r.Data))
	}
}
