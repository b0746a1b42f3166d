package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Envelope is the decoded JSON response body.
type Envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

// Client sends requests straight into a handler and keeps cookies between
// calls, like a browser would.
type Client struct {
	t       testing.TB
	handler http.Handler
	cookies map[string]*http.Cookie
	token   string
}

func NewClient(t testing.TB, h http.Handler) *Client {
	return &Client{t: t, handler: h, cookies: map[string]*http.Cookie{}}
}

// WithToken sends "Authorization: Bearer token" on every later request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Cookie returns the stored cookie called name, or nil.
func (c *Client) Cookie(name string) *http.Cookie { return c.cookies[name] }

// Result is one response.
type Result struct {
	Code     int
	Header   http.Header
	Body     []byte
	Envelope Envelope
}

// Decode unmarshals the envelope's data into dest.
func (r *Result) Decode(t testing.TB, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Envelope.Data, dest), "body: %s", r.Body)
}

func (c *Client) Get(path string, headers ...string) *Result {
	return c.Do(http.MethodGet, path, nil, headers...)
}

func (c *Client) Post(path string, body any, headers ...string) *Result {
	return c.Do(http.MethodPost, path, body, headers...)
}

func (c *Client) Put(path string, body any, headers ...string) *Result {
	return c.Do(http.MethodPut, path, body, headers...)
}

func (c *Client) Delete(path string, headers ...string) *Result {
	return c.Do(http.MethodDelete, path, nil, headers...)
}

// Do sends method path with body encoded as JSON. headers are key, value
// pairs.
func (c *Client) Do(method, path string, body any, headers ...string) *Result {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return c.Send(req)
}

// Send serves a prepared request, attaching and then updating the cookie jar.
func (c *Client) Send(req *http.Request) *Result {
	c.t.Helper()

	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()
	for _, ck := range resp.Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}

	out := &Result{Code: rec.Code, Header: rec.Header(), Body: rec.Body.Bytes()}
	if json.Valid(out.Body) {
		_ = json.Unmarshal(out.Body, &out.Envelope)
	}
	return out
}
