// Package http is the outbound client for third-party calls (the translate
// service and the SMS gateway). Requests are built fluently and retried with
// exponential backoff on transport errors and 5xx responses.
//
//	var out struct{ Text string `json:"translatedText"` }
//	resp, err := http.Post(config.TranslateURL()).
//	    WithContext(ctx).
//	    Bearer(config.TranslateKey()).
//	    Body(map[string]string{"q": text, "target": "kn"}).
//	    Retry(3, 200*time.Millisecond).
//	    Send()
//	if err == nil { err = resp.Throw() }
//	if err == nil { err = resp.JSON(&out) }
//
// Tests swap DefaultClient.Transport and call ResetTransport when done.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"time"

	"github.com/rrnagar/marketplace/pkg/logger"
)

const maxResponseBytes = 2 << 20

var defaultTransport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        50,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 5 * time.Second,
}

var DefaultClient = &gohttp.Client{Transport: defaultTransport}

func ResetTransport() {
	DefaultClient.Transport = defaultTransport
}

type Request struct {
	method    string
	url       string
	query     url.Values
	headers   map[string]string
	body      any
	timeout   time.Duration
	attempts  int
	retryWait time.Duration
	ctx       context.Context
}

func Get(url string) *Request  { return newRequest(gohttp.MethodGet, url) }
func Post(url string) *Request { return newRequest(gohttp.MethodPost, url) }

func newRequest(method, u string) *Request {
	return &Request{
		method:    method,
		url:       u,
		query:     url.Values{},
		headers:   map[string]string{"Accept": "application/json"},
		timeout:   10 * time.Second,
		attempts:  1,
		retryWait: 250 * time.Millisecond,
		ctx:       context.Background(),
	}
}

func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

func (r *Request) Bearer(token string) *Request {
	if token == "" {
		return r
	}
	return r.Header("Authorization", "Bearer "+token)
}

func (r *Request) Query(key, value string) *Request {
	r.query.Set(key, value)
	return r
}

// Body sets the payload. Strings and []byte are sent raw; anything else is
// JSON-encoded.
func (r *Request) Body(v any) *Request {
	r.body = v
	return r
}

// Timeout bounds each attempt, not the whole call.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry sets the total number of attempts and the first backoff, which
// doubles after each failure.
func (r *Request) Retry(attempts int, wait time.Duration) *Request {
	if attempts < 1 {
		attempts = 1
	}
	r.attempts = attempts
	r.retryWait = wait
	return r
}

func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// retryable marks a 5xx or 429 response so Send tries again.
type retryable struct{ status int }

func (e retryable) Error() string { return fmt.Sprintf("server returned HTTP %d", e.status) }

// Send runs the request. A 4xx response is returned, not retried; after the
// last attempt a 5xx response is returned as well so callers can inspect it.
func (r *Request) Send() (*Response, error) {
	var (
		resp    *Response
		lastErr error
		wait    = r.retryWait
	)
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, lastErr = r.do()
		if lastErr == nil && !isRetryStatus(resp.StatusCode) {
			return resp, nil
		}
		if lastErr == nil {
			lastErr = retryable{resp.StatusCode}
		}
		if attempt == r.attempts {
			break
		}

		logger.WithCtx(r.ctx).Warn("http: attempt failed, retrying",
			"url", r.url, "attempt", attempt, "backoff", wait.String(), "error", lastErr)
		select {
		case <-time.After(wait):
		case <-r.ctx.Done():
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, r.ctx.Err())
		}
		wait *= 2
	}

	var rerr retryable
	if errors.As(lastErr, &rerr) && resp != nil {
		return resp, nil
	}
	return nil, fmt.Errorf("http: %d attempt(s) failed for %s %s: %w", r.attempts, r.method, r.url, lastErr)
}

func isRetryStatus(code int) bool {
	return code >= 500 || code == gohttp.StatusTooManyRequests
}

func (r *Request) do() (*Response, error) {
	body, ct, err := r.encodeBody()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	target := r.url
	if len(r.query) > 0 {
		u, err := url.Parse(r.url)
		if err != nil {
			return nil, fmt.Errorf("http: parse url: %w", err)
		}
		q := u.Query()
		for k, vs := range r.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := gohttp.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	res, err := DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Headers: res.Header, Raw: raw}, nil
}

func (r *Request) encodeBody() (io.Reader, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return bytes.NewBufferString(v), "text/plain; charset=utf-8", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	case url.Values:
		return bytes.NewBufferString(v.Encode()), "application/x-www-form-urlencoded", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

func (r *Response) Text() string { return string(r.Raw) }

// Throw turns a non-2xx response into an error.
func (r *Response) Throw() error {
	if r.OK() {
		return nil
	}
	body := r.Raw
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Errorf("http: unexpected status %d: %s", r.StatusCode, body)
}
