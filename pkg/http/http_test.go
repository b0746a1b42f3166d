package http

import (
	"context"
	"io"
	gohttp "net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*gohttp.Request) (*gohttp.Response, error)

func (f roundTripFunc) RoundTrip(r *gohttp.Request) (*gohttp.Response, error) { return f(r) }

func reply(status int, body string) *gohttp.Response {
	return &gohttp.Response{
		StatusCode: status,
		Header:     gohttp.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestPostJSONWithRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	DefaultClient.Transport = roundTripFunc(func(r *gohttp.Request) (*gohttp.Response, error) {
		n := calls.Add(1)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if n < 3 {
			return reply(503, `{"error":"busy"}`), nil
		}
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"hello","target":"kn"}`, string(raw))
		return reply(200, `{"translatedText":"ನಮಸ್ಕಾರ"}`), nil
	})
	defer ResetTransport()

	resp, err := Post("https://translate.test/v1").
		Bearer("k").
		Body(map[string]string{"q": "hello", "target": "kn"}).
		Retry(3, time.Millisecond).
		Send()
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out struct {
		Text string `json:"translatedText"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "ನಮಸ್ಕಾರ", out.Text)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	DefaultClient.Transport = roundTripFunc(func(*gohttp.Request) (*gohttp.Response, error) {
		calls.Add(1)
		return reply(400, `bad`), nil
	})
	defer ResetTransport()

	resp, err := Get("https://sms.test/send").Query("to", "9876543210").Retry(3, time.Millisecond).Send()
	require.NoError(t, err)
	assert.Error(t, resp.Throw())
	assert.EqualValues(t, 1, calls.Load())
}

func TestLastServerErrorIsReturned(t *testing.T) {
	DefaultClient.Transport = roundTripFunc(func(*gohttp.Request) (*gohttp.Response, error) {
		return reply(502, `gateway`), nil
	})
	defer ResetTransport()

	resp, err := Get("https://sms.test").Retry(2, time.Millisecond).Send()
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)
}

func TestContextCancelStopsBackoff(t *testing.T) {
	DefaultClient.Transport = roundTripFunc(func(*gohttp.Request) (*gohttp.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})
	defer ResetTransport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Get("https://sms.test").WithContext(ctx).Retry(5, time.Hour).Send()
	assert.ErrorIs(t, err, context.Canceled)
}
