package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockStep is one canned reply for outgoing requests whose URL starts with
// MatchURL. An empty MatchURL matches anything.
type MockStep struct {
	MatchURL   string
	StatusCode int
	Body       any
}

// MockTransport implements http.RoundTripper over a list of MockSteps.
// Install it on the shared client:
//
//	mt := testkit.NewMockTransport(testkit.MockStep{MatchURL: "https://translate.example", Body: reply})
//	http.DefaultClient.Transport = mt
//	defer http.ResetTransport()
type MockTransport struct {
	mu       sync.Mutex
	steps    []MockStep
	calls    []int
	requests []*http.Request
	bodies   [][]byte
}

func NewMockTransport(steps ...MockStep) *MockTransport {
	return &MockTransport{steps: steps, calls: make([]int, len(steps))}
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var sent []byte
	if req.Body != nil {
		sent, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.requests = append(mt.requests, req)
	mt.bodies = append(mt.bodies, sent)

	for i, step := range mt.steps {
		if step.MatchURL != "" && !strings.HasPrefix(req.URL.String(), step.MatchURL) {
			continue
		}
		mt.calls[i]++
		return buildResponse(req, step)
	}
	return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call to %s", req.URL)
}

// Calls is how many requests hit step i.
func (mt *MockTransport) Calls(i int) int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.calls[i]
}

// LastBody returns the body of the most recent request.
func (mt *MockTransport) LastBody() []byte {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if len(mt.bodies) == 0 {
		return nil
	}
	return mt.bodies[len(mt.bodies)-1]
}

// AssertAllCalled lists the steps that never matched a request.
func (mt *MockTransport) AssertAllCalled() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for i, s := range mt.steps {
		if mt.calls[i] == 0 {
			errs = append(errs, fmt.Errorf("testkit: mock step %d (matchUrl=%q) was never called", i, s.MatchURL))
		}
	}
	return errs
}

func buildResponse(req *http.Request, step MockStep) (*http.Response, error) {
	code := step.StatusCode
	if code == 0 {
		code = http.StatusOK
	}

	var body []byte
	switch b := step.Body.(type) {
	case nil:
	case string:
		body = []byte(b)
	case []byte:
		body = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("testkit: encode mock body: %w", err)
		}
		body = raw
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, nil
}
