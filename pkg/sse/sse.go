// Package sse streams server-sent events. A Broker fans published events
// out to subscribers; Serve attaches one HTTP client to a broker.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rrnagar/marketplace/pkg/logger"
)

// Event is one message on the stream.
type Event struct {
	Name string
	Data []byte
}

const subscriberBuffer = 16

// Broker fans events out to every subscriber. A subscriber whose buffer is
// full misses the event rather than stalling the publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[chan Event]struct{}{}}
}

// Subscribe returns a channel of events and a func that unsubscribes and
// closes it.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish JSON-encodes data and sends it as event name.
func (b *Broker) Publish(name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	ev := Event{Name: name, Data: raw}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("sse: subscriber buffer full, dropping event", "event", name)
		}
	}
	return nil
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Serve holds the request open and writes every event published on b
// until the client goes away. A comment line every keepalive stops
// proxies from closing an idle stream.
func Serve(w http.ResponseWriter, r *http.Request, b *Broker, keepalive time.Duration) {
	rc := http.NewResponseController(w)
	// long-lived: lift the server's write timeout for this response
	_ = rc.SetWriteDeadline(time.Time{})
	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		logger.WithCtx(r.Context()).Warn("sse: flush unsupported", "error", err)
		return
	}

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			_ = rc.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			_ = rc.Flush()
		}
	}
}
