// Package event is an in-process publish/subscribe bus. Services fire domain
// events after their transaction commits; listeners do the side effects
// (feed notifications, websocket broadcast, customer mail).
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/rrnagar/marketplace/pkg/logger"
)

// Handler receives the payload passed to Fire.
type Handler func(ctx context.Context, payload any) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus { return &Bus{handlers: map[string][]Handler{}} }

var std = NewBus()

// Default returns the process-wide bus.
func Default() *Bus { return std }

func Listen(name string, h Handler) { std.Listen(name, h) }

func Fire(ctx context.Context, name string, payload any) { std.Fire(ctx, name, payload) }

func (b *Bus) Listen(name string, h Handler) {
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

func (b *Bus) listeners(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[name]...)
}

// Fire runs every listener in registration order. A failing or panicking
// listener is logged and does not stop the others; Fire never fails the
// caller.
func (b *Bus) Fire(ctx context.Context, name string, payload any) {
	log := logger.WithCtx(ctx)
	for i, h := range b.listeners(name) {
		if err := call(ctx, h, payload); err != nil {
			log.Warn("event: listener failed", "event", name, "listener", i, "error", err)
		}
	}
}

// FireAsync runs the listeners on a new goroutine detached from ctx's
// cancellation.
func (b *Bus) FireAsync(ctx context.Context, name string, payload any) {
	go b.Fire(context.WithoutCancel(ctx), name, payload)
}

// Has reports whether name has listeners.
func (b *Bus) Has(name string) bool { return len(b.listeners(name)) > 0 }

// Flush removes every listener.
func (b *Bus) Flush() {
	b.mu.Lock()
	b.handlers = map[string][]Handler{}
	b.mu.Unlock()
}

func call(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, payload)
}
