// Package queue runs background jobs (outgoing mail and SMS, feed fan-out)
// off the request path.
//
//	queue.Register("mail.send", func() queue.Job { return &jobs.SendMail{} })
//	_ = queue.Dispatch(ctx, "mail.send", &jobs.SendMail{To: c.Email, ...})
//
// Drivers: "sync" runs the job inline, "memory" uses an in-process channel
// and "redis" a redis list shared by every process running `queue:work`.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/metrics"
)

// Job is a unit of background work. Implementations must round-trip
// through encoding/json.
type Job interface {
	Handle(ctx context.Context) error
}

// Driver stores encoded jobs between Dispatch and a worker.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is ready. A nil payload with nil error
	// means "nothing yet, poll again".
	Pop(ctx context.Context) ([]byte, error)
}

// Delayer is implemented by drivers that can hold a job until a time.
type Delayer interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

var ErrUnknownJob = errors.New("queue: unknown job type")

type envelope struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}

// Manager owns a driver, the job registry and the retry policy.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver // nil means run inline
	registry map[string]func() Job
	maxTries int
	backoff  func(attempt int) time.Duration
	failed   FailedStore
}

func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxTries: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

var std = NewManager(nil)

// Default returns the process-wide manager.
func Default() *Manager { return std }

func SetDriver(d Driver) { std.SetDriver(d) }

func Register(name string, f func() Job) { std.Register(name, f) }

func Dispatch(ctx context.Context, name string, job Job) error {
	return std.Dispatch(ctx, name, job)
}

func DispatchAfter(ctx context.Context, name string, job Job, delay time.Duration) error {
	return std.DispatchAfter(ctx, name, job, delay)
}

func StartWorkers(ctx context.Context, n int) *sync.WaitGroup { return std.StartWorkers(ctx, n) }

// SetDriver swaps the driver. nil switches to inline execution.
func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	m.driver = d
	m.mu.Unlock()
}

func (m *Manager) SetMaxTries(n int) {
	m.mu.Lock()
	m.maxTries = n
	m.mu.Unlock()
}

// SetBackoff replaces the delay between attempts.
func (m *Manager) SetBackoff(f func(attempt int) time.Duration) {
	m.mu.Lock()
	m.backoff = f
	m.mu.Unlock()
}

// UseFailedStore sets where exhausted jobs are recorded.
func (m *Manager) UseFailedStore(s FailedStore) {
	m.mu.Lock()
	m.failed = s
	m.mu.Unlock()
}

func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	m.registry[name] = factory
	m.mu.Unlock()
}

func (m *Manager) encode(name string, job Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal %s: %w", name, err)
	}
	return json.Marshal(envelope{Type: name, Payload: payload, QueuedAt: time.Now().UTC()})
}

// Dispatch enqueues job under its registered name, or runs it inline
// (with retries) when no driver is set.
func (m *Manager) Dispatch(ctx context.Context, name string, job Job) error {
	m.mu.RLock()
	d := m.driver
	_, known := m.registry[name]
	m.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if d == nil {
		m.run(context.WithoutCancel(ctx), name, job)
		return nil
	}
	raw, err := m.encode(name, job)
	if err != nil {
		return err
	}
	return d.Push(ctx, raw)
}

// DispatchAfter delays the job. Drivers without native delay support get a
// timer goroutine.
func (m *Manager) DispatchAfter(ctx context.Context, name string, job Job, delay time.Duration) error {
	m.mu.RLock()
	d := m.driver
	m.mu.RUnlock()

	if dl, ok := d.(Delayer); ok {
		raw, err := m.encode(name, job)
		if err != nil {
			return err
		}
		return dl.PushDelayed(ctx, raw, delay)
	}
	time.AfterFunc(delay, func() {
		if err := m.Dispatch(context.Background(), name, job); err != nil {
			logger.Error("queue: delayed dispatch failed", "type", name, "error", err)
		}
	})
	return nil
}

// StartWorkers runs n workers until ctx is cancelled. Wait on the returned
// group for them to finish their current job.
func (m *Manager) StartWorkers(ctx context.Context, n int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}
	logger.Info("queue: workers started", "count", n)
	return &wg
}

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		m.mu.RLock()
		d := m.driver
		m.mu.RUnlock()
		if d == nil {
			return
		}

		raw, err := d.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw != nil {
			m.Process(ctx, raw)
		}
	}
}

// Process decodes and runs one envelope.
func (m *Manager) Process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}
	m.run(ctx, env.Type, job)
}

func (m *Manager) run(ctx context.Context, name string, job Job) {
	m.mu.RLock()
	tries, backoff, failed := m.maxTries, m.backoff, m.failed
	m.mu.RUnlock()

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		if lastErr = safeHandle(ctx, job); lastErr == nil {
			metrics.QueueJobsProcessed.WithLabelValues(name, "success").Inc()
			logger.Debug("queue: job processed", "type", name, "attempt", attempt)
			return
		}
		logger.Warn("queue: job failed", "type", name, "attempt", attempt, "error", lastErr)
		if attempt < tries && !sleep(ctx, backoff(attempt)) {
			break
		}
	}

	metrics.QueueJobsProcessed.WithLabelValues(name, "failed").Inc()
	logger.Error("queue: job exhausted retries", "type", name, "error", lastErr)
	if failed != nil {
		payload, _ := json.Marshal(job)
		if err := failed.Record(ctx, name, payload, lastErr, tries); err != nil {
			logger.Error("queue: record failed job", "type", name, "error", err)
		}
	}
}

func safeHandle(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	return job.Handle(ctx)
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
