// Package schedule runs recurring maintenance tasks on robfig/cron.
//
//	s := schedule.New(time.UTC)
//	s.Add("otp.purge", "@every 15m", purgeExpiredCodes)
//	s.Add("subscriptions.expire", "0 30 0 * * *", expireSubscriptions)
//	s.Start()
//	defer s.Stop(ctx)
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rrnagar/marketplace/pkg/logger"
)

// Task is one run of a scheduled job.
type Task func(ctx context.Context) error

// parser accepts 5 or 6 field specs and descriptors like "@daily".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Entry describes a registered task.
type Entry struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

type job struct {
	name    string
	spec    string
	id      cron.EntryID
	task    Task
	running atomic.Bool
}

type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	jobs    map[string]*job
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New creates a stopped scheduler in loc (nil means UTC).
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithParser(parser)),
		jobs:    map[string]*job{},
		ctx:     ctx,
		cancel:  cancel,
		timeout: 10 * time.Minute,
	}
}

// Add registers task under name. A run is skipped while the previous run of
// the same task is still going.
func (s *Scheduler) Add(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("schedule: task %q already registered", name)
	}

	j := &job{name: name, spec: spec, task: task}
	id, err := s.cron.AddFunc(spec, func() { s.execute(j) })
	if err != nil {
		return fmt.Errorf("schedule: %s: invalid spec %q: %w", name, spec, err)
	}
	j.id = id
	s.jobs[name] = j
	return nil
}

// RunNow executes a task synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("schedule: unknown task %q", name)
	}
	return s.execute(j)
}

func (s *Scheduler) execute(j *job) (err error) {
	if !j.running.CompareAndSwap(false, true) {
		logger.Warn("schedule: previous run still active, skipping", "task", j.name)
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule: %s panicked: %v", j.name, r)
		}
		if err != nil {
			logger.Error("schedule: task failed", "task", j.name, "error", err, "duration", time.Since(start).String())
			return
		}
		logger.Debug("schedule: task done", "task", j.name, "duration", time.Since(start).String())
	}()
	return j.task(ctx)
}

// Entries lists tasks by name with their next and previous run times.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for _, j := range s.jobs {
		e := s.cron.Entry(j.id)
		out = append(out, Entry{Name: j.name, Spec: j.spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("schedule: started", "tasks", len(s.jobs))
}

// Stop prevents new runs, cancels running tasks' context and waits for them
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("schedule: stop deadline exceeded")
	}
}
