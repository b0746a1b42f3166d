package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rrnagar/marketplace/pkg/reqid"
)

// MongoSink configures the MongoDB log sink.
type MongoSink struct {
	URI        string
	Database   string
	Collection string
	Service    string
	Env        string
	Retention  time.Duration
	QueueSize  int
	BatchSize  int
	FlushEvery time.Duration
}

func (s *MongoSink) defaults() {
	if s.Collection == "" {
		s.Collection = "logs"
	}
	if s.Retention <= 0 {
		s.Retention = 30 * 24 * time.Hour
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 4096
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 50
	}
	if s.FlushEvery <= 0 {
		s.FlushEvery = 2 * time.Second
	}
}

// LogEntry is one stored log line. The request fields written by
// middleware.Logger are lifted out of Attrs so they can be indexed.
type LogEntry struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Service   string    `bson:"service"`
	Env       string    `bson:"env"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Method    string    `bson:"method,omitempty"`
	Path      string    `bson:"path,omitempty"`
	Status    int64     `bson:"status,omitempty"`
	Error     string    `bson:"error,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// MongoHandler writes records to MongoDB in batches from one goroutine.
// When its buffer is full, records are dropped and counted.
type MongoHandler struct {
	sink    MongoSink
	level   slog.Leveler
	col     *mongo.Collection
	client  *mongo.Client
	entries chan LogEntry
	done    chan struct{}
	dropped *atomic.Int64
	attrs   []slog.Attr
	group   string
}

// NewMongoHandler connects, ensures the TTL and request_id indexes, and
// starts the writer.
func NewMongoHandler(sink MongoSink) (*MongoHandler, error) {
	sink.defaults()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(sink.URI).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(5))
	if err != nil {
		return nil, fmt.Errorf("logger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger/mongo: ping: %w", err)
	}

	col := client.Database(sink.Database).Collection(sink.Collection)
	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "time", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(sink.Retention.Seconds()))},
		{Keys: bson.D{{Key: "request_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		slog.Warn("logger/mongo: index setup failed", "error", err)
	}

	h := newMongoHandler(sink)
	h.col, h.client = col, client
	go h.run()
	return h, nil
}

func newMongoHandler(sink MongoSink) *MongoHandler {
	sink.defaults()
	return &MongoHandler{
		sink:    sink,
		level:   level(),
		entries: make(chan LogEntry, sink.QueueSize),
		done:    make(chan struct{}),
		dropped: new(atomic.Int64),
	}
}

func (h *MongoHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *MongoHandler) Handle(ctx context.Context, r slog.Record) error {
	select {
	case h.entries <- h.entry(ctx, r):
	default:
		h.dropped.Add(1)
	}
	return nil
}

// entry converts r, falling back to the request id in ctx when the record
// was logged through the base logger.
func (h *MongoHandler) entry(ctx context.Context, r slog.Record) LogEntry {
	e := LogEntry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Service: h.sink.Service,
		Env:     h.sink.Env,
		Msg:     r.Message,
		Attrs:   bson.M{},
	}
	add := func(a slog.Attr) {
		v := a.Value.Resolve()
		if h.group == "" {
			switch a.Key {
			case "request_id":
				e.RequestID = v.String()
				return
			case "method":
				e.Method = v.String()
				return
			case "path":
				e.Path = v.String()
				return
			case "status":
				if v.Kind() == slog.KindInt64 {
					e.Status = v.Int64()
					return
				}
			case "error":
				e.Error = v.String()
				return
			}
		}
		e.Attrs[h.group+a.Key] = v.Any()
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})
	if e.RequestID == "" && ctx != nil {
		e.RequestID = reqid.FromCtx(ctx)
	}
	if len(e.Attrs) == 0 {
		e.Attrs = nil
	}
	return e
}

func (h *MongoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *MongoHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func (h *MongoHandler) run() {
	ticker := time.NewTicker(h.sink.FlushEvery)
	defer ticker.Stop()

	batch := make([]any, 0, h.sink.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := h.col.InsertMany(ctx, batch); err != nil {
			// stdout only; logging through L would loop back here
			fmt.Printf("logger/mongo: insert %d entries: %v\n", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-h.entries:
			batch = append(batch, e)
			if len(batch) >= h.sink.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-h.done:
			for len(h.entries) > 0 {
				batch = append(batch, <-h.entries)
			}
			flush()
			return
		}
	}
}

// Close flushes what is buffered and disconnects.
func (h *MongoHandler) Close() {
	select {
	case <-h.done:
		return
	default:
		close(h.done)
	}
	if n := h.dropped.Load(); n > 0 {
		fmt.Printf("logger/mongo: %d entries dropped on a full buffer\n", n)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.client.Disconnect(ctx)
}

// fanout sends each record to every enabled handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
