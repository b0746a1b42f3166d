package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/pkg/reqid"
)

func record(msg string, args ...any) slog.Record {
	r := slog.NewRecord(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), slog.LevelWarn, msg, 0)
	r.Add(args...)
	return r
}

func TestMongoEntryLiftsRequestFields(t *testing.T) {
	h := newMongoHandler(MongoSink{Service: "rrnagar", Env: "production"})
	reqLog := h.WithAttrs([]slog.Attr{slog.String("request_id", "req-12345678")}).(*MongoHandler)

	e := reqLog.entry(context.Background(), record("request",
		"method", "POST", "path", "/api/orders", "status", 409, "order_id", 7))

	assert.Equal(t, "rrnagar", e.Service)
	assert.Equal(t, "production", e.Env)
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "req-12345678", e.RequestID)
	assert.Equal(t, "POST", e.Method)
	assert.Equal(t, "/api/orders", e.Path)
	assert.Equal(t, int64(409), e.Status)
	assert.Equal(t, int64(7), e.Attrs["order_id"])
}

func TestMongoEntryFallsBackToContextRequestID(t *testing.T) {
	h := newMongoHandler(MongoSink{Service: "rrnagar"})
	ctx := reqid.WithValue(context.Background(), "ctx-87654321")

	e := h.entry(ctx, record("payment approved", "error", errors.New("mail failed")))
	assert.Equal(t, "ctx-87654321", e.RequestID)
	assert.Equal(t, "mail failed", e.Error)
	assert.Nil(t, e.Attrs)

	grouped := h.WithGroup("job").(*MongoHandler)
	e = grouped.entry(context.Background(), record("retry", "path", "mail"))
	assert.Empty(t, e.Path)
	assert.Equal(t, "mail", e.Attrs["job.path"])
}

func TestMongoHandlerDropsWhenBufferFull(t *testing.T) {
	h := newMongoHandler(MongoSink{QueueSize: 1})
	require.NoError(t, h.Handle(context.Background(), record("one")))
	require.NoError(t, h.Handle(context.Background(), record("two")))
	assert.Equal(t, int64(1), h.dropped.Load())
	assert.Equal(t, "one", (<-h.entries).Msg)
}

type failing struct{ slog.Handler }

func (failing) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestFanoutJoinsErrors(t *testing.T) {
	mh := newMongoHandler(MongoSink{})
	f := fanout{mh, failing{mh}}
	err := f.Handle(context.Background(), record("hello"))
	assert.EqualError(t, err, "sink down")
	assert.Equal(t, "hello", (<-mh.entries).Msg)
}
