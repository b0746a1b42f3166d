// Package logger provides the application's structured logger built on log/slog.
//
// WithCtx returns the request-scoped logger injected by middleware.Logger, so
// every line written while serving a request carries its request_id:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("payment approved", "order_id", order.ID)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rrnagar/marketplace/config"
)

// L is the process-wide base logger.
var L *slog.Logger

var closers []func()

func init() {
	L = slog.New(newHandler(os.Stdout))
	slog.SetDefault(L)
}

func level() slog.Level {
	switch strings.ToLower(config.LogLevel()) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if config.IsProduction() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level()}
	if config.IsProduction() {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup rebuilds L from the loaded configuration, adding the optional
// rotating file sink (LOG_FILE) and MongoDB sink (LOG_MONGO_URI).
// Call once after config.Load().
func Setup() {
	handlers := []slog.Handler{newHandler(os.Stdout)}

	if path := config.LogFile(); path != "" {
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    64, // megabytes
			MaxAge:     14,
			MaxBackups: 7,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level()}))
		closers = append(closers, func() { _ = rotating.Close() })
	}

	if uri := config.LogMongoURI(); uri != "" {
		mh, err := NewMongoHandler(MongoSink{
			URI:       uri,
			Database:  config.Get("LOG_MONGO_DB", "rrnagar"),
			Service:   config.Get("APP_NAME", "rrnagar"),
			Env:       config.AppEnv(),
			Retention: time.Duration(config.Int("LOG_MONGO_RETENTION_DAYS", 30)) * 24 * time.Hour,
		})
		if err != nil {
			slog.Warn("logger: mongo sink disabled", "error", err)
		} else {
			handlers = append(handlers, mh)
			closers = append(closers, mh.Close)
		}
	}

	if len(handlers) == 1 {
		L = slog.New(handlers[0])
	} else {
		L = slog.New(fanout(handlers))
	}
	slog.SetDefault(L)
}

// Close flushes and closes the optional sinks.
func Close() {
	for _, c := range closers {
		c()
	}
	closers = nil
}

type ctxKey struct{}

// WithCtx returns the logger stored in ctx by InjectLogger, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
