// Package server boots the marketplace process: configuration, logging,
// the database, cache and storage connections, the queue, the services,
// and then the HTTP, gRPC health and cron surfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rrnagar/marketplace/app/jobs"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/internal/kernel"
	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/database"
	"github.com/rrnagar/marketplace/pkg/grpc"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/queue"
	"github.com/rrnagar/marketplace/pkg/schedule"
	"github.com/rrnagar/marketplace/pkg/storage"
)

// App is a booted process: connections are open and the services are
// wired, but nothing is listening yet.
type App struct {
	Services  *services.Services
	Queue     *queue.Manager
	Scheduler *schedule.Scheduler

	redis *queue.RedisDriver
}

// Boot loads configuration and opens every connection. A missing redis is
// not fatal: cache, limiter and queue fall back to their in-memory forms.
func Boot() (*App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	logger.Setup()

	if err := database.Connect(); err != nil {
		return nil, err
	}
	if err := cache.Connect(); err != nil {
		logger.Warn("cache: using memory store", "error", err)
	}
	storage.Connect()

	a := &App{}
	a.Queue = queue.Default()
	switch config.QueueDriver() {
	case "redis":
		if cache.RDB == nil {
			logger.Warn("queue: redis unavailable, using memory driver")
			a.Queue.SetDriver(queue.NewMemoryDriver(1024))
			break
		}
		a.redis = queue.NewRedisDriver(cache.RDB)
		a.Queue.SetDriver(a.redis)
	case "sync":
		// nil driver: jobs run inline on Dispatch
	default:
		a.Queue.SetDriver(queue.NewMemoryDriver(1024))
	}
	a.Queue.UseFailedStore(queue.NewDBFailedStore(database.DB))

	a.Services = services.New(services.Deps{DB: database.DB, Queue: a.Queue})
	if err := a.Services.RefreshConfig(context.Background()); err != nil {
		logger.Warn("platform config not loaded", "error", err)
	}

	loc, err := time.LoadLocation(config.Get("APP_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		logger.Warn("schedule: unknown timezone, using UTC", "error", err)
		loc = time.UTC
	}
	a.Scheduler = schedule.New(loc)
	if err := jobs.Schedule(a.Scheduler, a.Services); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return a, nil
}

// Close releases the connections opened by Boot.
func (a *App) Close() {
	if err := database.Close(); err != nil {
		logger.Warn("database: close", "error", err)
	}
	logger.Close()
}

// RunWorkers starts n queue workers, plus the delayed-job promoter when the
// queue lives in redis. The returned group finishes after ctx is done.
func (a *App) RunWorkers(ctx context.Context, n int) *sync.WaitGroup {
	wg := a.Queue.StartWorkers(ctx, n)
	if a.redis != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.redis.PromoteDelayed(ctx)
		}()
	}
	return wg
}

// Start boots the app and serves HTTP and gRPC health, runs the scheduler
// and queue workers, and blocks until SIGINT or SIGTERM.
func Start() error {
	a, err := Boot()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve runs every surface until ctx is cancelled, then shuts them down in
// reverse order.
func (a *App) Serve(ctx context.Context) error {
	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.Services.Hub().Run(bg)
	workers := a.RunWorkers(bg, config.Int("QUEUE_WORKERS", 4))
	a.Scheduler.Start()

	health, err := grpc.Start(config.GRPCPort(), a.Services.Ping)
	if err != nil {
		return err
	}

	router, err := kernel.NewHTTP(a.Services)
	if err != nil {
		health.Stop()
		return err
	}
	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http: listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http: serve failed", "error", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http: shutdown", "error", err)
	}
	health.Stop()
	a.Scheduler.Stop(shutdownCtx)
	cancel()
	workers.Wait()
	logger.Info("stopped")
	return nil
}
