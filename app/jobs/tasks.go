package jobs

import (
	"context"
	"time"

	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/schedule"
)

// Maintenance is the housekeeping the scheduler drives.
type Maintenance interface {
	PurgeExpiredCodes(ctx context.Context) (int64, error)
	ExpireSubscriptions(ctx context.Context) (int64, error)
	RefreshConfig(ctx context.Context) error
}

const (
	TaskPurgeCodes          = "otp.purge"
	TaskExpireSubscriptions = "subscriptions.expire"
	TaskRefreshConfig       = "config.refresh"
	TaskSweepCache          = "cache.sweep"
)

// Schedule registers the maintenance tasks on s.
func Schedule(s *schedule.Scheduler, m Maintenance) error {
	tasks := []struct {
		name, spec string
		run        schedule.Task
	}{
		{TaskPurgeCodes, "@every 15m", counted(TaskPurgeCodes, m.PurgeExpiredCodes)},
		{TaskExpireSubscriptions, "0 30 0 * * *", counted(TaskExpireSubscriptions, m.ExpireSubscriptions)},
		{TaskRefreshConfig, "@every 5m", m.RefreshConfig},
		{TaskSweepCache, "@every 10m", sweepCache},
	}
	for _, t := range tasks {
		if err := s.Add(t.name, t.spec, t.run); err != nil {
			return err
		}
	}
	return nil
}

func counted(name string, fn func(context.Context) (int64, error)) schedule.Task {
	return func(ctx context.Context) error {
		start := time.Now()
		n, err := fn(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("schedule: rows updated", "task", name, "rows", n, "duration", time.Since(start).String())
		}
		return nil
	}
}

// sweepCache bounds the in-process cache and limiters used when redis is
// not connected.
func sweepCache(context.Context) error {
	if n := cache.Sweep(); n > 0 {
		logger.Debug("schedule: cache swept", "entries", n)
	}
	return nil
}
