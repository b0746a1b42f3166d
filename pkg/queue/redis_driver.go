package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rrnagar/marketplace/pkg/logger"
)

const (
	redisQueueKey   = "rrnagar:queue:jobs"
	redisDelayedKey = "rrnagar:queue:delayed"
)

// RedisDriver keeps ready jobs in a list (LPUSH/BRPOP) and delayed jobs in a
// sorted set scored by their due time.
type RedisDriver struct {
	rdb *redis.Client
}

func NewRedisDriver(rdb *redis.Client) *RedisDriver {
	return &RedisDriver{rdb: rdb}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, redisQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop waits up to five seconds per call.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, 5*time.Second, redisQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (d *RedisDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	err := d.rdb.ZAdd(ctx, redisDelayedKey, redis.Z{
		Score:  float64(time.Now().Add(delay).Unix()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

// PromoteDelayed moves due delayed jobs onto the ready list every second
// until ctx is cancelled. `queue:work` runs it next to the workers.
func (d *RedisDriver) PromoteDelayed(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := strconv.FormatInt(time.Now().Unix(), 10)
		due, err := d.rdb.ZRangeByScore(ctx, redisDelayedKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
		if err != nil || len(due) == 0 {
			continue
		}
		for _, job := range due {
			// ZREM first so two promoters never both push the same job.
			removed, err := d.rdb.ZRem(ctx, redisDelayedKey, job).Result()
			if err != nil || removed == 0 {
				continue
			}
			if err := d.rdb.LPush(ctx, redisQueueKey, job).Err(); err != nil {
				logger.Error("queue/redis: promote delayed", "error", err)
			}
		}
	}
}
