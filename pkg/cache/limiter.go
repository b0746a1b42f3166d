package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of one Allow call.
type LimitResult struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Limiter is a sliding-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (LimitResult, error)
	Reset(ctx context.Context, key string) error
}

// fallbacks are the in-process limiters handed out by NewLimiter; Sweep
// prunes them.
var fallbacks struct {
	mu   sync.Mutex
	list []*MemoryLimiter
}

// NewLimiter returns a redis-backed limiter when redis is connected, or an
// in-process one otherwise.
func NewLimiter(prefix string) Limiter {
	if RDB != nil {
		return NewRedisLimiter(RDB, prefix)
	}
	l := NewMemoryLimiter(prefix)
	fallbacks.mu.Lock()
	fallbacks.list = append(fallbacks.list, l)
	fallbacks.mu.Unlock()
	return l
}

// slidingWindow keeps one sorted-set member per accepted hit, scored by the
// hit time in milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local current = redis.call('ZCARD', key)

if current < limit then
	local seq = redis.call('INCR', key .. ':seq')
	redis.call('ZADD', key, now, now .. ':' .. seq)
	local ttl = math.ceil(window_ms / 1000)
	redis.call('EXPIRE', key, ttl)
	redis.call('EXPIRE', key .. ':seq', ttl)
	return {1, limit - current - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = 0
if oldest and #oldest >= 2 then
	reset_at = tonumber(oldest[2]) + window_ms
end
return {0, 0, reset_at}
`)

// RedisLimiter runs the sliding window atomically inside redis.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (LimitResult, error) {
	now := time.Now()
	res, err := slidingWindow.Run(ctx, l.rdb, []string{l.prefix + key},
		now.UnixMilli(), now.Add(-window).UnixMilli(), limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return LimitResult{}, fmt.Errorf("cache/limiter: %w", err)
	}
	if len(res) != 3 {
		return LimitResult{}, fmt.Errorf("cache/limiter: unexpected reply length %d", len(res))
	}

	out := LimitResult{Allowed: res[0] == 1, Remaining: int(res[1]), Limit: limit, ResetAt: now.Add(window)}
	if res[2] > 0 {
		out.ResetAt = time.UnixMilli(res[2])
	}
	return out, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.prefix+key, l.prefix+key+":seq").Err()
}

// MemoryLimiter is the in-process equivalent of RedisLimiter.
type MemoryLimiter struct {
	mu     sync.Mutex
	prefix string
	hits   map[string][]time.Time
	window time.Duration // longest window seen by Allow
	now    func() time.Time
}

func NewMemoryLimiter(prefix string) *MemoryLimiter {
	return &MemoryLimiter{prefix: prefix, hits: map[string][]time.Time{}, now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (LimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if window > l.window {
		l.window = window
	}
	now := l.now()
	k := l.prefix + key
	kept := l.hits[k][:0]
	for _, t := range l.hits[k] {
		if t.After(now.Add(-window)) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.hits[k] = kept
		return LimitResult{Allowed: false, Remaining: 0, Limit: limit, ResetAt: kept[0].Add(window)}, nil
	}

	kept = append(kept, now)
	l.hits[k] = kept
	return LimitResult{Allowed: true, Remaining: limit - len(kept), Limit: limit, ResetAt: kept[0].Add(window)}, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.hits, l.prefix+key)
	l.mu.Unlock()
	return nil
}

// Prune forgets keys whose newest hit is older than window and returns how
// many were dropped.
func (l *MemoryLimiter) Prune(window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-window)
	removed := 0
	for k, hits := range l.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(l.hits, k)
			removed++
		}
	}
	return removed
}

// Sweep prunes with the longest window the limiter has been asked about.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	window := l.window
	l.mu.Unlock()
	return l.Prune(window)
}
