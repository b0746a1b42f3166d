package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "otp:phone:98", []byte("123456"), time.Minute))

	v, err := s.Get(ctx, "otp:phone:98")
	require.NoError(t, err)
	assert.Equal(t, "123456", string(v))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "otp:phone:98")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStoreIncr(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "attempts", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	require.NoError(t, s.Del(ctx, "attempts"))
	n, err := s.Incr(ctx, "attempts", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"), time.Second)
	_ = s.Set(ctx, "b", []byte("2"), 0)
	now = now.Add(time.Minute)

	assert.Equal(t, 1, s.Sweep())
	_, err := s.Get(ctx, "b")
	assert.NoError(t, err)
}

func TestPackageHelpersUseDefaultStore(t *testing.T) {
	Use(NewMemoryStore())

	type payload struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	require.NoError(t, Set("session:abc", payload{UserID: 7, Role: "customer"}, time.Hour))

	var got payload
	require.True(t, Get("session:abc", &got))
	assert.Equal(t, uint(7), got.UserID)

	require.NoError(t, Forget("session:abc"))
	assert.False(t, Get("session:abc", &got))
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	l := NewMemoryLimiter("otp:")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "a@b.c", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, _ := l.Allow(ctx, "a@b.c", 3, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)

	now = now.Add(61 * time.Second)
	res, _ = l.Allow(ctx, "a@b.c", 3, time.Minute)
	assert.True(t, res.Allowed)

	require.NoError(t, l.Reset(ctx, "a@b.c"))
	l.Prune(time.Minute)
}

func TestSweepCoversDefaultStoreAndFallbackLimiters(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { Use(prev) })
	ctx := context.Background()
	now := time.Now()

	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	Use(s)
	_ = s.Set(ctx, "session:gone", []byte("{}"), time.Minute)
	_ = s.Set(ctx, "session:live", []byte("{}"), time.Hour)

	l, ok := NewLimiter("rl:ip:").(*MemoryLimiter)
	require.True(t, ok)
	l.now = func() time.Time { return now }
	_, err := l.Allow(ctx, "10.0.0.1", 10, time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.GreaterOrEqual(t, Sweep(), 2)

	_, err = s.Get(ctx, "session:live")
	assert.NoError(t, err)
	l.mu.Lock()
	assert.Empty(t, l.hits)
	l.mu.Unlock()
}
