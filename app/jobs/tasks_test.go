package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/schedule"
)

type maintenance struct {
	purged, expired, refreshed int
}

func (m *maintenance) PurgeExpiredCodes(context.Context) (int64, error) {
	m.purged++
	return 2, nil
}

func (m *maintenance) ExpireSubscriptions(context.Context) (int64, error) {
	m.expired++
	return 0, nil
}

func (m *maintenance) RefreshConfig(context.Context) error {
	m.refreshed++
	return nil
}

func TestScheduleRegistersMaintenance(t *testing.T) {
	s := schedule.New(nil)
	m := &maintenance{}
	require.NoError(t, Schedule(s, m))

	names := []string{}
	for _, e := range s.Entries() {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{TaskPurgeCodes, TaskExpireSubscriptions, TaskRefreshConfig, TaskSweepCache}, names)

	require.NoError(t, s.RunNow(TaskPurgeCodes))
	require.NoError(t, s.RunNow(TaskExpireSubscriptions))
	require.NoError(t, s.RunNow(TaskRefreshConfig))
	assert.Equal(t, maintenance{purged: 1, expired: 1, refreshed: 1}, *m)
}

func TestCacheSweepTaskDropsExpiredKeys(t *testing.T) {
	store := cache.NewMemoryStore()
	prev := cache.Default()
	cache.Use(store)
	t.Cleanup(func() { cache.Use(prev) })

	require.NoError(t, cache.Set("session:abandoned", map[string]string{"role": "customer"}, time.Millisecond))
	require.NoError(t, cache.Set("session:active", map[string]string{"role": "admin"}, time.Hour))
	time.Sleep(5 * time.Millisecond)

	s := schedule.New(nil)
	require.NoError(t, Schedule(s, &maintenance{}))
	require.NoError(t, s.RunNow(TaskSweepCache))

	assert.Zero(t, store.Sweep(), "expired key already removed")
	var got map[string]string
	assert.True(t, cache.Get("session:active", &got))
}
