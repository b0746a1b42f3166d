package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/pkg/workerpool"
)

func TestSubmitWaitRunsEverything(t *testing.T) {
	pool := workerpool.New("test", 4)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, pool.SubmitWait(context.Background(), func(context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		}))
	}
	wg.Wait()
	pool.Shutdown()

	assert.EqualValues(t, 100, count.Load())
}

func TestDoReturnsTaskResult(t *testing.T) {
	pool := workerpool.New("thumbnails", 2)
	defer pool.Shutdown()

	err := pool.Do(context.Background(), func(context.Context) error { return errors.New("decode failed") })
	assert.EqualError(t, err, "decode failed")

	err = pool.Do(context.Background(), func(context.Context) error { panic("bad image") })
	assert.ErrorContains(t, err, "panicked")

	assert.NoError(t, pool.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestSubmitReportsFull(t *testing.T) {
	pool := workerpool.New("test", 1)
	defer pool.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started

	// queue holds two
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) error { return nil }))
	assert.ErrorIs(t, pool.Submit(context.Background(), func(context.Context) error { return nil }), workerpool.ErrPoolFull)

	close(block)
}

func TestClosedPool(t *testing.T) {
	pool := workerpool.New("test", 2)
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(context.Background(), func(context.Context) error { return nil }), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.Do(context.Background(), func(context.Context) error { return nil }), workerpool.ErrPoolClosed)
}
