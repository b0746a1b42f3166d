package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFireRunsEveryListener(t *testing.T) {
	b := NewBus()
	var got []string

	b.Listen("order.delivered", func(_ context.Context, p any) error {
		got = append(got, "feed:"+p.(string))
		return errors.New("db down")
	})
	b.Listen("order.delivered", func(_ context.Context, p any) error {
		panic("broken listener")
	})
	b.Listen("order.delivered", func(_ context.Context, p any) error {
		got = append(got, "mail:"+p.(string))
		return nil
	})

	b.Fire(context.Background(), "order.delivered", "42")
	assert.Equal(t, []string{"feed:42", "mail:42"}, got)
}

func TestFlush(t *testing.T) {
	b := NewBus()
	b.Listen("x", func(context.Context, any) error { return nil })
	assert.True(t, b.Has("x"))
	b.Flush()
	assert.False(t, b.Has("x"))
}
