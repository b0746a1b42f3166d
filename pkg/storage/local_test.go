package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDiskRoundTrip(t *testing.T) {
	d := NewLocalDisk(t.TempDir(), "http://localhost:8080/uploads/")
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "2026/10/a.txt", strings.NewReader("hello"), "text/plain"))
	assert.True(t, d.Exists(ctx, "2026/10/a.txt"))
	assert.Equal(t, "http://localhost:8080/uploads/2026/10/a.txt", d.URL("2026/10/a.txt"))

	rc, err := d.Get(ctx, "2026/10/a.txt")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(b))

	require.NoError(t, d.Delete(ctx, "2026/10/a.txt"))
	require.NoError(t, d.Delete(ctx, "2026/10/a.txt"))
	_, err = d.Get(ctx, "2026/10/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalDiskStaysInsideRoot(t *testing.T) {
	d := NewLocalDisk(t.TempDir(), "/uploads")
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, "../../escape.txt", strings.NewReader("x"), ""))
	assert.True(t, d.Exists(ctx, "escape.txt"), "key is cleaned relative to root")
}

func TestDefaultFallsBackToLocal(t *testing.T) {
	require.Error(t, SetDefault("gcs"))
	assert.NotNil(t, Default())
}
