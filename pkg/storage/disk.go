// Package storage stores uploaded files on a named disk: "local" (the
// uploads directory, served at /uploads) or "s3" (any S3-compatible bucket).
//
//	storage.Connect()
//	err := storage.Default().Put(ctx, "2026/10/<uuid>.jpg", r, "image/jpeg")
//	url := storage.Default().URL("2026/10/<uuid>.jpg")
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/logger"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("storage: object not found")

// Disk is a flat object store addressed by slash-separated keys.
type Disk interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
	Name() string
}

var (
	mu          sync.RWMutex
	disks       = map[string]Disk{}
	defaultName = "local"
)

// Connect boots the local disk and, when S3_BUCKET is set, the s3 disk.
// STORAGE_DISK picks the default; a broken s3 setup falls back to local.
func Connect() {
	Register(NewLocalDisk(config.UploadDir(), config.StorageURL()))

	want := config.StorageDefault()
	if config.StorageS3Bucket() != "" {
		d, err := NewS3Disk(context.Background())
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
		} else {
			Register(d)
		}
	}
	if err := SetDefault(want); err != nil {
		logger.Warn("storage: falling back to local disk", "wanted", want, "error", err)
		_ = SetDefault("local")
	}
}

// Register adds or replaces a disk under d.Name().
func Register(d Disk) {
	mu.Lock()
	disks[d.Name()] = d
	mu.Unlock()
}

func SetDefault(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := disks[name]; !ok {
		return fmt.Errorf("storage: disk %q is not configured", name)
	}
	defaultName = name
	return nil
}

// Use returns a named disk.
func Use(name string) (Disk, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := disks[name]
	if !ok {
		return nil, fmt.Errorf("storage: disk %q is not configured", name)
	}
	return d, nil
}

// Default returns the default disk, booting the local one on first use.
func Default() Disk {
	mu.RLock()
	d, ok := disks[defaultName]
	mu.RUnlock()
	if ok {
		return d
	}
	local := NewLocalDisk(config.UploadDir(), config.StorageURL())
	Register(local)
	return local
}
