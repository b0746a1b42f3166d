// Package testkit holds the helpers shared by the service and route tests:
// an in-memory SQLite database, an HTTP client for handlers that speaks the
// response envelope, and a mock transport for outgoing calls.
package testkit

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/pkg/database"
)

var dbSeq atomic.Int64

// DB opens a private in-memory SQLite database, migrates models into it and
// closes it when the test ends.
func DB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := database.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("testkit: open sqlite: %v", err)
	}
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("testkit: migrate: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
