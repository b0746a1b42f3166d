// Package seeders fills a fresh database with the rows the marketplace
// needs before anyone signs in: categories, platform config defaults and
// the first super admin. Every seeder is idempotent.
package seeders

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Func seeds one kind of row.
type Func func(db *gorm.DB) error

type entry struct {
	name string
	fn   Func
}

var (
	mu      sync.Mutex
	entries []entry
)

// Register adds a seeder. Seeders run in registration order.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, entry{name: name, fn: fn})
}

// Names lists the registered seeders in run order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.name)
	}
	return out
}

// RunAll executes every seeder inside one transaction and stops on the
// first error.
func RunAll(db *gorm.DB) ([]string, error) {
	mu.Lock()
	current := make([]entry, len(entries))
	copy(current, entries)
	mu.Unlock()

	ran := make([]string, 0, len(current))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, e := range current {
			if err := e.fn(tx); err != nil {
				return fmt.Errorf("seeder %q: %w", e.name, err)
			}
			ran = append(ran, e.name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ran, nil
}
