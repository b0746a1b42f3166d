// Package migration runs timestamp-named schema migrations and records them
// in the `migrations` table in batches.
//
//	func init() {
//	    migration.Register("2026_01_01_000001_create_customers", createCustomers{})
//	}
package migration

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/pkg/logger"
)

type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// Record is a row of the tracking table.
type Record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (Record) TableName() string { return "migrations" }

type entry struct {
	name string
	m    Migration
}

var registry []entry

// Register adds a migration. Names sort lexicographically into run order.
func Register(name string, m Migration) {
	for _, e := range registry {
		if e.name == name {
			panic(fmt.Sprintf("migration: %s registered twice", name))
		}
	}
	registry = append(registry, entry{name: name, m: m})
}

// Names returns every registered migration in run order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for _, e := range sorted() {
		out = append(out, e.name)
	}
	return out
}

func sorted() []entry {
	out := append([]entry(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type Runner struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Runner { return &Runner{db: db} }

func (r *Runner) ensureTable() error {
	if err := r.db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	return nil
}

func (r *Runner) pending() ([]entry, error) {
	var ran []Record
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, fmt.Errorf("migration: load history: %w", err)
	}
	done := make(map[string]bool, len(ran))
	for _, rec := range ran {
		done[rec.Name] = true
	}

	var out []entry
	for _, e := range sorted() {
		if !done[e.name] {
			out = append(out, e)
		}
	}
	return out, nil
}

// Run applies all pending migrations as one batch and returns their names.
// Each migration and its record commit together.
func (r *Runner) Run() ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	pending, err := r.pending()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	batch := r.lastBatch() + 1
	ran := make([]string, 0, len(pending))
	for _, e := range pending {
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := e.m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&Record{Name: e.name, Batch: batch}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("migration: %s up: %w", e.name, err)
		}
		logger.Info("migration: applied", "name", e.name, "batch", batch)
		ran = append(ran, e.name)
	}
	return ran, nil
}

// Rollback reverts the most recent batch, newest first.
func (r *Runner) Rollback() ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	last := r.lastBatch()
	if last == 0 {
		return nil, nil
	}

	var records []Record
	if err := r.db.Where("batch = ?", last).Order("id desc").Find(&records).Error; err != nil {
		return nil, err
	}

	byName := make(map[string]Migration, len(registry))
	for _, e := range registry {
		byName[e.name] = e.m
	}

	var reverted []string
	for _, rec := range records {
		m, ok := byName[rec.Name]
		if !ok {
			return reverted, fmt.Errorf("migration: cannot roll back %s: %w", rec.Name, ErrNotRegistered)
		}
		rec := rec
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&rec).Error
		})
		if err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		logger.Info("migration: rolled back", "name", rec.Name)
		reverted = append(reverted, rec.Name)
	}
	return reverted, nil
}

// Status is one row of `rrnagar migrate:status`.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

func (r *Runner) Status() ([]Status, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	var ran []Record
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}
	batches := make(map[string]int, len(ran))
	for _, rec := range ran {
		batches[rec.Name] = rec.Batch
	}

	out := make([]Status, 0, len(registry))
	for _, e := range sorted() {
		b, ok := batches[e.name]
		out = append(out, Status{Name: e.name, Ran: ok, Batch: b})
	}
	return out, nil
}

func (r *Runner) lastBatch() int {
	var max struct{ Max int }
	r.db.Model(&Record{}).Select("COALESCE(MAX(batch), 0) AS max").Scan(&max)
	return max.Max
}

var ErrNotRegistered = errors.New("migration not registered")
