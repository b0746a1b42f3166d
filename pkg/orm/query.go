// Package orm adds pagination and read-through caching on top of gorm.
package orm

import (
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/database"
	"github.com/rrnagar/marketplace/pkg/response"
)

type Query struct {
	db *gorm.DB
}

// DB starts a query on the process-wide connection.
func DB() *Query { return &Query{db: database.DB} }

// On starts a query on an explicit connection or transaction.
func On(db *gorm.DB) *Query { return &Query{db: db} }

func (q *Query) Model(v interface{}) *Query { return &Query{db: q.db.Model(v)} }

func (q *Query) Where(query interface{}, args ...interface{}) *Query {
	return &Query{db: q.db.Where(query, args...)}
}

func (q *Query) Order(value interface{}) *Query { return &Query{db: q.db.Order(value)} }

func (q *Query) Preload(query string, args ...interface{}) *Query {
	return &Query{db: q.db.Preload(query, args...)}
}

// When applies fn only when cond is true, for optional filters.
func (q *Query) When(cond bool, fn func(*gorm.DB) *gorm.DB) *Query {
	if !cond {
		return q
	}
	return &Query{db: q.db.Scopes(fn)}
}

func (q *Query) Get(dest interface{}) error { return q.db.Find(dest).Error }

func (q *Query) First(dest interface{}) error { return q.db.First(dest).Error }

func (q *Query) Count() (int64, error) {
	var n int64
	err := q.db.Count(&n).Error
	return n, err
}

// Paginate counts the full result, then loads one page into dest.
func (q *Query) Paginate(page, perPage int, dest interface{}) (response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int64
	if err := q.db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := q.db.Offset((page - 1) * perPage).Limit(perPage).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}
	return response.NewPagination(page, perPage, total), nil
}

// Cache loads dest from cache key, or runs the query and stores the result
// for ttl.
func (q *Query) Cache(key string, ttl time.Duration, dest interface{}) error {
	return Remember(key, ttl, dest, func() error { return q.db.Find(dest).Error })
}

// Remember is Cache for arbitrary loaders. A failed store write is ignored;
// the caller still gets fresh data.
func Remember(key string, ttl time.Duration, dest interface{}, load func() error) error {
	if cache.Get(key, dest) {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	_ = cache.Set(key, dest, ttl)
	return nil
}
