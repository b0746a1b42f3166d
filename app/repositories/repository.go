// Package repositories is the gorm data access layer. Every repository
// takes the *gorm.DB it runs on, so services can hand it a transaction.
package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/pkg/orm"
	"github.com/rrnagar/marketplace/pkg/response"
)

// ErrNotFound replaces gorm.ErrRecordNotFound and zero-row deletes.
var ErrNotFound = errors.New("record not found")

// Scope narrows a query.
type Scope = func(*gorm.DB) *gorm.DB

// Repository is the CRUD shared by every model.
type Repository[T any] struct {
	db *gorm.DB
}

func NewRepository[T any](db *gorm.DB) Repository[T] {
	return Repository[T]{db: db}
}

func (r Repository[T]) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r Repository[T]) Find(ctx context.Context, id uint, scopes ...Scope) (*T, error) {
	var v T
	if err := r.DB(ctx).Scopes(scopes...).First(&v, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r Repository[T]) FirstWhere(ctx context.Context, query any, args ...any) (*T, error) {
	var v T
	if err := r.DB(ctx).Where(query, args...).First(&v).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r Repository[T]) List(ctx context.Context, scopes ...Scope) ([]T, error) {
	var out []T
	err := r.DB(ctx).Scopes(scopes...).Find(&out).Error
	return out, err
}

func (r Repository[T]) Paginate(ctx context.Context, page, perPage int, scopes ...Scope) ([]T, response.Pagination, error) {
	var out []T
	p, err := orm.On(r.DB(ctx).Model(new(T)).Scopes(scopes...)).Paginate(page, perPage, &out)
	return out, p, err
}

func (r Repository[T]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	return orm.On(r.DB(ctx).Model(new(T)).Scopes(scopes...)).Count()
}

func (r Repository[T]) Create(ctx context.Context, v *T) error {
	return r.DB(ctx).Create(v).Error
}

func (r Repository[T]) Save(ctx context.Context, v *T) error {
	return r.DB(ctx).Save(v).Error
}

// Update applies column changes to row id.
func (r Repository[T]) Update(ctx context.Context, id uint, changes map[string]any) error {
	res := r.DB(ctx).Model(new(T)).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repository[T]) Delete(ctx context.Context, id uint) error {
	res := r.DB(ctx).Delete(new(T), id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// OrderBy is a Scope for a fixed ORDER BY clause.
func OrderBy(clause string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Order(clause) }
}

func Where(query any, args ...any) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}

func Preload(assoc string, args ...any) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Preload(assoc, args...) }
}
