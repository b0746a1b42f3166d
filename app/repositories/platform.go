package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/response"
)

type NotificationRepository struct {
	Repository[models.Notification]
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{NewRepository[models.Notification](db)}
}

func visibleTo(adminID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("admin_id IS NULL OR admin_id = ?", adminID)
	}
}

// Feed lists notifications visible to adminID, unread first.
func (r *NotificationRepository) Feed(ctx context.Context, adminID uint, unreadOnly bool, page, perPage int) ([]models.Notification, response.Pagination, error) {
	scopes := []Scope{visibleTo(adminID), OrderBy("is_read ASC"), OrderBy("id DESC")}
	if unreadOnly {
		scopes = append(scopes, Where("is_read = ?", false))
	}
	return r.Paginate(ctx, page, perPage, scopes...)
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, adminID uint) (int64, error) {
	return r.Count(ctx, visibleTo(adminID), Where("is_read = ?", false))
}

func (r *NotificationRepository) MarkRead(ctx context.Context, adminID, id uint) error {
	res := r.DB(ctx).Model(&models.Notification{}).
		Scopes(visibleTo(adminID)).
		Where("id = ?", id).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, adminID uint) (int64, error) {
	res := r.DB(ctx).Model(&models.Notification{}).
		Scopes(visibleTo(adminID)).
		Where("is_read = ?", false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountByType is used to check that an event produced exactly one entry.
func (r *NotificationRepository) CountByType(ctx context.Context, typ string) (int64, error) {
	return r.Count(ctx, Where("type = ?", typ))
}

type ConfigRepository struct {
	Repository[models.PlatformConfig]
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{NewRepository[models.PlatformConfig](db)}
}

func (r *ConfigRepository) ByKey(ctx context.Context, key string) (*models.PlatformConfig, error) {
	return r.FirstWhere(ctx, map[string]any{"key": key})
}

func (r *ConfigRepository) All(ctx context.Context) ([]models.PlatformConfig, error) {
	return r.List(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}})
	})
}

type SubscriptionRepository struct {
	Repository[models.Subscription]
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{NewRepository[models.Subscription](db)}
}

// ExpireLapsed marks active subscriptions whose end date has passed.
func (r *SubscriptionRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.Subscription{}).
		Where("status = ? AND end_date < ?", models.SubscriptionActive, now).
		Update("status", models.SubscriptionExpired)
	return res.RowsAffected, res.Error
}
