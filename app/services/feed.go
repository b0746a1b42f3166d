package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/response"
)

// FeedService is the admin notifications feed.
type FeedService struct {
	db *gorm.DB
}

type FeedPage struct {
	Items  []models.Notification `json:"items"`
	Unread int64                 `json:"unread"`
}

func (s *FeedService) List(ctx context.Context, adminID uint, unreadOnly bool, page, perPage int) (*FeedPage, response.Pagination, error) {
	repo := repositories.NewNotificationRepository(s.db)
	items, p, err := repo.Feed(ctx, adminID, unreadOnly, page, perPage)
	if err != nil {
		return nil, p, err
	}
	unread, err := repo.UnreadCount(ctx, adminID)
	if err != nil {
		return nil, p, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &FeedPage{Items: items, Unread: unread}, p, nil
}

func (s *FeedService) MarkRead(ctx context.Context, adminID, id uint) error {
	return repositories.NewNotificationRepository(s.db).MarkRead(ctx, adminID, id)
}

func (s *FeedService) MarkAllRead(ctx context.Context, adminID uint) (int64, error) {
	return repositories.NewNotificationRepository(s.db).MarkAllRead(ctx, adminID)
}
