package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/response"
)

// ContentService manages blogs, ads and product reviews.
type ContentService struct {
	db *gorm.DB
}

// Blogs

type BlogInput struct {
	Title     string `json:"title"     validate:"required,max=190"`
	Slug      string `json:"slug"      validate:"nullable,slug,max=210"`
	Content   string `json:"content"   validate:"required"`
	CoverURL  string `json:"coverUrl"  validate:"nullable,max=500"`
	Published *bool  `json:"published"`
}

// PublishedBlogs lists published posts, newest first.
func (s *ContentService) PublishedBlogs(ctx context.Context, page, perPage int) ([]models.Blog, response.Pagination, error) {
	return repositories.NewRepository[models.Blog](s.db).Paginate(ctx, page, perPage,
		repositories.Where("published = ?", true), repositories.OrderBy("published_at DESC"), repositories.OrderBy("id DESC"))
}

func (s *ContentService) BlogBySlug(ctx context.Context, slug string) (*models.Blog, error) {
	return repositories.NewRepository[models.Blog](s.db).FirstWhere(ctx, "slug = ? AND published = ?", slug, true)
}

// Blogs is the admin listing, drafts included.
func (s *ContentService) Blogs(ctx context.Context, page, perPage int) ([]models.Blog, response.Pagination, error) {
	return repositories.NewRepository[models.Blog](s.db).Paginate(ctx, page, perPage, repositories.OrderBy("id DESC"))
}

func applyBlog(b *models.Blog, in BlogInput) {
	b.Title = strings.TrimSpace(in.Title)
	b.Content = in.Content
	b.CoverURL = in.CoverURL
	if in.Slug != "" {
		b.Slug = in.Slug
	} else if b.Slug == "" {
		b.Slug = Slugify(b.Title)
	}
	if in.Published != nil {
		b.Published = *in.Published
	}
	if b.Published && b.PublishedAt == nil {
		now := time.Now()
		b.PublishedAt = &now
	}
}

func (s *ContentService) CreateBlog(ctx context.Context, authorID uint, in BlogInput) (*models.Blog, error) {
	b := &models.Blog{AuthorID: &authorID}
	applyBlog(b, in)
	if b.Slug == "" {
		return nil, invalid("slug", "The slug field is required.")
	}
	if err := repositories.NewRepository[models.Blog](s.db).Create(ctx, b); err != nil {
		return nil, uniqueErr(err, "slug", "The slug has already been taken.")
	}
	return b, nil
}

func (s *ContentService) UpdateBlog(ctx context.Context, id uint, in BlogInput) (*models.Blog, error) {
	repo := repositories.NewRepository[models.Blog](s.db)
	b, err := repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	applyBlog(b, in)
	if err := repo.Save(ctx, b); err != nil {
		return nil, uniqueErr(err, "slug", "The slug has already been taken.")
	}
	return b, nil
}

func (s *ContentService) DeleteBlog(ctx context.Context, id uint) error {
	return repositories.NewRepository[models.Blog](s.db).Delete(ctx, id)
}

// Ads

type AdInput struct {
	Title      string     `json:"title"      validate:"required,max=190"`
	ImageURL   string     `json:"imageUrl"   validate:"nullable,max=500"`
	LinkURL    string     `json:"linkUrl"    validate:"nullable,url,max=500"`
	Position   int        `json:"position"   validate:"nullable,min=0"`
	Active     *bool      `json:"active"`
	StartsAt   *time.Time `json:"startsAt"`
	EndsAt     *time.Time `json:"endsAt"`
	SupplierID *uint      `json:"supplierId"`
}

// ActiveAds lists active ads whose window contains now, by position.
func (s *ContentService) ActiveAds(ctx context.Context, now time.Time) ([]models.Ad, error) {
	ads, err := repositories.NewRepository[models.Ad](s.db).List(ctx,
		repositories.Where("active = ?", true),
		repositories.Where("starts_at IS NULL OR starts_at <= ?", now),
		repositories.Where("ends_at IS NULL OR ends_at >= ?", now),
		repositories.OrderBy("position ASC"), repositories.OrderBy("id ASC"))
	if ads == nil {
		ads = []models.Ad{}
	}
	return ads, err
}

func (s *ContentService) Ads(ctx context.Context, page, perPage int) ([]models.Ad, response.Pagination, error) {
	return repositories.NewRepository[models.Ad](s.db).Paginate(ctx, page, perPage,
		repositories.OrderBy("position ASC"), repositories.OrderBy("id DESC"))
}

func applyAd(a *models.Ad, in AdInput) error {
	if in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt) {
		return invalid("endsAt", "The ends at must be after starts at.")
	}
	a.Title = strings.TrimSpace(in.Title)
	a.ImageURL = in.ImageURL
	a.LinkURL = in.LinkURL
	a.Position = in.Position
	if in.Active != nil {
		a.Active = *in.Active
	}
	a.StartsAt = in.StartsAt
	a.EndsAt = in.EndsAt
	a.SupplierID = in.SupplierID
	return nil
}

func (s *ContentService) CreateAd(ctx context.Context, in AdInput) (*models.Ad, error) {
	a := &models.Ad{Active: true}
	if err := applyAd(a, in); err != nil {
		return nil, err
	}
	if err := repositories.NewRepository[models.Ad](s.db).Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ContentService) UpdateAd(ctx context.Context, id uint, in AdInput) (*models.Ad, error) {
	repo := repositories.NewRepository[models.Ad](s.db)
	a, err := repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyAd(a, in); err != nil {
		return nil, err
	}
	if err := repo.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ContentService) DeleteAd(ctx context.Context, id uint) error {
	return repositories.NewRepository[models.Ad](s.db).Delete(ctx, id)
}

// Reviews

type ReviewInput struct {
	Rating     int    `json:"rating"     validate:"required,between=1|5"`
	Comment    string `json:"comment"    validate:"nullable,max=2000"`
	SupplierID *uint  `json:"supplierId"`
	OrderID    *uint  `json:"orderId"`
}

type ProductReviews struct {
	Items   []models.Review `json:"items"`
	Average float64         `json:"average"`
	Count   int64           `json:"count"`
}

func (s *ContentService) Reviews(ctx context.Context, productID uint, page, perPage int) (*ProductReviews, response.Pagination, error) {
	repo := repositories.NewRepository[models.Review](s.db)
	items, p, err := repo.Paginate(ctx, page, perPage,
		repositories.Where("product_id = ?", productID),
		repositories.Preload("Customer"), repositories.OrderBy("id DESC"))
	if err != nil {
		return nil, p, err
	}
	var agg struct {
		Average float64
		Count   int64
	}
	if err := repo.DB(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error; err != nil {
		return nil, p, err
	}
	if items == nil {
		items = []models.Review{}
	}
	return &ProductReviews{Items: items, Average: round2(agg.Average), Count: agg.Count}, p, nil
}

// Review records the customer's rating of a product. A second review of
// the same product replaces the first.
func (s *ContentService) Review(ctx context.Context, customerID, productID uint, in ReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("rating", "The rating must be between 1 and 5.")
	}
	if _, err := repositories.NewProductRepository(s.db).Find(ctx, productID); err != nil {
		return nil, err
	}
	if in.OrderID != nil {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND customer_id = ? AND product_id = ?", *in.OrderID, customerID, productID).
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, invalid("orderId", "The selected order is invalid.")
		}
	}

	repo := repositories.NewRepository[models.Review](s.db)
	r, err := repo.FirstWhere(ctx, "customer_id = ? AND product_id = ?", customerID, productID)
	if errors.Is(err, ErrNotFound) {
		r = &models.Review{CustomerID: customerID, ProductID: productID}
	} else if err != nil {
		return nil, err
	}
	r.Rating = in.Rating
	r.Comment = strings.TrimSpace(in.Comment)
	r.SupplierID = in.SupplierID
	r.OrderID = in.OrderID
	if err := repo.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ContentService) DeleteReview(ctx context.Context, id uint) error {
	return repositories.NewRepository[models.Review](s.db).Delete(ctx, id)
}
