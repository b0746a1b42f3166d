package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/orm"
	"github.com/rrnagar/marketplace/pkg/response"
)

const (
	categoriesKey = "categories:all"
	categoriesTTL = 10 * time.Minute
)

// DefaultCategories is served when the categories table cannot be read,
// and seeded on first install.
var DefaultCategories = []models.Category{
	{Model: models.Model{ID: 1}, Name: "Vegetables", Slug: "vegetables", Icon: "🥕"},
	{Model: models.Model{ID: 2}, Name: "Fruits", Slug: "fruits", Icon: "🍎"},
	{Model: models.Model{ID: 3}, Name: "Dairy", Slug: "dairy", Icon: "🥛"},
	{Model: models.Model{ID: 4}, Name: "Flowers", Slug: "flowers", Icon: "🌼"},
	{Model: models.Model{ID: 5}, Name: "Groceries", Slug: "groceries", Icon: "🛒"},
	{Model: models.Model{ID: 6}, Name: "Home Services", Slug: "home-services", Icon: "🛠"},
}

type CatalogService struct {
	db *gorm.DB
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Categories

// Categories lists every category by ascending id. A failed query falls
// back to DefaultCategories.
func (s *CatalogService) Categories(ctx context.Context) []models.Category {
	var out []models.Category
	err := orm.Remember(categoriesKey, categoriesTTL, &out, func() error {
		var err error
		out, err = repositories.NewRepository[models.Category](s.db).List(ctx, repositories.OrderBy("id ASC"))
		return err
	})
	if err != nil {
		logger.WithCtx(ctx).Warn("catalog: categories query failed, serving defaults", "error", err)
		return DefaultCategories
	}
	if out == nil {
		out = []models.Category{}
	}
	return out
}

type CategoryInput struct {
	Name        string `json:"name"        validate:"required,max=120"`
	Slug        string `json:"slug"        validate:"nullable,slug"`
	Icon        string `json:"icon"        validate:"nullable,max=255"`
	Description string `json:"description"`
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	c := &models.Category{Name: strings.TrimSpace(in.Name), Slug: in.Slug, Icon: in.Icon, Description: in.Description}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if err := repositories.NewRepository[models.Category](s.db).Create(ctx, c); err != nil {
		return nil, uniqueErr(err, "name", "The name has already been taken.")
	}
	_ = cache.Forget(categoriesKey)
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*models.Category, error) {
	repo := repositories.NewRepository[models.Category](s.db)
	c, err := repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Slug = in.Slug
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	c.Icon = in.Icon
	c.Description = in.Description
	if err := repo.Save(ctx, c); err != nil {
		return nil, uniqueErr(err, "name", "The name has already been taken.")
	}
	_ = cache.Forget(categoriesKey)
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		return repositories.NewRepository[models.Category](tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	_ = cache.Forget(categoriesKey)
	return nil
}

// Products

type ProductInput struct {
	Name           string  `json:"name"           validate:"required,max=190"`
	Description    string  `json:"description"`
	CategoryID     *uint   `json:"categoryId"`
	Price          float64 `json:"price"          validate:"gte=0"`
	Variety        string  `json:"variety"        validate:"nullable,max=120"`
	SubVariety     string  `json:"subVariety"     validate:"nullable,max=120"`
	Unit           string  `json:"unit"           validate:"nullable,max=30"`
	WeightKg       float64 `json:"weightKg"       validate:"gte=0"`
	ImageURL       string  `json:"imageUrl"       validate:"nullable,max=500"`
	ThumbURL       string  `json:"thumbUrl"       validate:"nullable,max=500"`
	Status         string  `json:"status"         validate:"nullable,in=active|inactive"`
	MonthlyPackage bool    `json:"monthlyPackage"`
	YearlyPackage  bool    `json:"yearlyPackage"`
	MonthlyPrice   float64 `json:"monthlyPrice"   validate:"gte=0"`
	YearlyPrice    float64 `json:"yearlyPrice"    validate:"gte=0"`
}

func applyProduct(p *models.Product, in ProductInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.CategoryID = in.CategoryID
	p.Price = round2(in.Price)
	p.Variety = in.Variety
	p.SubVariety = in.SubVariety
	p.Unit = in.Unit
	p.WeightKg = in.WeightKg
	p.ImageURL = in.ImageURL
	p.ThumbURL = in.ThumbURL
	p.Status = in.Status
	if p.Status == "" {
		p.Status = models.ProductActive
	}
	p.MonthlyPackage = in.MonthlyPackage
	p.YearlyPackage = in.YearlyPackage
	p.MonthlyPrice = round2(in.MonthlyPrice)
	p.YearlyPrice = round2(in.YearlyPrice)
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := repositories.NewRepository[models.Category](s.db).Find(ctx, *id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid("categoryId", "The selected category is invalid.")
		}
		return err
	}
	return nil
}

func (s *CatalogService) Products(ctx context.Context, f repositories.ProductFilter, page, perPage int) ([]models.Product, response.Pagination, error) {
	return repositories.NewProductRepository(s.db).Search(ctx, f, page, perPage)
}

// Product returns a product with the active offers of approved suppliers.
func (s *CatalogService) Product(ctx context.Context, id uint) (*models.Product, error) {
	return repositories.NewProductRepository(s.db).FindWithOffers(ctx, id)
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	p := &models.Product{}
	applyProduct(p, in)
	if err := repositories.NewProductRepository(s.db).Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	repo := repositories.NewProductRepository(s.db)
	p, err := repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProduct(p, in)
	p.Category = nil
	if err := repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes the product and every supplier offer for it.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	return repositories.NewProductRepository(s.db).DeleteWithOffers(ctx, id)
}

// Offers (stock)

type OfferInput struct {
	Price    *float64 `json:"price"    validate:"nullable,gte=0"`
	Stock    *int     `json:"stock"    validate:"nullable,gte=0"`
	IsActive *bool    `json:"isActive"`
}

// SupplierProductInput is a product created by a supplier together with the
// supplier's own offer.
type SupplierProductInput struct {
	ProductInput
	Stock int `json:"stock" validate:"gte=0"`
}

func (s *CatalogService) approvedSupplier(ctx context.Context, db *gorm.DB, id uint) (*models.Supplier, error) {
	sup, err := repositories.NewSupplierRepository(db).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sup.Status != models.SupplierApproved {
		return nil, ErrNotApproved
	}
	return sup, nil
}

// CreateSupplierProduct adds a product listed by an approved supplier and
// the supplier's offer for it at the product price.
func (s *CatalogService) CreateSupplierProduct(ctx context.Context, supplierID uint, in SupplierProductInput) (*models.Product, error) {
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	if _, err := s.approvedSupplier(ctx, s.db, supplierID); err != nil {
		return nil, err
	}

	p := &models.Product{CreatedBySupplierID: &supplierID}
	applyProduct(p, in.ProductInput)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProductSupplier{
			ProductID: p.ID, SupplierID: supplierID, Price: p.Price, Stock: in.Stock, IsActive: true,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Stock lists the supplier's offers with their products.
func (s *CatalogService) Stock(ctx context.Context, supplierID uint) ([]models.ProductSupplier, error) {
	return repositories.NewOfferRepository(s.db).ForSupplier(ctx, supplierID)
}

// UpsertOffer creates or updates the supplier's offer for productID. A new
// offer defaults to the product price.
func (s *CatalogService) UpsertOffer(ctx context.Context, supplierID, productID uint, in OfferInput) (*models.ProductSupplier, error) {
	if _, err := s.approvedSupplier(ctx, s.db, supplierID); err != nil {
		return nil, err
	}
	product, err := repositories.NewProductRepository(s.db).Find(ctx, productID)
	if err != nil {
		return nil, err
	}

	repo := repositories.NewOfferRepository(s.db)
	offer, err := repo.Get(ctx, productID, supplierID)
	if errors.Is(err, ErrNotFound) {
		offer = &models.ProductSupplier{ProductID: productID, SupplierID: supplierID, Price: product.Price, IsActive: true}
	} else if err != nil {
		return nil, err
	}
	if in.Price != nil {
		offer.Price = round2(*in.Price)
	}
	if in.Stock != nil {
		offer.Stock = *in.Stock
	}
	if in.IsActive != nil {
		offer.IsActive = *in.IsActive
	}
	if err := repo.Save(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *CatalogService) RemoveOffer(ctx context.Context, supplierID, productID uint) error {
	res := s.db.WithContext(ctx).
		Where("product_id = ? AND supplier_id = ?", productID, supplierID).
		Delete(&models.ProductSupplier{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Shops and public supplier pages

func (s *CatalogService) Shops(ctx context.Context, area string) ([]repositories.ShopSummary, error) {
	out, err := repositories.NewSupplierRepository(s.db).Shops(ctx, area)
	if out == nil {
		out = []repositories.ShopSummary{}
	}
	return out, err
}

type Shop struct {
	Supplier *models.Supplier         `json:"supplier"`
	Offers   []models.ProductSupplier `json:"offers"`
}

// Shop is an approved supplier with its active offers.
func (s *CatalogService) Shop(ctx context.Context, supplierID uint) (*Shop, error) {
	sup, err := s.approvedSupplier(ctx, s.db, supplierID)
	if errors.Is(err, ErrNotApproved) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	offers, err := repositories.NewOfferRepository(s.db).List(ctx,
		repositories.Where("supplier_id = ? AND is_active = ?", supplierID, true),
		repositories.Preload("Product"), repositories.OrderBy("id ASC"))
	if err != nil {
		return nil, err
	}
	return &Shop{Supplier: sup, Offers: offers}, nil
}

func (s *CatalogService) PublicSuppliers(ctx context.Context, area string, page, perPage int) ([]models.Supplier, response.Pagination, error) {
	scopes := []repositories.Scope{repositories.Where("status = ?", models.SupplierApproved), repositories.OrderBy("id ASC")}
	if area != "" {
		scopes = append(scopes, repositories.Where("area = ?", area))
	}
	return repositories.NewSupplierRepository(s.db).Paginate(ctx, page, perPage, scopes...)
}

func (s *CatalogService) PublicSupplier(ctx context.Context, id uint) (*models.Supplier, error) {
	return repositories.NewSupplierRepository(s.db).Find(ctx, id, repositories.Where("status = ?", models.SupplierApproved))
}
