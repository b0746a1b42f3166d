package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/response"
)

type ProductRepository struct {
	Repository[models.Product]
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{NewRepository[models.Product](db)}
}

type ProductFilter struct {
	CategoryID uint
	Search     string
	Status     string
	SupplierID uint
}

func (f ProductFilter) scope(db *gorm.DB) *gorm.DB {
	if f.CategoryID != 0 {
		db = db.Where("products.category_id = ?", f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		db = db.Where("LOWER(products.name) LIKE ? OR LOWER(products.variety) LIKE ?", like, like)
	}
	if f.Status != "" {
		db = db.Where("products.status = ?", f.Status)
	}
	if f.SupplierID != 0 {
		db = db.Where("EXISTS (SELECT 1 FROM product_suppliers ps WHERE ps.product_id = products.id AND ps.supplier_id = ?)", f.SupplierID)
	}
	return db
}

func (r *ProductRepository) Search(ctx context.Context, f ProductFilter, page, perPage int) ([]models.Product, response.Pagination, error) {
	return r.Paginate(ctx, page, perPage, f.scope, Preload("Category"), OrderBy("products.id ASC"))
}

// FindWithOffers loads the product, its category and the active offers of
// approved suppliers.
func (r *ProductRepository) FindWithOffers(ctx context.Context, id uint) (*models.Product, error) {
	return r.Find(ctx, id,
		Preload("Category"),
		Preload("Offers", "is_active = ? AND supplier_id IN (?)", true,
			r.DB(ctx).Model(&models.Supplier{}).Select("id").Where("status = ?", models.SupplierApproved)),
		Preload("Offers.Supplier"),
	)
}

// DeleteWithOffers removes the product with its offers, reviews and
// subscriptions in one transaction. Orders keep their history with the
// product link cleared.
func (r *ProductRepository) DeleteWithOffers(ctx context.Context, id uint) error {
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).Where("product_id = ?", id).Update("product_id", nil).Error; err != nil {
			return err
		}
		for _, dep := range []any{&models.ProductSupplier{}, &models.Review{}, &models.Subscription{}} {
			if err := tx.Where("product_id = ?", id).Delete(dep).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type OfferRepository struct {
	Repository[models.ProductSupplier]
}

func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{NewRepository[models.ProductSupplier](db)}
}

func (r *OfferRepository) Get(ctx context.Context, productID, supplierID uint) (*models.ProductSupplier, error) {
	return r.FirstWhere(ctx, "product_id = ? AND supplier_id = ?", productID, supplierID)
}

func (r *OfferRepository) ForSupplier(ctx context.Context, supplierID uint) ([]models.ProductSupplier, error) {
	return r.List(ctx, Where("supplier_id = ?", supplierID), Preload("Product"), OrderBy("id ASC"))
}

// TakeStock decrements stock when at least qty is available and reports
// whether it did.
func (r *OfferRepository) TakeStock(ctx context.Context, productID, supplierID uint, qty int) (bool, error) {
	res := r.DB(ctx).Model(&models.ProductSupplier{}).
		Where("product_id = ? AND supplier_id = ? AND is_active = ? AND stock >= ?", productID, supplierID, true, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	return res.RowsAffected > 0, res.Error
}

// ReturnStock puts qty back on an offer (cancelled orders).
func (r *OfferRepository) ReturnStock(ctx context.Context, productID, supplierID uint, qty int) error {
	return r.DB(ctx).Model(&models.ProductSupplier{}).
		Where("product_id = ? AND supplier_id = ?", productID, supplierID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}
