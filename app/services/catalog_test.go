package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
)

func TestCategoriesAscendingAndCacheInvalidated(t *testing.T) {
	f := setup(t)

	assert.Empty(t, f.svc.Catalog.Categories(f.ctx))

	veg, err := f.svc.Catalog.CreateCategory(f.ctx, CategoryInput{Name: "Fresh Vegetables"})
	require.NoError(t, err)
	assert.Equal(t, "fresh-vegetables", veg.Slug)
	_, err = f.svc.Catalog.CreateCategory(f.ctx, CategoryInput{Name: "Dairy"})
	require.NoError(t, err)

	got := f.svc.Catalog.Categories(f.ctx)
	require.Len(t, got, 2)
	assert.Equal(t, "Fresh Vegetables", got[0].Name)
	assert.Less(t, got[0].ID, got[1].ID)

	_, err = f.svc.Catalog.CreateCategory(f.ctx, CategoryInput{Name: "Dairy"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
}

func TestDeleteCategoryKeepsProducts(t *testing.T) {
	f := setup(t)
	c, err := f.svc.Catalog.CreateCategory(f.ctx, CategoryInput{Name: "Fruits"})
	require.NoError(t, err)
	p, err := f.svc.Catalog.CreateProduct(f.ctx, ProductInput{Name: "Mango", Price: 80, CategoryID: &c.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.Catalog.DeleteCategory(f.ctx, c.ID))

	got, err := f.svc.Catalog.Product(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}

func TestCreateProductChecksCategory(t *testing.T) {
	f := setup(t)
	missing := uint(42)
	_, err := f.svc.Catalog.CreateProduct(f.ctx, ProductInput{Name: "Mango", Price: 80, CategoryID: &missing})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "categoryId")
}

func TestDeleteProductRemovesOffers(t *testing.T) {
	f := setup(t)
	s := f.supplier(t, "ravi@example.com", models.SupplierApproved)
	p := f.product(t, "Tomato", 40)
	f.offer(t, p.ID, s.ID, 38, 5)

	require.NoError(t, f.svc.Catalog.DeleteProduct(f.ctx, p.ID))

	var n int64
	require.NoError(t, f.db.Model(&models.ProductSupplier{}).Where("product_id = ?", p.ID).Count(&n).Error)
	assert.Zero(t, n)
	_, err := f.svc.Catalog.Product(f.ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProductKeepsOrderHistory(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Exec("PRAGMA foreign_keys = ON").Error)
	c := f.customer(t, "asha@example.com")
	p := f.product(t, "Tomato", 40)
	order := &models.Order{CustomerID: c.ID, ProductID: &p.ID, Qty: 1, UnitPrice: 40, TotalAmount: 40}
	require.NoError(t, f.db.Create(order).Error)
	require.NoError(t, f.db.Create(&models.Review{CustomerID: c.ID, ProductID: p.ID, Rating: 5}).Error)
	now := time.Now()
	require.NoError(t, f.db.Create(&models.Subscription{
		CustomerID: c.ID, ProductID: p.ID, Plan: models.PlanMonthly, Price: 900,
		StartDate: now, EndDate: now.AddDate(0, 1, 0),
	}).Error)

	require.NoError(t, f.svc.Catalog.DeleteProduct(f.ctx, p.ID))

	var kept models.Order
	require.NoError(t, f.db.First(&kept, order.ID).Error)
	assert.Nil(t, kept.ProductID)
	assert.Equal(t, 40.0, kept.TotalAmount)
	for _, m := range []any{&models.Review{}, &models.Subscription{}} {
		var n int64
		require.NoError(t, f.db.Model(m).Where("product_id = ?", p.ID).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
}

func TestSupplierProductsNeedApproval(t *testing.T) {
	f := setup(t)
	pending := f.supplier(t, "new@example.com", models.SupplierPending)
	approved := f.supplier(t, "ravi@example.com", models.SupplierApproved)

	_, err := f.svc.Catalog.CreateSupplierProduct(f.ctx, pending.ID, SupplierProductInput{ProductInput: ProductInput{Name: "Eggs", Price: 7}, Stock: 30})
	assert.ErrorIs(t, err, ErrNotApproved)

	p, err := f.svc.Catalog.CreateSupplierProduct(f.ctx, approved.ID, SupplierProductInput{ProductInput: ProductInput{Name: "Eggs", Price: 7}, Stock: 30})
	require.NoError(t, err)

	stock, err := f.svc.Catalog.Stock(f.ctx, approved.ID)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, p.ID, stock[0].ProductID)
	assert.Equal(t, 30, stock[0].Stock)

	offer, err := f.svc.Catalog.UpsertOffer(f.ctx, approved.ID, p.ID, OfferInput{Price: ptr(6.5), Stock: ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, 6.5, offer.Price)
	assert.Equal(t, 12, offer.Stock)

	require.NoError(t, f.svc.Catalog.RemoveOffer(f.ctx, approved.ID, p.ID))
	assert.ErrorIs(t, f.svc.Catalog.RemoveOffer(f.ctx, approved.ID, p.ID), ErrNotFound)
}

func TestShopsListApprovedSuppliersOnly(t *testing.T) {
	f := setup(t)
	approved := f.supplier(t, "ravi@example.com", models.SupplierApproved)
	pending := f.supplier(t, "new@example.com", models.SupplierPending)
	p := f.product(t, "Curd", 30)
	f.offer(t, p.ID, approved.ID, 30, 4)

	shops, err := f.svc.Catalog.Shops(f.ctx, "")
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, approved.ID, shops[0].ID)
	assert.Equal(t, int64(1), shops[0].ActiveOffers)

	_, err = f.svc.Catalog.Shop(f.ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	shop, err := f.svc.Catalog.Shop(f.ctx, approved.ID)
	require.NoError(t, err)
	require.Len(t, shop.Offers, 1)
	assert.Equal(t, "Curd", shop.Offers[0].Product.Name)
}

func TestProductSearch(t *testing.T) {
	f := setup(t)
	f.product(t, "Basmati Rice", 120)
	f.product(t, "Sona Masoori Rice", 70)
	f.product(t, "Toor Dal", 150)

	items, p, err := f.svc.Catalog.Products(f.ctx, repositories.ProductFilter{Search: "rice"}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(2), p.Total)
}
