package controllers

import (
	"strings"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/ctx"
	"github.com/rrnagar/marketplace/pkg/rbac"
)

// CatalogController serves categories, products, shops, public supplier
// pages, supplier stock and product reviews.
type CatalogController struct {
	svc *services.Services
}

func NewCatalogController(svc *services.Services) *CatalogController {
	return &CatalogController{svc: svc}
}

// Categories

func (cc *CatalogController) Categories(c *ctx.Context) {
	c.Success(cc.svc.Catalog.Categories(c.Context()))
}

func (cc *CatalogController) CreateCategory(c *ctx.Context) {
	var in services.CategoryInput
	if !c.BindJSON(&in) {
		return
	}
	cat, err := cc.svc.Catalog.CreateCategory(c.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(cat)
}

func (cc *CatalogController) UpdateCategory(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.CategoryInput
	if !c.BindJSON(&in) {
		return
	}
	cat, err := cc.svc.Catalog.UpdateCategory(c.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(cat)
}

func (cc *CatalogController) DeleteCategory(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := cc.svc.Catalog.DeleteCategory(c.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Category deleted."))
}

// Products

// Products lists products. Admins may filter on any status; everyone else
// sees active products only.
func (cc *CatalogController) Products(c *ctx.Context) {
	f := repositories.ProductFilter{
		CategoryID: uint(c.QueryInt("category_id", 0)),
		Search:     strings.TrimSpace(c.DefaultQuery("search", c.Query("q"))),
		SupplierID: uint(c.QueryInt("supplier_id", 0)),
		Status:     models.ProductActive,
	}
	if c.Role() == rbac.RoleAdmin {
		f.Status = c.Query("status")
	}
	page, perPage := c.Page()
	items, p, err := cc.svc.Catalog.Products(c.Context(), f, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (cc *CatalogController) Product(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := cc.svc.Catalog.Product(c.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(p)
}

func (cc *CatalogController) CreateProduct(c *ctx.Context) {
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := cc.svc.Catalog.CreateProduct(c.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(p)
}

func (cc *CatalogController) UpdateProduct(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := cc.svc.Catalog.UpdateProduct(c.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(p)
}

func (cc *CatalogController) DeleteProduct(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := cc.svc.Catalog.DeleteProduct(c.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Product deleted."))
}

// Shops and public supplier pages

func (cc *CatalogController) Shops(c *ctx.Context) {
	shops, err := cc.svc.Catalog.Shops(c.Context(), c.Query("area"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(shops)
}

func (cc *CatalogController) Shop(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	shop, err := cc.svc.Catalog.Shop(c.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(shop)
}

func (cc *CatalogController) Suppliers(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := cc.svc.Catalog.PublicSuppliers(c.Context(), c.Query("area"), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (cc *CatalogController) Supplier(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := cc.svc.Catalog.PublicSupplier(c.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(s)
}

// Stock (supplier)

func (cc *CatalogController) Stock(c *ctx.Context) {
	offers, err := cc.svc.Catalog.Stock(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(offers)
}

// UpdateStock handles PUT /api/stock/{productId}: creates or edits the
// caller's offer for the product.
func (cc *CatalogController) UpdateStock(c *ctx.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	var in services.OfferInput
	if !c.BindJSON(&in) {
		return
	}
	offer, err := cc.svc.Catalog.UpsertOffer(c.Context(), c.UserID(), productID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(offer)
}

func (cc *CatalogController) RemoveStock(c *ctx.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	if err := cc.svc.Catalog.RemoveOffer(c.Context(), c.UserID(), productID); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Offer removed."))
}

// CreateSupplierProduct lets an approved supplier list a new product
// together with its own offer.
func (cc *CatalogController) CreateSupplierProduct(c *ctx.Context) {
	var in services.SupplierProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := cc.svc.Catalog.CreateSupplierProduct(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(p)
}

// Reviews

func (cc *CatalogController) Reviews(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, perPage := c.Page()
	got, p, err := cc.svc.Content.Reviews(c.Context(), id, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(map[string]any{"reviews": got, "pagination": p})
}

func (cc *CatalogController) Review(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.ReviewInput
	if !c.BindJSON(&in) {
		return
	}
	r, err := cc.svc.Content.Review(c.Context(), c.UserID(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(r)
}

func (cc *CatalogController) DeleteReview(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := cc.svc.Content.DeleteReview(c.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Review deleted."))
}
