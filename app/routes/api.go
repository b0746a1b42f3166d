// Package routes maps URLs to controllers.
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/rrnagar/marketplace/app/controllers"
	"github.com/rrnagar/marketplace/app/graphql"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/ctx"
	gql "github.com/rrnagar/marketplace/pkg/graphql"
	"github.com/rrnagar/marketplace/pkg/middleware"
	"github.com/rrnagar/marketplace/pkg/rbac"
	"github.com/rrnagar/marketplace/pkg/response"
	"github.com/rrnagar/marketplace/pkg/router"
)

var w = ctx.Wrap

// Register mounts every route on r. r must already carry the global
// middleware stack, session included.
func Register(r *router.Router, svc *services.Services) error {
	schema, err := graphql.NewSchema(svc.Catalog)
	if err != nil {
		return err
	}

	authC := controllers.NewAuthController(svc)
	catalogC := controllers.NewCatalogController(svc)
	orderC := controllers.NewOrderController(svc)
	customerC := controllers.NewCustomerController(svc)
	supplierC := controllers.NewSupplierController(svc)
	adminC := controllers.NewAdminController(svc)
	contentC := controllers.NewContentController(svc)

	r.NotFound(w(controllers.NotFound))
	r.MethodNotAllowed(w(controllers.MethodNotAllowed))
	r.Get("/healthz", "health", health(svc))
	r.Static("/uploads", config.UploadDir())

	api := r.Group("/api", middleware.Authenticate)

	customer := rbac.HasRole(rbac.RoleCustomer)
	supplier := rbac.HasRole(rbac.RoleSupplier)
	admin := rbac.HasRole(rbac.RoleAdmin)

	// Auth
	a := api.Group("/auth")
	a.Post("/otp/request", "auth.otp.request", w(authC.RequestOTP))
	a.Post("/otp/verify", "auth.otp.verify", w(authC.VerifyOTP))
	a.Post("/phone/request", "auth.phone.request", w(authC.RequestPhoneOTP))
	a.Post("/phone/verify", "auth.phone.verify", w(authC.VerifyPhoneOTP))
	a.Get("/me", "auth.me", w(authC.Me))
	a.Post("/logout", "auth.logout", w(authC.Logout))

	// Catalog
	api.Get("/categories", "categories.index", w(catalogC.Categories))
	api.Get("/products", "products.index", w(catalogC.Products))
	api.Get("/products/{id}", "products.show", w(catalogC.Product))
	api.Get("/products/{id}/reviews", "products.reviews", w(catalogC.Reviews))
	api.Post("/products/{id}/reviews", "products.review", w(catalogC.Review), customer)
	api.Get("/shops", "shops.index", w(catalogC.Shops))
	api.Get("/shops/{id}", "shops.show", w(catalogC.Shop))
	api.Get("/suppliers", "suppliers.index", w(catalogC.Suppliers))
	api.Get("/suppliers/{id}", "suppliers.show", w(catalogC.Supplier))

	// Content
	api.Get("/blogs", "blogs.index", w(contentC.Blogs))
	api.Get("/blogs/{slug}", "blogs.show", w(contentC.Blog))
	api.Get("/ads", "ads.index", w(contentC.Ads))
	api.Post("/translate", "translate", w(contentC.Translate))
	api.Post("/upload", "upload", w(contentC.Upload), middleware.RequireAuth)
	api.Post("/graphql", "graphql", gql.Handler(schema))

	// Customer
	cu := api.Group("/customer", customer)
	cu.Get("/profile", "customer.profile", w(customerC.Profile))
	cu.Put("/profile", "customer.profile.update", w(customerC.UpdateProfile))
	cu.Get("/addresses", "customer.addresses", w(customerC.Addresses))
	cu.Post("/addresses", "customer.addresses.store", w(customerC.AddAddress))
	cu.Put("/addresses/{id}", "customer.addresses.update", w(customerC.UpdateAddress))
	cu.Delete("/addresses/{id}", "customer.addresses.destroy", w(customerC.DeleteAddress))

	orders := api.Group("/orders", customer)
	orders.Post("/quote", "orders.quote", w(orderC.Quote))
	orders.Post("", "orders.store", w(orderC.Create))
	orders.Get("", "orders.index", w(orderC.Index))
	orders.Get("/{id}", "orders.show", w(orderC.Show))
	orders.Post("/{id}/cancel", "orders.cancel", w(orderC.Cancel))
	orders.Get("/{id}/payment", "orders.payment", w(orderC.PaymentInstructions))
	orders.Post("/{id}/payments", "orders.payments.store", w(orderC.SubmitPayment))

	subs := api.Group("/subscriptions", customer)
	subs.Get("", "subscriptions.index", w(customerC.Subscriptions))
	subs.Post("", "subscriptions.store", w(customerC.Subscribe))
	subs.Post("/{id}/cancel", "subscriptions.cancel", w(customerC.CancelSubscription))

	// Supplier
	api.Post("/supplier/register", "supplier.register", w(authC.SupplierRegister))
	api.Post("/supplier/login", "supplier.login", w(authC.SupplierLogin))
	su := api.Group("/supplier", supplier)
	su.Get("/profile", "supplier.profile", w(supplierC.Profile))
	su.Put("/profile", "supplier.profile.update", w(supplierC.UpdateProfile))
	su.Get("/kyc", "supplier.kyc", w(supplierC.KYC))
	su.Post("/kyc", "supplier.kyc.submit", w(supplierC.SubmitKYC))
	su.Get("/orders", "supplier.orders", w(orderC.SupplierOrders))
	su.Post("/orders/{id}/deliver", "supplier.orders.deliver", w(orderC.MarkDelivered))
	su.Post("/products", "supplier.products.store", w(catalogC.CreateSupplierProduct))

	stock := api.Group("/stock", supplier)
	stock.Get("", "stock.index", w(catalogC.Stock))
	stock.Put("/{productId}", "stock.update", w(catalogC.UpdateStock))
	stock.Delete("/{productId}", "stock.destroy", w(catalogC.RemoveStock))

	// Payments and analytics
	pay := api.Group("/payments", admin)
	pay.Get("/pending", "payments.pending", w(orderC.PendingPayments))
	pay.Post("/{orderId}/approve", "payments.approve", w(orderC.ApprovePayment))
	pay.Post("/{orderId}/reject", "payments.reject", w(orderC.RejectPayment))

	an := api.Group("/analytics")
	an.Get("/overview", "analytics.overview", w(adminC.Overview), admin)
	an.Get("/sales", "analytics.sales", w(adminC.Sales), admin)
	an.Get("/top-products", "analytics.top", w(adminC.TopProducts), admin)
	an.Get("/supplier", "analytics.supplier", w(supplierC.Analytics), supplier)

	// Admin
	api.Post("/admin/auth/request", "admin.auth.request", w(authC.RequestAdminOTP))
	api.Post("/admin/auth/verify", "admin.auth.verify", w(authC.VerifyAdminOTP))
	ad := api.Group("/admin", admin)
	ad.Get("/dashboard", "admin.dashboard", w(adminC.Dashboard))
	ad.Get("/ws", "admin.ws", w(adminC.Stream))
	ad.Get("/events", "admin.events", w(adminC.Events))

	ad.Get("/admins", "admin.admins", w(adminC.Admins))
	ad.Post("/admins", "admin.admins.store", w(adminC.CreateAdmin))
	ad.Post("/admins/{id}/approve", "admin.admins.approve", w(adminC.ApproveAdmin))
	ad.Get("/customers", "admin.customers", w(adminC.Customers))

	ad.Get("/suppliers", "admin.suppliers", w(adminC.Suppliers))
	ad.Get("/suppliers/pending", "admin.suppliers.pending", w(adminC.PendingSuppliers))
	ad.Get("/suppliers/{id}/kyc", "admin.suppliers.kyc", w(adminC.SupplierKYC))
	ad.Post("/suppliers/{id}/approve", "admin.suppliers.approve", w(adminC.ApproveSupplier))
	ad.Post("/suppliers/{id}/reject", "admin.suppliers.reject", w(adminC.RejectSupplier))

	ad.Get("/orders", "admin.orders", w(orderC.Search))
	ad.Get("/orders/{id}", "admin.orders.show", w(orderC.AdminShow))

	ad.Get("/notifications", "admin.notifications", w(adminC.Notifications))
	ad.Post("/notifications/read-all", "admin.notifications.read_all", w(adminC.MarkAllRead))
	ad.Post("/notifications/{id}/read", "admin.notifications.read", w(adminC.MarkRead))

	ad.Get("/config", "admin.config", w(adminC.Config))
	ad.Put("/config/{key}", "admin.config.update", w(adminC.UpdateConfig))

	ad.Post("/categories", "admin.categories.store", w(catalogC.CreateCategory))
	ad.Put("/categories/{id}", "admin.categories.update", w(catalogC.UpdateCategory))
	ad.Delete("/categories/{id}", "admin.categories.destroy", w(catalogC.DeleteCategory))
	ad.Post("/products", "admin.products.store", w(catalogC.CreateProduct))
	ad.Put("/products/{id}", "admin.products.update", w(catalogC.UpdateProduct))
	ad.Delete("/products/{id}", "admin.products.destroy", w(catalogC.DeleteProduct))
	ad.Delete("/reviews/{id}", "admin.reviews.destroy", w(catalogC.DeleteReview))

	ad.Get("/blogs", "admin.blogs", w(contentC.AdminBlogs))
	ad.Post("/blogs", "admin.blogs.store", w(contentC.CreateBlog))
	ad.Put("/blogs/{id}", "admin.blogs.update", w(contentC.UpdateBlog))
	ad.Delete("/blogs/{id}", "admin.blogs.destroy", w(contentC.DeleteBlog))
	ad.Get("/ads", "admin.ads", w(contentC.AdminAds))
	ad.Post("/ads", "admin.ads.store", w(contentC.CreateAd))
	ad.Put("/ads/{id}", "admin.ads.update", w(contentC.UpdateAd))
	ad.Delete("/ads/{id}", "admin.ads.destroy", w(contentC.DeleteAd))

	return nil
}

// health reports liveness plus a database ping.
func health(svc *services.Services) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		c, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(c); err != nil {
			response.Error(rw, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		response.Success(rw, map[string]string{"status": "ok", "database": "ok"})
	}
}
