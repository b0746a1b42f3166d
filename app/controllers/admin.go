package controllers

import (
	"time"

	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/ctx"
	"github.com/rrnagar/marketplace/pkg/sse"
	"github.com/rrnagar/marketplace/pkg/ws"
)

// AdminController serves the admin back office under /api/admin and the
// admin-only /api/analytics endpoints.
type AdminController struct {
	svc *services.Services
}

func NewAdminController(svc *services.Services) *AdminController {
	return &AdminController{svc: svc}
}

func (ac *AdminController) Dashboard(c *ctx.Context) {
	o, err := ac.svc.Admins.Dashboard(c.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

// Admin accounts

func (ac *AdminController) Admins(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := ac.svc.Admins.List(c.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (ac *AdminController) CreateAdmin(c *ctx.Context) {
	var in services.AdminInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := ac.svc.Admins.Create(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(a)
}

func (ac *AdminController) ApproveAdmin(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := ac.svc.Admins.Approve(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(a)
}

func (ac *AdminController) Customers(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := ac.svc.Admins.Customers(c.Context(), c.Query("search"), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

// Supplier review

func (ac *AdminController) Suppliers(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := ac.svc.Suppliers.List(c.Context(), c.Query("status"), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (ac *AdminController) PendingSuppliers(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := ac.svc.Suppliers.PendingApprovals(c.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (ac *AdminController) SupplierKYC(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := ac.svc.Suppliers.KYC(c.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(view)
}

func (ac *AdminController) ApproveSupplier(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := ac.svc.Suppliers.Approve(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(s)
}

func (ac *AdminController) RejectSupplier(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in rejectRequest
	if !c.BindJSON(&in) {
		return
	}
	s, err := ac.svc.Suppliers.Reject(c.Context(), c.UserID(), id, in.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(s)
}

// Notifications feed

func (ac *AdminController) Notifications(c *ctx.Context) {
	page, perPage := c.Page()
	feed, p, err := ac.svc.Feed.List(c.Context(), c.UserID(), c.Query("unread") == "1" || c.Query("unread") == "true", page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(map[string]any{"items": feed.Items, "unread": feed.Unread, "pagination": p})
}

func (ac *AdminController) MarkRead(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ac.svc.Feed.MarkRead(c.Context(), c.UserID(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Notification marked as read."))
}

func (ac *AdminController) MarkAllRead(c *ctx.Context) {
	n, err := ac.svc.Feed.MarkAllRead(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(map[string]int64{"updated": n})
}

// Stream upgrades to a websocket that receives every new feed entry.
func (ac *AdminController) Stream(c *ctx.Context) {
	ws.Serve(c.W, c.R, ac.svc.Hub())
}

// Events is Stream over server-sent events.
func (ac *AdminController) Events(c *ctx.Context) {
	sse.Serve(c.W, c.R, ac.svc.Events(), 25*time.Second)
}

// Platform config

func (ac *AdminController) Config(c *ctx.Context) {
	rows, err := ac.svc.Config.Typed(c.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(rows)
}

func (ac *AdminController) UpdateConfig(c *ctx.Context) {
	key := c.Param("key")
	var in services.ConfigInput
	if !c.BindJSON(&in) {
		return
	}
	row, err := ac.svc.Config.Set(c.Context(), key, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Log().Info("platform config updated", "key", key, "admin_id", c.UserID())
	c.Success(row)
}

// Analytics

func (ac *AdminController) Overview(c *ctx.Context) {
	o, err := ac.svc.Analytics.Overview(c.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

func (ac *AdminController) Sales(c *ctx.Context) {
	days, err := ac.svc.Analytics.Sales(c.Context(), c.QueryInt("days", 7), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(days)
}

func (ac *AdminController) TopProducts(c *ctx.Context) {
	top, err := ac.svc.Analytics.TopProducts(c.Context(), c.QueryInt("limit", 10))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(top)
}
