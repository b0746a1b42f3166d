package controllers

import (
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/ctx"
)

// IdempotencyHeader lets clients retry a payment submission safely.
const IdempotencyHeader = "Idempotency-Key"

type OrderController struct {
	svc *services.Services
}

func NewOrderController(svc *services.Services) *OrderController {
	return &OrderController{svc: svc}
}

// Customer

func (oc *OrderController) Quote(c *ctx.Context) {
	var in services.OrderInput
	if !c.BindJSON(&in) {
		return
	}
	q, err := oc.svc.Orders.Quote(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(q)
}

func (oc *OrderController) Create(c *ctx.Context) {
	var in services.OrderInput
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.svc.Orders.Create(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(o)
}

func (oc *OrderController) Index(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := oc.svc.Orders.CustomerOrders(c.Context(), c.UserID(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (oc *OrderController) Show(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := oc.svc.Orders.CustomerOrder(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

func (oc *OrderController) Cancel(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := oc.svc.Orders.Cancel(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

// PaymentInstructions handles GET /api/orders/{id}/payment.
func (oc *OrderController) PaymentInstructions(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ins, err := oc.svc.Orders.PaymentInstructions(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(ins)
}

// SubmitPayment handles POST /api/orders/{id}/payments. A replayed
// submission answers 200 with the stored payment instead of 201.
func (oc *OrderController) SubmitPayment(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.PaymentInput
	if !c.BindJSON(&in) {
		return
	}
	p, created, err := oc.svc.Orders.SubmitPayment(c.Context(), c.UserID(), id, in, c.Header(IdempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		c.SetHeader("Idempotent-Replayed", "true")
		c.Success(p)
		return
	}
	c.Created(p)
}

// Supplier

func (oc *OrderController) SupplierOrders(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := oc.svc.Orders.SupplierOrders(c.Context(), c.UserID(), c.Query("status"), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (oc *OrderController) MarkDelivered(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := oc.svc.Orders.MarkDelivered(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

// Admin

func (oc *OrderController) Search(c *ctx.Context) {
	f := repositories.OrderFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		CustomerID:    uint(c.QueryInt("customer_id", 0)),
		SupplierID:    uint(c.QueryInt("supplier_id", 0)),
	}
	page, perPage := c.Page()
	items, p, err := oc.svc.Orders.Search(c.Context(), f, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (oc *OrderController) AdminShow(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := oc.svc.Orders.Order(c.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

func (oc *OrderController) PendingPayments(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := oc.svc.Orders.PendingPayments(c.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

// ApprovePayment handles POST /api/payments/{orderId}/approve. Approving
// twice is not an error; the second call returns the unchanged order.
func (oc *OrderController) ApprovePayment(c *ctx.Context) {
	id, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	o, err := oc.svc.Orders.ApprovePayment(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (oc *OrderController) RejectPayment(c *ctx.Context) {
	id, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	var in rejectRequest
	if !c.BindJSON(&in) {
		return
	}
	o, err := oc.svc.Orders.RejectPayment(c.Context(), c.UserID(), id, in.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(o)
}

