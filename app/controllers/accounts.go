package controllers

import (
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/ctx"
)

// CustomerController serves /api/customer/* and /api/subscriptions for the
// signed-in customer.
type CustomerController struct {
	svc *services.Services
}

func NewCustomerController(svc *services.Services) *CustomerController {
	return &CustomerController{svc: svc}
}

func (cc *CustomerController) Profile(c *ctx.Context) {
	cust, err := cc.svc.Customers.Profile(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(cust)
}

func (cc *CustomerController) UpdateProfile(c *ctx.Context) {
	var in services.ProfileInput
	if !c.BindJSON(&in) {
		return
	}
	cust, err := cc.svc.Customers.UpdateProfile(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(cust)
}

func (cc *CustomerController) Addresses(c *ctx.Context) {
	items, err := cc.svc.Customers.Addresses(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(items)
}

func (cc *CustomerController) AddAddress(c *ctx.Context) {
	var in services.AddressInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := cc.svc.Customers.AddAddress(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(a)
}

func (cc *CustomerController) UpdateAddress(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.AddressInput
	if !c.BindJSON(&in) {
		return
	}
	a, err := cc.svc.Customers.UpdateAddress(c.Context(), c.UserID(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(a)
}

func (cc *CustomerController) DeleteAddress(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := cc.svc.Customers.DeleteAddress(c.Context(), c.UserID(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("Address deleted."))
}

// Subscriptions

func (cc *CustomerController) Subscriptions(c *ctx.Context) {
	page, perPage := c.Page()
	items, p, err := cc.svc.Subscriptions.ForCustomer(c.Context(), c.UserID(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Paginated(items, p)
}

func (cc *CustomerController) Subscribe(c *ctx.Context) {
	var in services.SubscriptionInput
	if !c.BindJSON(&in) {
		return
	}
	sub, err := cc.svc.Subscriptions.Subscribe(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(sub)
}

func (cc *CustomerController) CancelSubscription(c *ctx.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sub, err := cc.svc.Subscriptions.Cancel(c.Context(), c.UserID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(sub)
}

// SupplierController serves /api/supplier/* for the signed-in supplier.
type SupplierController struct {
	svc *services.Services
}

func NewSupplierController(svc *services.Services) *SupplierController {
	return &SupplierController{svc: svc}
}

func (sc *SupplierController) Profile(c *ctx.Context) {
	s, err := sc.svc.Suppliers.Profile(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(s)
}

func (sc *SupplierController) UpdateProfile(c *ctx.Context) {
	var in services.SupplierProfileInput
	if !c.BindJSON(&in) {
		return
	}
	s, err := sc.svc.Suppliers.UpdateProfile(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(s)
}

func (sc *SupplierController) KYC(c *ctx.Context) {
	view, err := sc.svc.Suppliers.KYC(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(view)
}

func (sc *SupplierController) SubmitKYC(c *ctx.Context) {
	var in services.KYCInput
	if !c.BindJSON(&in) {
		return
	}
	s, err := sc.svc.Suppliers.SubmitKYC(c.Context(), c.UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(s)
}

func (sc *SupplierController) Analytics(c *ctx.Context) {
	st, err := sc.svc.Analytics.Supplier(c.Context(), c.UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(st)
}
