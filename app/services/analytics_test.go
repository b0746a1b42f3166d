package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
)

func paidOrder(t *testing.T, f *fixture, customerID, supplierID, productID uint, qty int) *models.Order {
	t.Helper()
	o, err := f.svc.Orders.Create(f.ctx, customerID, OrderInput{ProductID: productID, SupplierID: &supplierID, Qty: qty})
	require.NoError(t, err)
	_, _, err = f.svc.Orders.SubmitPayment(f.ctx, customerID, o.ID, PaymentInput{UNR: fmt.Sprintf("UNR%09d", o.ID)}, "")
	require.NoError(t, err)
	o, err = f.svc.Orders.ApprovePayment(f.ctx, 1, o.ID)
	require.NoError(t, err)
	return o
}

func TestDashboardOverview(t *testing.T) {
	f := setup(t)
	c, s, first := placeOrder(t, f)
	f.supplier(t, "kyc@example.com", models.SupplierKYCSubmitted)
	paidOrder(t, f, c.ID, s.ID, *first.ProductID, 1)

	o, err := f.svc.Admins.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.Customers)
	assert.Equal(t, int64(2), o.Suppliers)
	assert.Equal(t, int64(2), o.Orders)
	assert.Equal(t, int64(1), o.OrdersByStatus[models.OrderCreated])
	assert.Equal(t, int64(1), o.OrdersByStatus[models.OrderPaid])
	assert.Equal(t, int64(1), o.PendingPayments)
	assert.Equal(t, 100.0, o.Revenue)
	assert.Equal(t, 10.0, o.CommissionEarned)
	assert.Equal(t, int64(1), o.PendingSuppliers)
}

func TestSalesAndTopProducts(t *testing.T) {
	f := setup(t)
	c, s, first := placeOrder(t, f)
	paidOrder(t, f, c.ID, s.ID, *first.ProductID, 3)
	dal := f.product(t, "Dal", 150)
	f.offer(t, dal.ID, s.ID, 150, 10)
	paidOrder(t, f, c.ID, s.ID, dal.ID, 1)

	days, err := f.svc.Analytics.Sales(f.ctx, 7, time.Now())
	require.NoError(t, err)
	require.Len(t, days, 7)
	today := days[6]
	assert.Equal(t, time.Now().Format("2006-01-02"), today.Date)
	assert.Equal(t, int64(2), today.Orders)
	assert.Equal(t, 450.0, today.Revenue)
	assert.Zero(t, days[0].Orders)

	top, err := f.svc.Analytics.TopProducts(f.ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Tomato", top[0].Name)
	assert.Equal(t, int64(3), top[0].Qty)
	assert.Equal(t, 300.0, top[0].Revenue)
}

func TestSupplierStats(t *testing.T) {
	f := setup(t)
	c, s, first := placeOrder(t, f)
	o := paidOrder(t, f, c.ID, s.ID, *first.ProductID, 1)
	_, err := f.svc.Orders.MarkDelivered(f.ctx, s.ID, o.ID)
	require.NoError(t, err)

	st, err := f.svc.Analytics.Supplier(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Orders)
	assert.Equal(t, int64(1), st.Delivered)
	assert.Zero(t, st.AwaitingDelivery)
	assert.Equal(t, 100.0, st.Sales)
	assert.Equal(t, 90.0, st.Payout)
	assert.Equal(t, int64(1), st.ActiveOffers)
}

func TestAdminCreateNeedsSuperAdmin(t *testing.T) {
	f := setup(t)
	super := f.admin(t, "root@example.com", models.AdminRoleSuper, true)
	plain := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)

	_, err := f.svc.Admins.Create(f.ctx, plain.ID, AdminInput{Name: "New", Email: "new@example.com"})
	assert.ErrorIs(t, err, ErrForbidden)

	a, err := f.svc.Admins.Create(f.ctx, super.ID, AdminInput{Name: "New", Email: "New@Example.com"})
	require.NoError(t, err)
	assert.False(t, a.Approved)
	assert.Equal(t, models.AdminRoleAdmin, a.Role)

	_, err = f.svc.Admins.Create(f.ctx, super.ID, AdminInput{Name: "Dup", Email: "new@example.com"})
	assert.IsType(t, &ValidationError{}, err)

	_, err = f.svc.Admins.Approve(f.ctx, plain.ID, a.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	a, err = f.svc.Admins.Approve(f.ctx, super.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, a.Approved)
}
