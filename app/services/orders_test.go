package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
)

func TestCreateOrderTotals(t *testing.T) {
	f := setup(t)
	c := f.customer(t, "asha@example.com")
	p := f.product(t, "Tomato", 100)

	o, err := f.svc.Orders.Create(f.ctx, c.ID, OrderInput{ProductID: p.ID, Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 200.0, o.BaseAmount)
	assert.Equal(t, 200.0, o.TotalAmount)
	assert.Equal(t, 20.0, o.Commission)
	assert.Equal(t, models.OrderCreated, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, int64(1), f.feedCount(t, "order_created"))
}

func TestCreateOrderUsesOfferPriceAndStock(t *testing.T) {
	f := setup(t)
	c := f.customer(t, "asha@example.com")
	s := f.supplier(t, "ravi@example.com", models.SupplierApproved)
	p := f.product(t, "Rice", 60)
	f.offer(t, p.ID, s.ID, 55, 3)

	o, err := f.svc.Orders.Create(f.ctx, c.ID, OrderInput{ProductID: p.ID, SupplierID: &s.ID, Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 110.0, o.TotalAmount)

	var offer models.ProductSupplier
	require.NoError(t, f.db.Where("product_id = ? AND supplier_id = ?", p.ID, s.ID).First(&offer).Error)
	assert.Equal(t, 1, offer.Stock)

	_, err = f.svc.Orders.Create(f.ctx, c.ID, OrderInput{ProductID: p.ID, SupplierID: &s.ID, Qty: 2})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCreateOrderRejectsForeignAddress(t *testing.T) {
	f := setup(t)
	asha := f.customer(t, "asha@example.com")
	other := f.customer(t, "other@example.com")
	p := f.product(t, "Tomato", 100)
	addr, err := f.svc.Customers.AddAddress(f.ctx, other.ID, AddressInput{Line1: "1 Main Rd"})
	require.NoError(t, err)

	_, err = f.svc.Orders.Create(f.ctx, asha.ID, OrderInput{ProductID: p.ID, AddressID: &addr.ID, Qty: 1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "addressId")
}

func TestCreateOrderDistanceFee(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Config.Set(f.ctx, KeyDeliveryMode, ConfigInput{Value: DeliveryDistance})
	require.NoError(t, err)
	_, err = f.svc.Config.Set(f.ctx, KeyDistanceTiers, ConfigInput{Value: `[{"upto_km":2,"fee":20},{"upto_km":5,"fee":40}]`, Type: "json"})
	require.NoError(t, err)

	c := f.customer(t, "asha@example.com")
	s := f.supplier(t, "ravi@example.com", models.SupplierApproved)
	p := f.product(t, "Milk", 30)
	f.offer(t, p.ID, s.ID, 30, 10)
	// about 1.1 km from the supplier
	addr, err := f.svc.Customers.AddAddress(f.ctx, c.ID, AddressInput{Line1: "2 Cross", Latitude: ptr(12.9360), Longitude: ptr(77.5190)})
	require.NoError(t, err)

	q, err := f.svc.Orders.Quote(f.ctx, c.ID, OrderInput{ProductID: p.ID, SupplierID: &s.ID, AddressID: &addr.ID, Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, 20.0, q.DeliveryFee)
	assert.Equal(t, 50.0, q.TotalAmount)
	assert.InDelta(t, 1.11, q.DistanceKm, 0.01)
}

func placeOrder(t *testing.T, f *fixture) (*models.Customer, *models.Supplier, *models.Order) {
	t.Helper()
	c := f.customer(t, "asha@example.com")
	s := f.supplier(t, "ravi@example.com", models.SupplierApproved)
	p := f.product(t, "Tomato", 100)
	f.offer(t, p.ID, s.ID, 100, 10)
	o, err := f.svc.Orders.Create(f.ctx, c.ID, OrderInput{ProductID: p.ID, SupplierID: &s.ID, Qty: 2})
	require.NoError(t, err)
	return c, s, o
}

func TestApprovePaymentIsIdempotent(t *testing.T) {
	f := setup(t)
	c, _, o := placeOrder(t, f)
	admin := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)

	p, created, err := f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "412345678901"}, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 200.0, p.Amount)
	assert.Equal(t, 180.0, p.SupplierPayout)

	got, err := f.svc.Orders.ApprovePayment(f.ctx, admin.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
	assert.Equal(t, models.PaymentApproved, got.PaymentStatus)

	again, err := f.svc.Orders.ApprovePayment(f.ctx, admin.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, again.Status)
	assert.Equal(t, models.PaymentApproved, again.PaymentStatus)
	assert.Equal(t, int64(1), f.feedCount(t, "payment_approved"))

	var stored models.Payment
	require.NoError(t, f.db.First(&stored, p.ID).Error)
	assert.Equal(t, models.PaymentApproved, stored.PaymentStatus)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, admin.ID, *stored.ReviewedBy)

	assert.Len(t, f.mail.to("asha@example.com"), 1, "customer gets one confirmation")
}

func TestSubmitPaymentReplay(t *testing.T) {
	f := setup(t)
	c, _, o := placeOrder(t, f)

	first, created, err := f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "412345678901"}, "key-1")
	require.NoError(t, err)
	require.True(t, created)

	replay, created, err := f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "412345678901"}, "key-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replay.ID)

	_, _, err = f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "999999999999"}, "key-2")
	assert.ErrorIs(t, err, ErrConflict, "one proof awaits review")
	assert.Equal(t, int64(1), f.feedCount(t, "payment_submitted"))
}

func TestRejectThenResubmit(t *testing.T) {
	f := setup(t)
	c, _, o := placeOrder(t, f)
	admin := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)

	_, _, err := f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "412345678901"}, "")
	require.NoError(t, err)

	_, err = f.svc.Orders.RejectPayment(f.ctx, admin.ID, o.ID, " ")
	assert.IsType(t, &ValidationError{}, err)

	got, err := f.svc.Orders.RejectPayment(f.ctx, admin.ID, o.ID, "UNR not found")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaymentFailed, got.Status)
	assert.Equal(t, models.PaymentRejected, got.PaymentStatus)

	// approving a rejected payment without new proof
	_, err = f.svc.Orders.ApprovePayment(f.ctx, admin.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, created, err := f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "512345678901"}, "")
	require.NoError(t, err)
	assert.True(t, created)

	got, err = f.svc.Orders.ApprovePayment(f.ctx, admin.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
}

func TestInvalidTransitions(t *testing.T) {
	f := setup(t)
	c, s, o := placeOrder(t, f)
	admin := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)

	_, err := f.svc.Orders.MarkDelivered(f.ctx, s.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "delivered without paid")

	_, _, err = f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "412345678901"}, "")
	require.NoError(t, err)
	_, err = f.svc.Orders.ApprovePayment(f.ctx, admin.ID, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Orders.Cancel(f.ctx, c.ID, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancel after paid")

	_, err = f.svc.Orders.RejectPayment(f.ctx, admin.ID, o.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.svc.Orders.MarkDelivered(f.ctx, s.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, got.Status)
	assert.NotNil(t, got.DeliveredAt)
}

func TestDeliverOtherSuppliersOrderIsNotFound(t *testing.T) {
	f := setup(t)
	_, _, o := placeOrder(t, f)
	other := f.supplier(t, "other@example.com", models.SupplierApproved)

	_, err := f.svc.Orders.MarkDelivered(f.ctx, other.ID, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelReturnsStock(t *testing.T) {
	f := setup(t)
	c, s, o := placeOrder(t, f)

	stranger := f.customer(t, "stranger@example.com")
	_, err := f.svc.Orders.Cancel(f.ctx, stranger.ID, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.svc.Orders.Cancel(f.ctx, c.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)

	var offer models.ProductSupplier
	require.NoError(t, f.db.Where("supplier_id = ?", s.ID).First(&offer).Error)
	assert.Equal(t, 10, offer.Stock)

	_, _, err = f.svc.Orders.SubmitPayment(f.ctx, c.ID, o.ID, PaymentInput{UNR: "412345678901"}, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPaymentInstructions(t *testing.T) {
	f := setup(t)
	c, _, o := placeOrder(t, f)

	in, err := f.svc.Orders.PaymentInstructions(f.ctx, c.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, in.Amount)
	assert.Contains(t, in.URI, "upi://pay?")
	assert.Contains(t, in.URI, "am=200.00")
}
