package services

import (
	"context"
	"fmt"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/mail"
	"github.com/rrnagar/marketplace/pkg/notification"
)

// Domain events fired after commit.
const (
	EventOrderCreated         = "order.created"
	EventOrderCancelled       = "order.cancelled"
	EventOrderDelivered       = "order.delivered"
	EventPaymentSubmitted     = "payment.submitted"
	EventPaymentApproved      = "order.payment_approved"
	EventPaymentRejected      = "order.payment_rejected"
	EventSupplierRegistered   = "supplier.registered"
	EventSupplierKYCSubmitted = "supplier.kyc_submitted"
	EventSupplierApproved     = "supplier.approved"
	EventSupplierRejected     = "supplier.rejected"
)

type OrderEvent struct {
	Order  models.Order
	Reason string
}

type PaymentEvent struct {
	Payment models.Payment
	Order   models.Order
}

type SupplierEvent struct {
	Supplier models.Supplier
	Reason   string
}

// message is a notification assembled by a listener. Via is derived from
// which routes it can use.
type message struct {
	typ, title, body string
	data             map[string]any
	feed             bool
	route            notification.Route
}

func (m message) Via() []string {
	var via []string
	if m.feed {
		via = append(via, "database")
	}
	switch {
	case m.route.Email != "":
		via = append(via, "mail")
	case m.route.Phone != "":
		via = append(via, "sms")
	}
	return via
}

func (m message) ToDatabase() notification.DatabaseData {
	return notification.DatabaseData{Type: m.typ, Title: m.title, Message: m.body, Data: m.data}
}

const mailLayout = `<p>{{.Body}}</p><p style="color:#666">RR Nagar Market</p>`

func (m message) ToMail() notification.MailData {
	html, err := mail.Render(mailLayout, map[string]string{"Body": m.body})
	if err != nil {
		html = ""
	}
	return notification.MailData{Subject: m.title, HTML: html, Text: m.body}
}

func (m message) ToSMS() notification.SMSData {
	return notification.SMSData{Message: m.title + ": " + m.body}
}

// send delivers m. Failures are logged by the dispatcher and never surface.
func (s *Services) send(ctx context.Context, m message) {
	if len(m.Via()) == 0 {
		return
	}
	_ = s.notify.Send(ctx, m.route, m)
}

// feedOnly addresses every admin through the feed.
func feedOnly(typ, title, body string, data map[string]any) message {
	return message{typ: typ, title: title, body: body, data: data, feed: true}
}

// toCustomer routes a message to the order's customer only.
func (s *Services) toCustomer(ctx context.Context, customerID uint, m message) message {
	c, err := repositories.NewCustomerRepository(s.db).Find(ctx, customerID)
	if err != nil {
		logger.WithCtx(ctx).Warn("notify: customer lookup failed", "customer_id", customerID, "error", err)
		return m
	}
	if c.Email != nil {
		m.route.Email = *c.Email
	}
	m.route.Phone = c.Phone
	return m
}

func (s *Services) registerListeners() {
	s.bus.Listen(EventOrderCreated, func(ctx context.Context, p any) error {
		e := p.(OrderEvent)
		s.send(ctx, feedOnly("order_created", "New order",
			fmt.Sprintf("Order #%d placed for ₹%.2f.", e.Order.ID, e.Order.TotalAmount),
			map[string]any{"orderId": e.Order.ID}))
		return nil
	})

	s.bus.Listen(EventPaymentSubmitted, func(ctx context.Context, p any) error {
		e := p.(PaymentEvent)
		s.send(ctx, feedOnly("payment_submitted", "Payment proof submitted",
			fmt.Sprintf("Order #%d: ₹%.2f via UPI, UNR %s. Awaiting review.", e.Order.ID, e.Payment.Amount, e.Payment.UNR),
			map[string]any{"orderId": e.Order.ID, "paymentId": e.Payment.ID}))
		return nil
	})

	s.bus.Listen(EventPaymentApproved, func(ctx context.Context, p any) error {
		e := p.(OrderEvent)
		data := map[string]any{"orderId": e.Order.ID}
		s.send(ctx, feedOnly("payment_approved", "Payment approved",
			fmt.Sprintf("Payment for order #%d approved.", e.Order.ID), data))
		s.send(ctx, s.toCustomer(ctx, e.Order.CustomerID, message{
			title: fmt.Sprintf("Order #%d confirmed", e.Order.ID),
			body:  fmt.Sprintf("We received your payment of ₹%.2f. Your order is confirmed.", e.Order.TotalAmount),
		}))
		return nil
	})

	s.bus.Listen(EventPaymentRejected, func(ctx context.Context, p any) error {
		e := p.(OrderEvent)
		data := map[string]any{"orderId": e.Order.ID, "reason": e.Reason}
		s.send(ctx, feedOnly("payment_rejected", "Payment rejected",
			fmt.Sprintf("Payment for order #%d rejected: %s", e.Order.ID, e.Reason), data))
		s.send(ctx, s.toCustomer(ctx, e.Order.CustomerID, message{
			title: fmt.Sprintf("Payment for order #%d not verified", e.Order.ID),
			body:  "We could not verify your payment (" + e.Reason + "). Please submit the proof again.",
		}))
		return nil
	})

	s.bus.Listen(EventOrderDelivered, func(ctx context.Context, p any) error {
		e := p.(OrderEvent)
		s.send(ctx, feedOnly("order_delivered", "Order delivered",
			fmt.Sprintf("Order #%d was delivered.", e.Order.ID), map[string]any{"orderId": e.Order.ID}))
		s.send(ctx, s.toCustomer(ctx, e.Order.CustomerID, message{
			title: fmt.Sprintf("Order #%d delivered", e.Order.ID),
			body:  "Your order has been delivered. Thank you for shopping local.",
		}))
		return nil
	})

	s.bus.Listen(EventOrderCancelled, func(ctx context.Context, p any) error {
		e := p.(OrderEvent)
		s.send(ctx, feedOnly("order_cancelled", "Order cancelled",
			fmt.Sprintf("Order #%d was cancelled by the customer.", e.Order.ID), map[string]any{"orderId": e.Order.ID}))
		return nil
	})

	s.bus.Listen(EventSupplierRegistered, func(ctx context.Context, p any) error {
		e := p.(SupplierEvent)
		s.send(ctx, feedOnly("supplier_registered", "New supplier",
			fmt.Sprintf("%s (%s) registered.", e.Supplier.BusinessName, e.Supplier.Email),
			map[string]any{"supplierId": e.Supplier.ID}))
		return nil
	})

	s.bus.Listen(EventSupplierKYCSubmitted, func(ctx context.Context, p any) error {
		e := p.(SupplierEvent)
		s.send(ctx, feedOnly("supplier_kyc_submitted", "KYC submitted",
			fmt.Sprintf("%s submitted KYC documents for review.", e.Supplier.BusinessName),
			map[string]any{"supplierId": e.Supplier.ID}))
		return nil
	})

	s.bus.Listen(EventSupplierApproved, func(ctx context.Context, p any) error {
		e := p.(SupplierEvent)
		m := feedOnly("supplier_approved", "Supplier approved",
			fmt.Sprintf("%s is approved and can now list products.", e.Supplier.BusinessName),
			map[string]any{"supplierId": e.Supplier.ID})
		m.route.Email = e.Supplier.Email
		s.send(ctx, m)
		return nil
	})

	s.bus.Listen(EventSupplierRejected, func(ctx context.Context, p any) error {
		e := p.(SupplierEvent)
		m := feedOnly("supplier_rejected", "Supplier rejected",
			fmt.Sprintf("%s was not approved: %s", e.Supplier.BusinessName, e.Reason),
			map[string]any{"supplierId": e.Supplier.ID, "reason": e.Reason})
		m.route.Email = e.Supplier.Email
		s.send(ctx, m)
		return nil
	})
}
