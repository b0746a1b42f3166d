package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/event"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/metrics"
	"github.com/rrnagar/marketplace/pkg/response"
)

// OrderService places orders and moves them through their status and
// payment status. Every transition is a conditional UPDATE inside a
// transaction; events fire after commit.
type OrderService struct {
	db     *gorm.DB
	bus    *event.Bus
	config *ConfigService
}

type OrderInput struct {
	ProductID  uint   `json:"productId"  validate:"required"`
	SupplierID *uint  `json:"supplierId"`
	AddressID  *uint  `json:"addressId"`
	Qty        int    `json:"qty"        validate:"required,min=1,max=1000"`
	Notes      string `json:"notes"      validate:"nullable,max=1000"`
}

// OrderQuote is the price of an OrderInput before it is placed.
type OrderQuote struct {
	FeeBreakdown
	ProductID  uint    `json:"productId"`
	SupplierID *uint   `json:"supplierId,omitempty"`
	Qty        int     `json:"qty"`
	UnitPrice  float64 `json:"unitPrice"`
}

// price resolves the unit price, distance and fees of in on db. cfg is
// read before any transaction is opened.
func (s *OrderService) price(ctx context.Context, db *gorm.DB, customerID uint, in OrderInput, cfg FeeConfig) (*OrderQuote, error) {
	if in.Qty < 1 {
		return nil, invalid("qty", "The qty must be at least 1.")
	}
	product, err := repositories.NewProductRepository(db).Find(ctx, in.ProductID)
	if errors.Is(err, ErrNotFound) {
		return nil, invalid("productId", "The selected product is invalid.")
	}
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductActive {
		return nil, invalid("productId", "The product is not available.")
	}

	unit := product.Price
	var supplier *models.Supplier
	if in.SupplierID != nil {
		offer, err := repositories.NewOfferRepository(db).Get(ctx, product.ID, *in.SupplierID)
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("supplierId", "The supplier does not offer this product.")
		}
		if err != nil {
			return nil, err
		}
		supplier, err = repositories.NewSupplierRepository(db).Find(ctx, *in.SupplierID)
		if err != nil {
			return nil, err
		}
		if !offer.IsActive || supplier.Status != models.SupplierApproved {
			return nil, invalid("supplierId", "The supplier does not offer this product.")
		}
		if offer.Stock < in.Qty {
			return nil, fmt.Errorf("%w: %d available", ErrInsufficientStock, offer.Stock)
		}
		unit = offer.Price
	}

	var address *models.Address
	if in.AddressID != nil {
		var a models.Address
		err := db.WithContext(ctx).Where("id = ? AND customer_id = ?", *in.AddressID, customerID).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("addressId", "The selected address is invalid.")
		}
		if err != nil {
			return nil, err
		}
		address = &a
	}

	fee := FeeInput{BaseAmount: unit * float64(in.Qty), WeightKg: product.WeightKg * float64(in.Qty)}
	if address != nil {
		fee.Zone = address.Zone
		if supplier != nil {
			fee.DistanceKm = distanceBetween(supplier.Latitude, supplier.Longitude, address.Latitude, address.Longitude)
		}
	}
	return &OrderQuote{
		FeeBreakdown: Quote(cfg, fee),
		ProductID:    product.ID,
		SupplierID:   in.SupplierID,
		Qty:          in.Qty,
		UnitPrice:    round2(unit),
	}, nil
}

// Quote prices in without placing it.
func (s *OrderService) Quote(ctx context.Context, customerID uint, in OrderInput) (*OrderQuote, error) {
	return s.price(ctx, s.db.WithContext(ctx), customerID, in, s.config.FeeConfig(ctx))
}

// Create places an order. Stock on the chosen supplier offer is taken in
// the same transaction.
func (s *OrderService) Create(ctx context.Context, customerID uint, in OrderInput) (*models.Order, error) {
	cfg := s.config.FeeConfig(ctx)

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.price(ctx, tx, customerID, in, cfg)
		if err != nil {
			return err
		}
		if in.SupplierID != nil {
			ok, err := repositories.NewOfferRepository(tx).TakeStock(ctx, in.ProductID, *in.SupplierID, in.Qty)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInsufficientStock
			}
		}
		productID := q.ProductID
		order = models.Order{
			CustomerID:    customerID,
			ProductID:     &productID,
			SupplierID:    in.SupplierID,
			AddressID:     in.AddressID,
			Qty:           in.Qty,
			UnitPrice:     q.UnitPrice,
			BaseAmount:    q.BaseAmount,
			DeliveryFee:   q.DeliveryFee,
			Commission:    q.Commission,
			TotalAmount:   q.TotalAmount,
			Notes:         strings.TrimSpace(in.Notes),
			Status:        models.OrderCreated,
			PaymentStatus: models.PaymentPending,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	logger.WithCtx(ctx).Info("order created", "order_id", order.ID, "customer_id", customerID, "total", order.TotalAmount)
	s.bus.Fire(ctx, EventOrderCreated, OrderEvent{Order: order})
	return &order, nil
}

// OrderDetail is an order with its payment attempts, newest first.
type OrderDetail struct {
	*models.Order
	Payments []models.Payment `json:"payments"`
}

func (s *OrderService) detail(ctx context.Context, scopes ...repositories.Scope) (*OrderDetail, error) {
	scopes = append(scopes, repositories.Preload("Product"), repositories.Preload("Address"))
	var o models.Order
	if err := s.db.WithContext(ctx).Scopes(scopes...).First(&o).Error; err != nil {
		return nil, notFoundErr(err)
	}
	payments, err := repositories.NewPaymentRepository(s.db).ForOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &OrderDetail{Order: &o, Payments: payments}, nil
}

func (s *OrderService) CustomerOrders(ctx context.Context, customerID uint, page, perPage int) ([]models.Order, response.Pagination, error) {
	return repositories.NewOrderRepository(s.db).ForCustomer(ctx, customerID, page, perPage)
}

func (s *OrderService) CustomerOrder(ctx context.Context, customerID, id uint) (*OrderDetail, error) {
	return s.detail(ctx, repositories.Where("id = ? AND customer_id = ?", id, customerID))
}

func (s *OrderService) SupplierOrders(ctx context.Context, supplierID uint, status string, page, perPage int) ([]models.Order, response.Pagination, error) {
	return repositories.NewOrderRepository(s.db).ForSupplier(ctx, supplierID, status, page, perPage)
}

func (s *OrderService) Search(ctx context.Context, f repositories.OrderFilter, page, perPage int) ([]models.Order, response.Pagination, error) {
	return repositories.NewOrderRepository(s.db).Search(ctx, f, page, perPage)
}

func (s *OrderService) Order(ctx context.Context, id uint) (*OrderDetail, error) {
	return s.detail(ctx, repositories.Where("id = ?", id), repositories.Preload("Customer"))
}

// Cancel lets a customer cancel their own order before it is paid.
func (s *OrderService) Cancel(ctx context.Context, customerID, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND customer_id = ?", id, customerID).First(&order).Error; err != nil {
			return notFoundErr(err)
		}
		if !CanTransitionStatus(order.Status, models.OrderCancelled) {
			return transitionError("status", order.Status, models.OrderCancelled)
		}
		n, err := repositories.NewOrderRepository(tx).Transition(ctx, id,
			repositories.Guard{Statuses: statusSources(models.OrderCancelled), CustomerID: customerID},
			map[string]any{"status": models.OrderCancelled, "cancelled_at": time.Now()})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInvalidTransition
		}
		if order.ProductID != nil && order.SupplierID != nil {
			if err := repositories.NewOfferRepository(tx).ReturnStock(ctx, *order.ProductID, *order.SupplierID, order.Qty); err != nil {
				return err
			}
		}
		return tx.First(&order, id).Error
	})
	if err != nil {
		return nil, err
	}
	s.bus.Fire(ctx, EventOrderCancelled, OrderEvent{Order: order})
	return &order, nil
}

type PaymentInput struct {
	UNR           string         `json:"unr"           validate:"required,min=6,max=64"`
	Method        string         `json:"method"        validate:"nullable,in=upi|bank_transfer"`
	UPIID         string         `json:"upiId"         validate:"nullable,max=120"`
	PayerName     string         `json:"payerName"     validate:"nullable,max=120"`
	ScreenshotURL string         `json:"screenshotUrl" validate:"nullable,max=500"`
	Meta          map[string]any `json:"meta"`
}

// PaymentKey is the idempotency key used when the client sends none.
func PaymentKey(orderID uint, unr string) string {
	return fmt.Sprintf("order:%d:unr:%s", orderID, strings.ToUpper(strings.TrimSpace(unr)))
}

// SubmitPayment records payment proof for the customer's order. A replay
// with the same idempotency key returns the stored payment and created is
// false. Proof after a rejection moves payment_status back to pending.
func (s *OrderService) SubmitPayment(ctx context.Context, customerID, orderID uint, in PaymentInput, key string) (p *models.Payment, created bool, err error) {
	if key = strings.TrimSpace(key); key == "" {
		key = PaymentKey(orderID, in.UNR)
	}
	payments := repositories.NewPaymentRepository(s.db)
	if existing, err := s.replay(ctx, payments, key, customerID, orderID); existing != nil || err != nil {
		return existing, false, err
	}

	var meta datatypes.JSON
	if len(in.Meta) > 0 {
		raw, err := json.Marshal(in.Meta)
		if err != nil {
			return nil, false, invalid("meta", "The meta must be an object.")
		}
		meta = datatypes.JSON(raw)
	}
	method := in.Method
	if method == "" {
		method = "upi"
	}

	var order models.Order
	payment := models.Payment{
		OrderID:        orderID,
		CustomerID:     customerID,
		PaymentStatus:  models.PaymentPending,
		Method:         method,
		UNR:            strings.ToUpper(strings.TrimSpace(in.UNR)),
		UPIID:          in.UPIID,
		PayerName:      in.PayerName,
		ScreenshotURL:  in.ScreenshotURL,
		Meta:           meta,
		IdempotencyKey: key,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND customer_id = ?", orderID, customerID).First(&order).Error; err != nil {
			return notFoundErr(err)
		}
		if order.Status != models.OrderCreated && order.Status != models.OrderPaymentFailed {
			return transitionError("status", order.Status, models.OrderPaid)
		}
		switch order.PaymentStatus {
		case models.PaymentPending:
			var waiting int64
			if err := tx.Model(&models.Payment{}).
				Where("order_id = ? AND payment_status = ?", orderID, models.PaymentPending).
				Count(&waiting).Error; err != nil {
				return err
			}
			if waiting > 0 {
				return fmt.Errorf("%w: a payment for this order is already awaiting review", ErrConflict)
			}
		case models.PaymentRejected:
			n, err := repositories.NewOrderRepository(tx).Transition(ctx, orderID,
				repositories.Guard{
					Statuses:        []string{models.OrderCreated, models.OrderPaymentFailed},
					PaymentStatuses: paymentSources(models.PaymentPending),
					CustomerID:      customerID,
				},
				map[string]any{"payment_status": models.PaymentPending})
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrInvalidTransition
			}
			order.PaymentStatus = models.PaymentPending
		default:
			return transitionError("payment_status", order.PaymentStatus, models.PaymentPending)
		}

		payment.Amount = order.TotalAmount
		payment.BaseAmount = order.BaseAmount
		payment.DeliveryFee = order.DeliveryFee
		payment.Commission = order.Commission
		payment.SupplierPayout = round2(order.BaseAmount - order.Commission)
		return tx.Create(&payment).Error
	})
	if err != nil {
		// a concurrent request with the same key won the insert
		if isDuplicate(err) {
			if existing, rerr := s.replay(ctx, payments, key, customerID, orderID); existing != nil || rerr != nil {
				return existing, false, rerr
			}
		}
		return nil, false, err
	}

	s.bus.Fire(ctx, EventPaymentSubmitted, PaymentEvent{Payment: payment, Order: order})
	return &payment, true, nil
}

// replay returns the payment stored under key, or nil when there is none.
// A key reused for another order is a conflict.
func (s *OrderService) replay(ctx context.Context, repo *repositories.PaymentRepository, key string, customerID, orderID uint) (*models.Payment, error) {
	existing, err := repo.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.OrderID != orderID || existing.CustomerID != customerID {
		return nil, fmt.Errorf("%w: idempotency key already used", ErrConflict)
	}
	return existing, nil
}

// UPIInstructions tells the customer where to pay for an order.
type UPIInstructions struct {
	OrderID   uint    `json:"orderId"`
	Amount    float64 `json:"amount"`
	UPIID     string  `json:"upiId"`
	PayeeName string  `json:"payeeName"`
	URI       string  `json:"uri"`
}

func (s *OrderService) PaymentInstructions(ctx context.Context, customerID, orderID uint) (*UPIInstructions, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ? AND customer_id = ?", orderID, customerID).First(&order).Error; err != nil {
		return nil, notFoundErr(err)
	}
	in := &UPIInstructions{
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		UPIID:     s.config.String(ctx, KeyUPIID, ""),
		PayeeName: s.config.String(ctx, KeyUPIPayee, "RR Nagar Market"),
	}
	q := url.Values{}
	q.Set("pa", in.UPIID)
	q.Set("pn", in.PayeeName)
	q.Set("am", fmt.Sprintf("%.2f", in.Amount))
	q.Set("cu", "INR")
	q.Set("tn", fmt.Sprintf("Order %d", order.ID))
	in.URI = "upi://pay?" + q.Encode()
	return in, nil
}

// PendingPayments lists payments awaiting review, oldest first.
func (s *OrderService) PendingPayments(ctx context.Context, page, perPage int) ([]models.Payment, response.Pagination, error) {
	return repositories.NewPaymentRepository(s.db).Paginate(ctx, page, perPage,
		repositories.Where("payment_status = ?", models.PaymentPending),
		repositories.Preload("Order"), repositories.OrderBy("id ASC"))
}

// review moves an order's payment to result. A repeated decision is a
// no-op that fires nothing.
func (s *OrderService) review(ctx context.Context, adminID, orderID uint, result, reason string) (*models.Order, error) {
	guard := repositories.Guard{PaymentStatuses: paymentSources(result)}
	changes := map[string]any{"payment_status": result}
	eventName := EventPaymentApproved
	if result == models.PaymentApproved {
		guard.Statuses = statusSources(models.OrderPaid)
		changes["status"] = models.OrderPaid
	} else {
		guard.Statuses = []string{models.OrderCreated, models.OrderPaymentFailed}
		changes["status"] = models.OrderPaymentFailed
		eventName = EventPaymentRejected
	}

	var order models.Order
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repositories.NewOrderRepository(tx).Transition(ctx, orderID, guard, changes)
		if err != nil {
			return err
		}
		if n > 0 {
			changed = true
			if err := repositories.NewPaymentRepository(tx).Review(ctx, orderID, result, adminID, reason, time.Now()); err != nil {
				return err
			}
		}
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFoundErr(err)
		}
		if !changed && !alreadyReviewed(order, result) {
			return transitionError("payment_status", order.PaymentStatus, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		metrics.PaymentsReviewed.WithLabelValues("noop").Inc()
		return &order, nil
	}
	metrics.PaymentsReviewed.WithLabelValues(result).Inc()
	logger.WithCtx(ctx).Info("payment reviewed", "order_id", orderID, "result", result, "admin_id", adminID)
	s.bus.Fire(ctx, eventName, OrderEvent{Order: order, Reason: reason})
	return &order, nil
}

func alreadyReviewed(o models.Order, result string) bool {
	if o.PaymentStatus != result {
		return false
	}
	if result == models.PaymentApproved {
		return o.Status == models.OrderPaid || o.Status == models.OrderDelivered
	}
	return o.Status == models.OrderPaymentFailed
}

// ApprovePayment marks the order paid and its payment approved.
func (s *OrderService) ApprovePayment(ctx context.Context, adminID, orderID uint) (*models.Order, error) {
	return s.review(ctx, adminID, orderID, models.PaymentApproved, "")
}

// RejectPayment marks the order payment_failed with reason.
func (s *OrderService) RejectPayment(ctx context.Context, adminID, orderID uint, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "The reason field is required.")
	}
	return s.review(ctx, adminID, orderID, models.PaymentRejected, reason)
}

// MarkDelivered is the supplier confirming delivery of a paid order.
func (s *OrderService) MarkDelivered(ctx context.Context, supplierID, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND supplier_id = ?", orderID, supplierID).First(&order).Error; err != nil {
			return notFoundErr(err)
		}
		if !CanTransitionStatus(order.Status, models.OrderDelivered) {
			return transitionError("status", order.Status, models.OrderDelivered)
		}
		n, err := repositories.NewOrderRepository(tx).Transition(ctx, orderID,
			repositories.Guard{Statuses: statusSources(models.OrderDelivered), SupplierID: supplierID},
			map[string]any{"status": models.OrderDelivered, "delivered_at": time.Now()})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInvalidTransition
		}
		return tx.First(&order, orderID).Error
	})
	if err != nil {
		return nil, err
	}
	s.bus.Fire(ctx, EventOrderDelivered, OrderEvent{Order: order})
	return &order, nil
}
