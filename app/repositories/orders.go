package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/response"
)

type OrderRepository struct {
	Repository[models.Order]
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{NewRepository[models.Order](db)}
}

// Guard is the WHERE clause a conditional update must match.
type Guard struct {
	Statuses        []string
	PaymentStatuses []string
	CustomerID      uint
	SupplierID      uint
}

// Transition applies changes to order id only if the row still matches g,
// and returns the number of rows changed (0 or 1).
func (r *OrderRepository) Transition(ctx context.Context, id uint, g Guard, changes map[string]any) (int64, error) {
	q := r.DB(ctx).Model(&models.Order{}).Where("id = ?", id)
	if len(g.Statuses) > 0 {
		q = q.Where("status IN ?", g.Statuses)
	}
	if len(g.PaymentStatuses) > 0 {
		q = q.Where("payment_status IN ?", g.PaymentStatuses)
	}
	if g.CustomerID != 0 {
		q = q.Where("customer_id = ?", g.CustomerID)
	}
	if g.SupplierID != 0 {
		q = q.Where("supplier_id = ?", g.SupplierID)
	}
	res := q.Updates(changes)
	return res.RowsAffected, res.Error
}

func (r *OrderRepository) ForCustomer(ctx context.Context, customerID uint, page, perPage int) ([]models.Order, response.Pagination, error) {
	return r.Paginate(ctx, page, perPage, Where("customer_id = ?", customerID), Preload("Product"), OrderBy("id DESC"))
}

func (r *OrderRepository) ForSupplier(ctx context.Context, supplierID uint, status string, page, perPage int) ([]models.Order, response.Pagination, error) {
	scopes := []Scope{Where("supplier_id = ?", supplierID), Preload("Product"), Preload("Address"), OrderBy("id DESC")}
	if status != "" {
		scopes = append(scopes, Where("status = ?", status))
	}
	return r.Paginate(ctx, page, perPage, scopes...)
}

type OrderFilter struct {
	Status        string
	PaymentStatus string
	CustomerID    uint
	SupplierID    uint
}

func (r *OrderRepository) Search(ctx context.Context, f OrderFilter, page, perPage int) ([]models.Order, response.Pagination, error) {
	scopes := []Scope{Preload("Product"), Preload("Customer"), OrderBy("id DESC")}
	if f.Status != "" {
		scopes = append(scopes, Where("status = ?", f.Status))
	}
	if f.PaymentStatus != "" {
		scopes = append(scopes, Where("payment_status = ?", f.PaymentStatus))
	}
	if f.CustomerID != 0 {
		scopes = append(scopes, Where("customer_id = ?", f.CustomerID))
	}
	if f.SupplierID != 0 {
		scopes = append(scopes, Where("supplier_id = ?", f.SupplierID))
	}
	return r.Paginate(ctx, page, perPage, scopes...)
}

type PaymentRepository struct {
	Repository[models.Payment]
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{NewRepository[models.Payment](db)}
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	return r.FirstWhere(ctx, "idempotency_key = ?", key)
}

// Review marks the newest pending payment of an order as reviewed.
func (r *PaymentRepository) Review(ctx context.Context, orderID uint, status string, adminID uint, reason string, at time.Time) error {
	var latest models.Payment
	err := r.DB(ctx).Where("order_id = ? AND payment_status = ?", orderID, models.PaymentPending).
		Order("id DESC").First(&latest).Error
	if err != nil {
		// Orders can be approved on admin confirmation with no proof row.
		return ignoreNotFound(err)
	}
	return r.DB(ctx).Model(&latest).Updates(map[string]any{
		"payment_status":   status,
		"reviewed_by":      adminID,
		"reviewed_at":      at,
		"rejection_reason": reason,
	}).Error
}

func (r *PaymentRepository) ForOrder(ctx context.Context, orderID uint) ([]models.Payment, error) {
	return r.List(ctx, Where("order_id = ?", orderID), OrderBy("id DESC"))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
