package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/collection"
)

type AnalyticsService struct {
	db *gorm.DB
}

// Overview is the admin dashboard.
type Overview struct {
	Customers        int64            `json:"customers"`
	Suppliers        int64            `json:"suppliers"`
	Products         int64            `json:"products"`
	Orders           int64            `json:"orders"`
	OrdersByStatus   map[string]int64 `json:"ordersByStatus"`
	PendingPayments  int64            `json:"pendingPayments"`
	Revenue          float64          `json:"revenue"`
	CommissionEarned float64          `json:"commissionEarned"`
	PendingSuppliers int64            `json:"pendingSuppliers"`
}

// settled orders count towards revenue.
var settled = []string{models.OrderPaid, models.OrderDelivered}

func overview(ctx context.Context, db *gorm.DB) (*Overview, error) {
	db = db.WithContext(ctx)
	o := &Overview{OrdersByStatus: map[string]int64{}}

	counts := []struct {
		model any
		dest  *int64
		where []any
	}{
		{&models.Customer{}, &o.Customers, nil},
		{&models.Supplier{}, &o.Suppliers, nil},
		{&models.Product{}, &o.Products, nil},
		{&models.Order{}, &o.Orders, nil},
		{&models.Order{}, &o.PendingPayments, []any{"payment_status = ? AND status IN ?", models.PaymentPending, []string{models.OrderCreated, models.OrderPaymentFailed}}},
		{&models.Supplier{}, &o.PendingSuppliers, []any{"status IN ?", reviewable}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	var byStatus []struct {
		Status string
		N      int64
	}
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, r := range byStatus {
		o.OrdersByStatus[r.Status] = r.N
	}

	var money struct {
		Revenue    float64
		Commission float64
	}
	err := db.Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS revenue, COALESCE(SUM(commission), 0) AS commission").
		Where("payment_status = ? AND status IN ?", models.PaymentApproved, settled).
		Scan(&money).Error
	if err != nil {
		return nil, err
	}
	o.Revenue = round2(money.Revenue)
	o.CommissionEarned = round2(money.Commission)
	return o, nil
}

func (s *AnalyticsService) Overview(ctx context.Context) (*Overview, error) {
	return overview(ctx, s.db)
}

type DailySales struct {
	Date    string  `json:"date"`
	Orders  int64   `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// Sales returns one row per day for the last days days, oldest first,
// counting paid and delivered orders. Days without sales are zero rows.
func (s *AnalyticsService) Sales(ctx context.Context, days int, now time.Time) ([]DailySales, error) {
	if days < 1 {
		days = 7
	}
	if days > 366 {
		days = 366
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, -(days - 1))

	// Bucketing happens here; DATE() differs between the supported drivers.
	type row struct {
		CreatedAt   time.Time
		TotalAmount float64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("created_at, total_amount").
		Where("status IN ? AND created_at >= ?", settled, from).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDay := collection.GroupBy(rows, func(r row) string {
		return r.CreatedAt.In(now.Location()).Format("2006-01-02")
	})
	out := make([]DailySales, days)
	for i := range out {
		d := from.AddDate(0, 0, i).Format("2006-01-02")
		bucket := byDay[d]
		out[i] = DailySales{
			Date:    d,
			Orders:  int64(len(bucket)),
			Revenue: round2(collection.Sum(bucket, func(r row) float64 { return r.TotalAmount })),
		}
	}
	return out, nil
}

type TopProduct struct {
	ProductID uint    `json:"productId"`
	Name      string  `json:"name"`
	Qty       int64   `json:"qty"`
	Orders    int64   `json:"orders"`
	Revenue   float64 `json:"revenue"`
}

// TopProducts ranks products by revenue from paid and delivered orders.
func (s *AnalyticsService) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	var out []TopProduct
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("orders.product_id AS product_id, products.name AS name, SUM(orders.qty) AS qty, COUNT(*) AS orders, SUM(orders.total_amount) AS revenue").
		Joins("JOIN products ON products.id = orders.product_id").
		Where("orders.status IN ?", settled).
		Group("orders.product_id, products.name").
		Order("revenue DESC").
		Limit(limit).
		Scan(&out).Error
	if out == nil {
		out = []TopProduct{}
	}
	for i := range out {
		out[i].Revenue = round2(out[i].Revenue)
	}
	return out, err
}

// SupplierStats is a supplier's view of its own business.
type SupplierStats struct {
	Orders           int64   `json:"orders"`
	Delivered        int64   `json:"delivered"`
	AwaitingDelivery int64   `json:"awaitingDelivery"`
	Sales            float64 `json:"sales"`
	Payout           float64 `json:"payout"`
	ActiveOffers     int64   `json:"activeOffers"`
	OutOfStock       int64   `json:"outOfStock"`
}

func (s *AnalyticsService) Supplier(ctx context.Context, supplierID uint) (*SupplierStats, error) {
	db := s.db.WithContext(ctx)
	st := &SupplierStats{}
	orders := func() *gorm.DB { return db.Model(&models.Order{}).Where("supplier_id = ?", supplierID) }

	if err := orders().Count(&st.Orders).Error; err != nil {
		return nil, err
	}
	if err := orders().Where("status = ?", models.OrderDelivered).Count(&st.Delivered).Error; err != nil {
		return nil, err
	}
	if err := orders().Where("status = ?", models.OrderPaid).Count(&st.AwaitingDelivery).Error; err != nil {
		return nil, err
	}
	var money struct {
		Sales  float64
		Payout float64
	}
	if err := orders().
		Select("COALESCE(SUM(base_amount), 0) AS sales, COALESCE(SUM(base_amount - commission), 0) AS payout").
		Where("status IN ?", settled).
		Scan(&money).Error; err != nil {
		return nil, err
	}
	st.Sales = round2(money.Sales)
	st.Payout = round2(money.Payout)

	offers := func() *gorm.DB {
		return db.Model(&models.ProductSupplier{}).Where("supplier_id = ? AND is_active = ?", supplierID, true)
	}
	if err := offers().Count(&st.ActiveOffers).Error; err != nil {
		return nil, err
	}
	if err := offers().Where("stock <= 0").Count(&st.OutOfStock).Error; err != nil {
		return nil, err
	}
	return st, nil
}
