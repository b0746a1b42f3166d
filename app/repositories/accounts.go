package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
)

type CustomerRepository struct {
	Repository[models.Customer]
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{NewRepository[models.Customer](db)}
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return r.FirstWhere(ctx, "email = ?", email)
}

func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	return r.FirstWhere(ctx, "phone = ?", phone)
}

type AdminRepository struct {
	Repository[models.Admin]
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{NewRepository[models.Admin](db)}
}

func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return r.FirstWhere(ctx, "email = ?", email)
}

type SupplierRepository struct {
	Repository[models.Supplier]
}

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{NewRepository[models.Supplier](db)}
}

func (r *SupplierRepository) FindByEmail(ctx context.Context, email string) (*models.Supplier, error) {
	return r.FirstWhere(ctx, "email = ?", email)
}

// TransitionStatus moves a supplier to `to` only from one of `from`, and
// reports whether a row changed.
func (r *SupplierRepository) TransitionStatus(ctx context.Context, id uint, from []string, to string, changes map[string]any) (bool, error) {
	if changes == nil {
		changes = map[string]any{}
	}
	changes["status"] = to
	res := r.DB(ctx).Model(&models.Supplier{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(changes)
	return res.RowsAffected > 0, res.Error
}

// ShopSummary is an approved supplier with its active offer count.
type ShopSummary struct {
	models.Supplier
	ActiveOffers int64 `json:"activeOffers"`
}

func (r *SupplierRepository) Shops(ctx context.Context, area string) ([]ShopSummary, error) {
	var out []ShopSummary
	q := r.DB(ctx).Model(&models.Supplier{}).
		Select("suppliers.*, COUNT(product_suppliers.id) AS active_offers").
		Joins("LEFT JOIN product_suppliers ON product_suppliers.supplier_id = suppliers.id AND product_suppliers.is_active = ?", true).
		Where("suppliers.status = ?", models.SupplierApproved).
		Group("suppliers.id").
		Order("suppliers.id ASC")
	if area != "" {
		q = q.Where("suppliers.area = ?", area)
	}
	err := q.Scan(&out).Error
	return out, err
}

// PurgeExpiredCodes clears one-time codes past their expiry on customers
// and admins, returning the number of rows touched.
func PurgeExpiredCodes(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var total int64
	reset := map[string]any{"otp_code": "", "otp_expires_at": nil, "otp_attempts": 0}
	for _, m := range []any{&models.Customer{}, &models.Admin{}} {
		res := db.WithContext(ctx).Model(m).
			Where("otp_expires_at IS NOT NULL AND otp_expires_at < ?", now).
			Updates(reset)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}
