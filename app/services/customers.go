package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
)

type CustomerService struct {
	db *gorm.DB
}

type ProfileInput struct {
	Name  string `json:"name"  validate:"nullable,max=120"`
	Phone string `json:"phone" validate:"nullable,phone"`
}

type AddressInput struct {
	Label     string   `json:"label"     validate:"nullable,max=40"`
	Line1     string   `json:"line1"     validate:"required,max=255"`
	Line2     string   `json:"line2"     validate:"nullable,max=255"`
	Area      string   `json:"area"      validate:"nullable,max=120"`
	City      string   `json:"city"      validate:"nullable,max=120"`
	Pincode   string   `json:"pincode"   validate:"nullable,pincode"`
	Zone      string   `json:"zone"      validate:"nullable,max=60"`
	Latitude  *float64 `json:"latitude"  validate:"nullable,between=-90|90"`
	Longitude *float64 `json:"longitude" validate:"nullable,between=-180|180"`
	IsDefault bool     `json:"isDefault"`
}

func (s *CustomerService) Profile(ctx context.Context, id uint) (*models.Customer, error) {
	return repositories.NewCustomerRepository(s.db).Find(ctx, id, repositories.Preload("Addresses"))
}

func (s *CustomerService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*models.Customer, error) {
	changes := map[string]any{}
	if in.Name != "" {
		changes["name"] = in.Name
	}
	if in.Phone != "" {
		changes["phone"] = NormalizePhone(in.Phone)
	}
	repo := repositories.NewCustomerRepository(s.db)
	if len(changes) > 0 {
		if err := repo.Update(ctx, id, changes); err != nil {
			return nil, err
		}
	}
	return s.Profile(ctx, id)
}

func (s *CustomerService) Addresses(ctx context.Context, customerID uint) ([]models.Address, error) {
	return repositories.NewRepository[models.Address](s.db).List(ctx,
		repositories.Where("customer_id = ?", customerID),
		repositories.OrderBy("is_default DESC"), repositories.OrderBy("id ASC"))
}

// AddAddress stores a new address. The first address, or one flagged
// default, becomes the only default.
func (s *CustomerService) AddAddress(ctx context.Context, customerID uint, in AddressInput) (*models.Address, error) {
	a := &models.Address{CustomerID: customerID}
	applyAddress(a, in)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Address{}).Where("customer_id = ?", customerID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := clearDefault(tx, customerID); err != nil {
				return err
			}
		}
		return tx.Create(a).Error
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *CustomerService) UpdateAddress(ctx context.Context, customerID, id uint, in AddressInput) (*models.Address, error) {
	var a models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND customer_id = ?", id, customerID).First(&a).Error; err != nil {
			return err
		}
		wasDefault := a.IsDefault
		applyAddress(&a, in)
		if a.IsDefault && !wasDefault {
			if err := clearDefault(tx, customerID); err != nil {
				return err
			}
		}
		// the only way to lose the default is to pick another one
		a.IsDefault = a.IsDefault || wasDefault
		return tx.Save(&a).Error
	})
	if err != nil {
		return nil, notFoundErr(err)
	}
	return &a, nil
}

func (s *CustomerService) DeleteAddress(ctx context.Context, customerID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND customer_id = ?", id, customerID).Delete(&models.Address{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func clearDefault(tx *gorm.DB, customerID uint) error {
	return tx.Model(&models.Address{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Update("is_default", false).Error
}

func applyAddress(a *models.Address, in AddressInput) {
	a.Label = in.Label
	a.Line1 = in.Line1
	a.Line2 = in.Line2
	a.Area = in.Area
	if in.City != "" {
		a.City = in.City
	} else if a.City == "" {
		a.City = "Bengaluru"
	}
	a.Pincode = in.Pincode
	a.Zone = in.Zone
	a.Latitude = in.Latitude
	a.Longitude = in.Longitude
	a.IsDefault = in.IsDefault
}
