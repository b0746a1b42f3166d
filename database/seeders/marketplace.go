package seeders

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/config"
)

func init() {
	Register("categories", Categories)
	Register("platform_config", PlatformConfig)
	Register("super_admin", SuperAdmin)
}

var defaultCategories = []models.Category{
	{Name: "Vegetables", Slug: "vegetables", Icon: "🥕", Description: "Fresh vegetables from local farms"},
	{Name: "Fruits", Slug: "fruits", Icon: "🍎", Description: "Seasonal fruits"},
	{Name: "Dairy", Slug: "dairy", Icon: "🥛", Description: "Milk, curd, paneer and ghee"},
	{Name: "Groceries", Slug: "groceries", Icon: "🛒", Description: "Rice, dal, flour and staples"},
	{Name: "Bakery", Slug: "bakery", Icon: "🍞", Description: "Bread, buns and cakes"},
	{Name: "Flowers", Slug: "flowers", Icon: "🌼", Description: "Pooja and decoration flowers"},
}

// Categories inserts the starter categories, skipping names already present.
func Categories(db *gorm.DB) error {
	rows := make([]models.Category, len(defaultCategories))
	copy(rows, defaultCategories)
	return db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error
}

// PlatformConfig inserts the default config rows. Existing keys keep their
// admin-edited values.
func PlatformConfig(db *gorm.DB) error {
	rows := make([]models.PlatformConfig, len(services.DefaultPlatformConfig))
	copy(rows, services.DefaultPlatformConfig)
	return db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&rows).Error
}

// SuperAdmin creates an approved super admin for ADMIN_EMAIL. Nothing
// happens when ADMIN_EMAIL is unset or the address already exists.
func SuperAdmin(db *gorm.DB) error {
	email := strings.ToLower(strings.TrimSpace(config.Get("ADMIN_EMAIL", "")))
	if email == "" {
		return nil
	}
	var existing models.Admin
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&models.Admin{
		Name:     config.Get("ADMIN_NAME", "Super Admin"),
		Email:    email,
		Role:     models.AdminRoleSuper,
		Approved: true,
	}).Error
}
