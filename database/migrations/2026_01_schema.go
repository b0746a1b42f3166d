package migrations

import (
	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/migration"
	"github.com/rrnagar/marketplace/pkg/queue"
)

func init() {
	migration.Register("2026_01_01_000001_create_accounts", tables(
		&models.Customer{}, &models.Address{}, &models.Supplier{}, &models.Admin{},
	))
	migration.Register("2026_01_01_000002_create_catalog", tables(
		&models.Category{}, &models.Product{}, &models.ProductSupplier{},
	))
	migration.Register("2026_01_01_000003_create_orders", tables(
		&models.Order{}, &models.Payment{},
	))
	migration.Register("2026_01_01_000004_create_platform", tables(
		&models.Notification{}, &models.PlatformConfig{},
	))
	migration.Register("2026_01_01_000005_create_content", tables(
		&models.Review{}, &models.Subscription{}, &models.Blog{}, &models.Ad{},
	))
	migration.Register("2026_01_01_000006_create_failed_jobs", tables(
		&queue.FailedJob{},
	))
}
