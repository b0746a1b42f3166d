// Package models holds the gorm models for every marketplace entity.
// JSON field names are camelCase to match the web client.
package models

import "time"

// Model is the common primary key and timestamps. Rows are hard-deleted.
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&Customer{}, &Address{},
		&Supplier{}, &Admin{},
		&Category{}, &Product{}, &ProductSupplier{},
		&Order{}, &Payment{},
		&Notification{}, &PlatformConfig{},
		&Review{}, &Subscription{}, &Blog{}, &Ad{},
	}
}
