package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an entry in the admin feed. AdminID nil addresses every
// admin.
type Notification struct {
	Model
	AdminID *uint          `gorm:"index" json:"adminId,omitempty"`
	Type    string         `gorm:"size:60;not null;index" json:"type"`
	Title   string         `gorm:"size:190;not null" json:"title"`
	Message string         `gorm:"type:text" json:"message"`
	Data    datatypes.JSON `json:"data,omitempty"`
	Read    bool           `gorm:"column:is_read;not null;default:false;index" json:"read"`
}

const (
	ConfigString = "string"
	ConfigInt    = "int"
	ConfigFloat  = "float"
	ConfigBool   = "bool"
	ConfigJSON   = "json"
)

type PlatformConfig struct {
	Model
	Key         string `gorm:"size:120;uniqueIndex;not null" json:"key"`
	Value       string `gorm:"type:text" json:"value"`
	Type        string `gorm:"size:10;not null;default:string" json:"type"`
	Description string `gorm:"size:255" json:"description"`
}

func (PlatformConfig) TableName() string { return "platform_configs" }

type Review struct {
	Model
	CustomerID uint      `gorm:"not null;index" json:"customerId"`
	ProductID  uint      `gorm:"not null;index" json:"productId"`
	SupplierID *uint     `gorm:"index" json:"supplierId,omitempty"`
	OrderID    *uint     `json:"orderId,omitempty"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	Customer   *Customer `json:"customer,omitempty"`
}

const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"

	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

type Subscription struct {
	Model
	CustomerID uint      `gorm:"not null;index" json:"customerId"`
	ProductID  uint      `gorm:"not null;index" json:"productId"`
	SupplierID *uint     `json:"supplierId,omitempty"`
	Plan       string    `gorm:"size:10;not null" json:"plan"`
	Price      float64   `gorm:"not null" json:"price"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `gorm:"index" json:"endDate"`
	Status     string    `gorm:"size:12;not null;default:active;index" json:"status"`
	AutoRenew  bool      `gorm:"not null;default:false" json:"autoRenew"`
	Product    *Product  `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

type Blog struct {
	Model
	Title       string     `gorm:"size:190;not null" json:"title"`
	Slug        string     `gorm:"size:210;uniqueIndex;not null" json:"slug"`
	Content     string     `gorm:"type:text" json:"content"`
	CoverURL    string     `gorm:"size:500" json:"coverUrl"`
	AuthorID    *uint      `json:"authorId,omitempty"`
	Published   bool       `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type Ad struct {
	Model
	Title      string     `gorm:"size:190;not null" json:"title"`
	ImageURL   string     `gorm:"size:500" json:"imageUrl"`
	LinkURL    string     `gorm:"size:500" json:"linkUrl"`
	Position   int        `gorm:"not null;default:0" json:"position"`
	Active     bool       `gorm:"not null;default:true" json:"active"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
	EndsAt     *time.Time `json:"endsAt,omitempty"`
	SupplierID *uint      `json:"supplierId,omitempty"`
}
