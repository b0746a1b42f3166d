package models

import (
	"time"

	"gorm.io/datatypes"
)

// Order.Status values.
const (
	OrderCreated       = "created"
	OrderPaid          = "paid"
	OrderDelivered     = "delivered"
	OrderCancelled     = "cancelled"
	OrderPaymentFailed = "payment_failed"
)

// Payment status values, shared by Order.PaymentStatus and Payment.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

type Order struct {
	Model
	CustomerID    uint       `gorm:"not null;index" json:"customerId"`
	ProductID     *uint      `gorm:"index" json:"productId,omitempty"`
	SupplierID    *uint      `gorm:"index" json:"supplierId,omitempty"`
	AddressID     *uint      `json:"addressId,omitempty"`
	Qty           int        `gorm:"not null;default:1" json:"qty"`
	UnitPrice     float64    `gorm:"not null;default:0" json:"unitPrice"`
	BaseAmount    float64    `gorm:"not null;default:0" json:"baseAmount"`
	DeliveryFee   float64    `gorm:"not null;default:0" json:"deliveryFee"`
	Commission    float64    `gorm:"not null;default:0" json:"commission"`
	TotalAmount   float64    `gorm:"not null;default:0" json:"totalAmount"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	Status        string     `gorm:"size:20;not null;default:created;index" json:"status"`
	PaymentStatus string     `gorm:"size:20;not null;default:pending;index" json:"paymentStatus"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	Product       *Product   `gorm:"constraint:OnDelete:SET NULL" json:"product,omitempty"`
	Customer      *Customer  `json:"customer,omitempty"`
	Address       *Address   `json:"address,omitempty"`
}

type Payment struct {
	Model
	OrderID         uint           `gorm:"not null;index" json:"orderId"`
	CustomerID      uint           `gorm:"not null;index" json:"customerId"`
	Amount          float64        `gorm:"not null" json:"amount"`
	BaseAmount      float64        `gorm:"not null;default:0" json:"baseAmount"`
	DeliveryFee     float64        `gorm:"not null;default:0" json:"deliveryFee"`
	Commission      float64        `gorm:"not null;default:0" json:"commission"`
	SupplierPayout  float64        `gorm:"not null;default:0" json:"supplierPayout"`
	PaymentStatus   string         `gorm:"size:20;not null;default:pending;index" json:"paymentStatus"`
	Method          string         `gorm:"size:20;not null;default:upi" json:"method"`
	UNR             string         `gorm:"column:unr;size:64;index" json:"unr"`
	UPIID           string         `gorm:"column:upi_id;size:120" json:"upiId,omitempty"`
	PayerName       string         `gorm:"size:120" json:"payerName,omitempty"`
	ScreenshotURL   string         `gorm:"size:500" json:"screenshotUrl,omitempty"`
	Meta            datatypes.JSON `json:"meta,omitempty"`
	IdempotencyKey  string         `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ReviewedBy      *uint          `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
	RejectionReason string         `gorm:"size:500" json:"rejectionReason,omitempty"`
	Order           *Order         `json:"order,omitempty"`
}
