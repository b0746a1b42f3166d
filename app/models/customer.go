package models

import "time"

type Customer struct {
	Model
	Name         string     `gorm:"size:120" json:"name"`
	Email        *string    `gorm:"size:190;uniqueIndex" json:"email,omitempty"`
	Phone        string     `gorm:"size:20;index" json:"phone,omitempty"`
	OTPCode      string     `gorm:"column:otp_code;size:10" json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at" json:"-"`
	OTPAttempts  int        `gorm:"column:otp_attempts;not null;default:0" json:"-"`
	Addresses    []Address  `gorm:"constraint:OnDelete:CASCADE" json:"addresses,omitempty"`
}

type Address struct {
	Model
	CustomerID uint     `gorm:"not null;index" json:"customerId"`
	Label      string   `gorm:"size:40" json:"label"`
	Line1      string   `gorm:"size:255;not null" json:"line1"`
	Line2      string   `gorm:"size:255" json:"line2"`
	Area       string   `gorm:"size:120" json:"area"`
	City       string   `gorm:"size:120;default:Bengaluru" json:"city"`
	Pincode    string   `gorm:"size:10" json:"pincode"`
	Zone       string   `gorm:"size:60" json:"zone"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	IsDefault  bool     `gorm:"not null;default:false" json:"isDefault"`
}
