package models

import "time"

const (
	AdminRoleSuper     = "super_admin"
	AdminRoleAdmin     = "admin"
	AdminRoleModerator = "moderator"
)

type Admin struct {
	Model
	Name         string     `gorm:"size:120;not null" json:"name"`
	Email        string     `gorm:"size:190;uniqueIndex;not null" json:"email"`
	Role         string     `gorm:"size:20;not null;default:admin" json:"role"`
	Approved     bool       `gorm:"not null;default:false" json:"approved"`
	OTPCode      string     `gorm:"column:otp_code;size:10" json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at" json:"-"`
	OTPAttempts  int        `gorm:"column:otp_attempts;not null;default:0" json:"-"`
}
