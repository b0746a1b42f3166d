package models

import (
	"time"

	"github.com/rrnagar/marketplace/pkg/crypt"
)

const (
	SupplierPending      = "pending"
	SupplierKYCPending   = "kyc_pending"
	SupplierKYCSubmitted = "kyc_submitted"
	SupplierApproved     = "approved"
	SupplierRejected     = "rejected"
)

// Supplier KYC fields never leave the server; PAN and bank account are
// encrypted in the table.
type Supplier struct {
	Model
	Name            string       `gorm:"size:120;not null" json:"name"`
	BusinessName    string       `gorm:"size:190" json:"businessName"`
	Email           string       `gorm:"size:190;uniqueIndex;not null" json:"email"`
	Phone           string       `gorm:"size:20" json:"phone"`
	Password        string       `gorm:"size:255;not null" json:"-"`
	Area            string       `gorm:"size:120" json:"area"`
	Zone            string       `gorm:"size:60" json:"zone"`
	Latitude        *float64     `json:"latitude,omitempty"`
	Longitude       *float64     `json:"longitude,omitempty"`
	Status          string       `gorm:"size:20;not null;default:pending;index" json:"status"`
	PAN             crypt.String `gorm:"column:pan;type:text" json:"-"`
	GSTIN           string       `gorm:"column:gstin;size:20" json:"-"`
	BankAccount     crypt.String `gorm:"type:text" json:"-"`
	IFSC            string       `gorm:"column:ifsc;size:15" json:"-"`
	KYCDocumentURL  string       `gorm:"column:kyc_document_url;size:500" json:"-"`
	KYCSubmittedAt  *time.Time   `gorm:"column:kyc_submitted_at" json:"kycSubmittedAt,omitempty"`
	RejectionReason string       `gorm:"size:500" json:"rejectionReason,omitempty"`
}

// KYCView is what the supplier and admins see of the KYC record.
type KYCView struct {
	PAN            string     `json:"pan"`
	GSTIN          string     `json:"gstin"`
	BankAccount    string     `json:"bankAccount"`
	IFSC           string     `json:"ifsc"`
	KYCDocumentURL string     `json:"kycDocumentUrl"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
}

// KYC returns the record with PAN and bank account masked.
func (s Supplier) KYC() KYCView {
	return KYCView{
		PAN:            crypt.Mask(string(s.PAN), 4),
		GSTIN:          s.GSTIN,
		BankAccount:    crypt.Mask(string(s.BankAccount), 4),
		IFSC:           s.IFSC,
		KYCDocumentURL: s.KYCDocumentURL,
		SubmittedAt:    s.KYCSubmittedAt,
	}
}
