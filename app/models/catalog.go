package models

type Category struct {
	Model
	Name        string `gorm:"size:120;uniqueIndex;not null" json:"name"`
	Slug        string `gorm:"size:140;index" json:"slug"`
	Icon        string `gorm:"size:255" json:"icon"`
	Description string `gorm:"type:text" json:"description"`
}

const (
	ProductActive   = "active"
	ProductInactive = "inactive"
)

type Product struct {
	Model
	Name                string            `gorm:"size:190;not null;index" json:"name"`
	Description         string            `gorm:"type:text" json:"description"`
	CategoryID          *uint             `gorm:"index" json:"categoryId"`
	Category            *Category         `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Price               float64           `gorm:"not null;default:0" json:"price"`
	Variety             string            `gorm:"size:120" json:"variety"`
	SubVariety          string            `gorm:"size:120" json:"subVariety"`
	Unit                string            `gorm:"size:30" json:"unit"`
	WeightKg            float64           `gorm:"not null;default:0" json:"weightKg"`
	ImageURL            string            `gorm:"size:500" json:"imageUrl"`
	ThumbURL            string            `gorm:"size:500" json:"thumbUrl"`
	Status              string            `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedBySupplierID *uint             `gorm:"index" json:"createdBySupplierId,omitempty"`
	MonthlyPackage      bool              `gorm:"not null;default:false" json:"monthlyPackage"`
	YearlyPackage       bool              `gorm:"not null;default:false" json:"yearlyPackage"`
	MonthlyPrice        float64           `gorm:"not null;default:0" json:"monthlyPrice"`
	YearlyPrice         float64           `gorm:"not null;default:0" json:"yearlyPrice"`
	Offers              []ProductSupplier `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"offers,omitempty"`
}

// ProductSupplier is a supplier's offer for a product.
type ProductSupplier struct {
	Model
	ProductID  uint      `gorm:"not null;uniqueIndex:idx_product_supplier" json:"productId"`
	SupplierID uint      `gorm:"not null;uniqueIndex:idx_product_supplier;index" json:"supplierId"`
	Price      float64   `gorm:"not null;default:0" json:"price"`
	Stock      int       `gorm:"not null;default:0" json:"stock"`
	IsActive   bool      `gorm:"not null;default:true" json:"isActive"`
	Product    *Product  `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Supplier   *Supplier `gorm:"constraint:OnDelete:CASCADE" json:"supplier,omitempty"`
}

func (ProductSupplier) TableName() string { return "product_suppliers" }
