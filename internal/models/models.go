package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User - The cashier or manager operating the till
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'cashier'
	CreatedAt    time.Time `json:"created_at"`
}

// Category groups products on the shelf and in reports
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Product - The Inventory
type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Barcode      *string         `gorm:"uniqueIndex;size:64" json:"barcode"`
	Name         string          `gorm:"size:200;not null" json:"name"`
	CategoryID   *uint           `gorm:"index" json:"category_id"`
	Category     *Category       `json:"category,omitempty"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cost_price"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"selling_price"`
	Stock        int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	MinStock     int             `gorm:"not null;default:0" json:"min_stock"`
	Featured     bool            `gorm:"not null;default:false" json:"featured"`
	ImageURL     string          `json:"image_url"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the product is at or below its reorder threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentPix  PaymentMethod = "pix"
)

// Sale - The Transaction Header
type Sale struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	Total           decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"total"`
	PaymentMethod   PaymentMethod       `gorm:"size:20;not null;index" json:"payment_method"`
	CashReceived    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cash_received"`
	ChangeAmount    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"change_amount"`
	AuthorizationID *string             `gorm:"size:64" json:"authorization_id,omitempty"`
	CardBrand       *string             `gorm:"size:30" json:"card_brand,omitempty"`
	Status          SaleStatus          `gorm:"size:20;not null;index" json:"status"`
	UserID          *uint               `gorm:"index" json:"user_id"` // Who processed it
	CreatedAt       time.Time           `gorm:"index" json:"created_at"`
	Items           []SaleItem          `gorm:"foreignKey:SaleID" json:"items"`
}

// SaleItem - One scanned line, priced at the moment it was added to the cart
type SaleItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SaleID      uint            `gorm:"index;not null" json:"sale_id"`
	ProductID   uint            `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:200;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
}

// All lists every entity that belongs in the schema, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Product{},
		&Sale{},
		&SaleItem{},
	}
}
