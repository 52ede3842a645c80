package model

import (
	"time"
)

type ProductCategory string

const (
	CategoryElectronics ProductCategory = "electronics"
	CategoryClothing    ProductCategory = "clothing"
	CategoryBooks       ProductCategory = "books"
	CategoryHome        ProductCategory = "home"
	CategoryOther       ProductCategory = "other"
)

// Product rows are hard-deleted: carts and wishlists cascade on removal, and a
// soft-deleted row would keep holding the unique name slot.
type Product struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Name          string          `gorm:"uniqueIndex;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         float64         `gorm:"not null" json:"price"`
	StockQuantity int             `gorm:"default:0" json:"stock_quantity"`
	ImageURL      string          `json:"image_url"`
	Category      ProductCategory `gorm:"type:varchar(50)" json:"category"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Relationships
	CartItems     []CartItem     `gorm:"foreignKey:ProductID" json:"-"`
	WishlistItems []WishlistItem `gorm:"foreignKey:ProductID" json:"-"`
}

func (Product) TableName() string {
	return "products"
}
