package model

import (
	"time"
)

// Cart is created lazily on first access and never deleted; clearing a cart
// removes its items only. The unique index on user_id is what turns a racing
// second creation into a recoverable duplicate-key error.
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Items []CartItem `gorm:"foreignKey:CartID" json:"items"`
	User  User       `gorm:"foreignKey:UserID" json:"-"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartItem is one line in a cart. A quantity can never be stored at or below
// zero; updates that would reach zero delete the row instead. Rows are
// hard-deleted so the unique (cart_id, product_id) slot is freed for re-adds.
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_product;index" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Cart    Cart    `gorm:"foreignKey:CartID" json:"-"`
	Product Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
