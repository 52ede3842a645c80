package repository

import (
	"errors"
	"time"

	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	FindOrCreateByUserID(userID uint) (*model.Cart, error)
	FindItemByID(cartID, itemID uint) (*model.CartItem, error)
	FindItemByProduct(cartID, productID uint) (*model.CartItem, error)
	CreateItem(item *model.CartItem) error
	AddItemQuantity(cartID, productID uint, delta int) (*model.CartItem, error)
	UpdateItem(item *model.CartItem) error
	DeleteItem(cartID, itemID uint) (int64, error)
	DeleteItemsByCartID(cartID uint) (int64, error)
	DeleteStaleItems(olderThan time.Time) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// FindOrCreateByUserID returns the user's cart with items and product data,
// creating the cart on first access. A concurrent creation losing the race on
// the unique user_id index is recovered by re-fetching the winner's row.
func (r *cartRepository) FindOrCreateByUserID(userID uint) (*model.Cart, error) {
	logger.Debug("Resolving cart for user", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := r.findByUserID(userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to find cart by user ID", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	created := model.Cart{UserID: userID}
	if err := r.db.Create(&created).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Debug("Cart creation lost race, fetching existing cart", map[string]interface{}{
				"user_id": userID,
			})
			return r.findByUserID(userID)
		}
		logger.Error("Failed to create cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	created.Items = []model.CartItem{}
	return &created, nil
}

func (r *cartRepository) findByUserID(userID uint) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.Where("user_id = ?", userID).
		Preload("Items.Product").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}
	return &cart, nil
}

func (r *cartRepository) FindItemByID(cartID, itemID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.Where("id = ? AND cart_id = ?", itemID, cartID).
		Preload("Product").
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) FindItemByProduct(cartID, productID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.Where("cart_id = ? AND product_id = ?", cartID, productID).
		Preload("Product").
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) CreateItem(item *model.CartItem) error {
	logger.Debug("Creating cart item in database", map[string]interface{}{
		"cart_id":    item.CartID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})

	if err := r.db.Create(item).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Error("Failed to create cart item in database", err, map[string]interface{}{
				"cart_id":    item.CartID,
				"product_id": item.ProductID,
			})
		}
		return err
	}
	return nil
}

// AddItemQuantity atomically increments the line for (cartID, productID) and
// returns the updated row. Used when an insert loses the race against a
// concurrent add of the same product. Returns gorm.ErrRecordNotFound when the
// line no longer exists, so callers can tell a vanished row from a real error.
func (r *cartRepository) AddItemQuantity(cartID, productID uint, delta int) (*model.CartItem, error) {
	logger.Debug("Incrementing cart item quantity in database", map[string]interface{}{
		"cart_id":    cartID,
		"product_id": productID,
		"delta":      delta,
	})

	result := r.db.Model(&model.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		logger.Error("Failed to increment cart item quantity", result.Error, map[string]interface{}{
			"cart_id":    cartID,
			"product_id": productID,
		})
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.FindItemByProduct(cartID, productID)
}

func (r *cartRepository) UpdateItem(item *model.CartItem) error {
	logger.Debug("Updating cart item in database", map[string]interface{}{
		"cart_item_id": item.ID,
		"cart_id":      item.CartID,
		"quantity":     item.Quantity,
	})

	if err := r.db.Save(item).Error; err != nil {
		logger.Error("Failed to update cart item in database", err, map[string]interface{}{
			"cart_item_id": item.ID,
		})
		return err
	}
	return nil
}

// DeleteItem removes the item scoped to both ids and reports how many rows
// matched, so a mismatched cart/item pair is distinguishable from success.
func (r *cartRepository) DeleteItem(cartID, itemID uint) (int64, error) {
	logger.Debug("Deleting cart item from database", map[string]interface{}{
		"cart_item_id": itemID,
		"cart_id":      cartID,
	})

	result := r.db.Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item from database", result.Error, map[string]interface{}{
			"cart_item_id": itemID,
			"cart_id":      cartID,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *cartRepository) DeleteItemsByCartID(cartID uint) (int64, error) {
	logger.Debug("Deleting all cart items from database", map[string]interface{}{
		"cart_id": cartID,
	})

	result := r.db.Where("cart_id = ?", cartID).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart items from database", result.Error, map[string]interface{}{
			"cart_id": cartID,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteStaleItems removes cart items whose last update predates olderThan.
func (r *cartRepository) DeleteStaleItems(olderThan time.Time) (int64, error) {
	result := r.db.Where("updated_at < ?", olderThan).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete stale cart items from database", result.Error, map[string]interface{}{
			"older_than": olderThan,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
