package service

import (
	"errors"

	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/internal/app/repository"
	"github.com/minshop/minshop-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")
)

type CartService interface {
	GetUserCart(userID uint) (*model.Cart, error)
	AddToCart(userID, productID uint, quantity int) (*model.CartItem, error)
	UpdateCartItem(cartID, itemID uint, quantity int) (*model.CartItem, bool, error)
	RemoveFromCart(cartID, itemID uint) (*model.CartItem, error)
	ClearCart(userID uint) (int64, error)
	CalculateCartTotal(userID uint) (decimal.Decimal, error)
	GetCartItemsCount(userID uint) (int, error)
	IsProductInCart(userID, productID uint) (bool, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// GetUserCart returns the user's cart, creating an empty one on first access.
func (s *cartService) GetUserCart(userID uint) (*model.Cart, error) {
	logger.Debug("Fetching user cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Info("User cart fetched successfully", map[string]interface{}{
		"user_id": userID,
		"cart_id": cart.ID,
		"count":   len(cart.Items),
	})
	return cart, nil
}

// AddToCart puts quantity units of a product into the user's cart. An add for
// a product already in the cart merges into the existing line by summing
// quantities; the merge routes through UpdateCartItem, so a sum at or below
// zero removes the line.
func (s *cartService) AddToCart(userID, productID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	// Catalog lookup failures pass through unchanged: a missing product must
	// surface as ErrProductNotFound, not a cart error.
	if _, err := s.productRepo.FindByID(productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot add to cart: product not found", map[string]interface{}{
				"user_id":    userID,
				"product_id": productID,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}

	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return nil, err
	}

	for i := range cart.Items {
		if cart.Items[i].ProductID != productID {
			continue
		}
		existing := &cart.Items[i]
		logger.Debug("Merging into existing cart line", map[string]interface{}{
			"cart_item_id": existing.ID,
			"old_qty":      existing.Quantity,
			"add_qty":      quantity,
		})
		item, _, err := s.UpdateCartItem(cart.ID, existing.ID, existing.Quantity+quantity)
		return item, err
	}

	// No line to decrement on a first add.
	if quantity <= 0 {
		logger.Warn("Cannot add to cart: non-positive quantity for new line", map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"quantity":   quantity,
		})
		return nil, ErrInvalidQuantity
	}

	item := &model.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if err := s.cartRepo.CreateItem(item); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Error("Failed to create cart item", err, map[string]interface{}{
				"cart_id":    cart.ID,
				"product_id": productID,
			})
			return nil, err
		}

		// A concurrent add of the same product won the insert; fold this
		// quantity into its line instead of failing.
		logger.Debug("Cart item insert lost race, merging quantities", map[string]interface{}{
			"cart_id":    cart.ID,
			"product_id": productID,
		})
		merged, mergeErr := s.cartRepo.AddItemQuantity(cart.ID, productID, quantity)
		if mergeErr == nil {
			return merged, nil
		}
		if !errors.Is(mergeErr, gorm.ErrRecordNotFound) {
			return nil, mergeErr
		}

		// The winning line was removed before the increment landed; insert a
		// fresh one.
		item = &model.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
		}
		if err := s.cartRepo.CreateItem(item); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return s.cartRepo.AddItemQuantity(cart.ID, productID, quantity)
			}
			return nil, err
		}
	}

	created, err := s.cartRepo.FindItemByID(cart.ID, item.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("Cart item added successfully", map[string]interface{}{
		"cart_item_id": created.ID,
		"cart_id":      cart.ID,
	})
	return created, nil
}

// UpdateCartItem sets a line's quantity. A quantity at or below zero removes
// the line; the returned bool reports whether that happened.
func (s *cartService) UpdateCartItem(cartID, itemID uint, quantity int) (*model.CartItem, bool, error) {
	logger.Info("Updating cart item", map[string]interface{}{
		"cart_id":      cartID,
		"cart_item_id": itemID,
		"quantity":     quantity,
	})

	if quantity <= 0 {
		item, err := s.RemoveFromCart(cartID, itemID)
		return item, err == nil, err
	}

	item, err := s.cartRepo.FindItemByID(cartID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cart item not found", map[string]interface{}{
				"cart_id":      cartID,
				"cart_item_id": itemID,
			})
			return nil, false, ErrCartItemNotFound
		}
		logger.Error("Failed to fetch cart item", err, map[string]interface{}{
			"cart_item_id": itemID,
		})
		return nil, false, err
	}

	item.Quantity = quantity
	if err := s.cartRepo.UpdateItem(item); err != nil {
		return nil, false, err
	}

	logger.Info("Cart item updated successfully", map[string]interface{}{
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})
	return item, false, nil
}

// RemoveFromCart deletes a line scoped to both the item and cart ids, so an
// item id from another user's cart cannot be removed.
func (s *cartService) RemoveFromCart(cartID, itemID uint) (*model.CartItem, error) {
	logger.Info("Removing cart item", map[string]interface{}{
		"cart_id":      cartID,
		"cart_item_id": itemID,
	})

	item, err := s.cartRepo.FindItemByID(cartID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cart item not found for removal", map[string]interface{}{
				"cart_id":      cartID,
				"cart_item_id": itemID,
			})
			return nil, ErrCartItemNotFound
		}
		logger.Error("Failed to fetch cart item for removal", err, map[string]interface{}{
			"cart_item_id": itemID,
		})
		return nil, err
	}

	deleted, err := s.cartRepo.DeleteItem(cartID, itemID)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, ErrCartItemNotFound
	}

	logger.Info("Cart item removed", map[string]interface{}{
		"cart_item_id": itemID,
	})
	return item, nil
}

// ClearCart deletes every line in the user's cart and reports how many rows
// went away. The cart row itself survives for reuse.
func (s *cartService) ClearCart(userID uint) (int64, error) {
	logger.Info("Clearing user cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return 0, err
	}

	count, err := s.cartRepo.DeleteItemsByCartID(cart.ID)
	if err != nil {
		logger.Error("Failed to clear cart", err, map[string]interface{}{
			"user_id": userID,
			"cart_id": cart.ID,
		})
		return 0, err
	}

	logger.Info("User cart cleared", map[string]interface{}{
		"user_id":       userID,
		"deleted_count": count,
	})
	return count, nil
}

// CalculateCartTotal sums unit price times quantity over the cart, with
// 2-decimal money semantics.
func (s *cartService) CalculateCartTotal(userID uint) (decimal.Decimal, error) {
	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, item := range cart.Items {
		price := decimal.NewFromFloat(item.Product.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	total = total.Round(2)

	logger.Debug("Cart total calculated", map[string]interface{}{
		"user_id": userID,
		"total":   total.String(),
	})
	return total, nil
}

// GetCartItemsCount sums quantities across the cart, not the number of lines.
func (s *cartService) GetCartItemsCount(userID uint) (int, error) {
	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return count, nil
}

// IsProductInCart reports whether any line in the user's cart references the
// product.
func (s *cartService) IsProductInCart(userID, productID uint) (bool, error) {
	cart, err := s.cartRepo.FindOrCreateByUserID(userID)
	if err != nil {
		return false, err
	}

	for _, item := range cart.Items {
		if item.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}
