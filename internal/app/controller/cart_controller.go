package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/minshop/minshop-backend/internal/app/service"
	apperrors "github.com/minshop/minshop-backend/internal/errors"
	"github.com/minshop/minshop-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

// Quantity is a pointer so an omitted field defaults to 1. Negative
// values are allowed through: on an existing line they decrement it.
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  *int `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the user's cart, creating it on first access
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to cart", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	cart, err := ctrl.cartService.GetUserCart(userID)
	if err != nil {
		log.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	total, err := ctrl.cartService.CalculateCartTotal(userID)
	if err != nil {
		log.Error("Failed to calculate cart total", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	log.Info("Cart fetched successfully", map[string]interface{}{
		"user_id": userID,
		"cart_id": cart.ID,
		"count":   len(cart.Items),
	})

	c.JSON(http.StatusOK, gin.H{
		"cart":  cart,
		"count": len(cart.Items),
		"total": total,
	})
}

// AddToCart adds a product to the user's cart, merging with an
// existing line for the same product
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to add to cart", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "invalid request data")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	log.Debug("Adding item to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": req.ProductID,
		"quantity":   quantity,
	})

	item, err := ctrl.cartService.AddToCart(userID, req.ProductID, quantity)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			log.Warn("Product not found for cart", map[string]interface{}{
				"user_id":    userID,
				"product_id": req.ProductID,
			})
			apperrors.NotFound(c, apperrors.ProductNotFound, "product not found")
			return
		}
		if errors.Is(err, service.ErrInvalidQuantity) {
			log.Warn("Invalid quantity for new cart line", map[string]interface{}{
				"user_id":    userID,
				"product_id": req.ProductID,
				"quantity":   quantity,
			})
			apperrors.BadRequest(c, apperrors.CartInvalidQuantity, "quantity must be positive for a new cart line")
			return
		}
		log.Error("Failed to add item to cart", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": req.ProductID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	log.Info("Item added to cart successfully", map[string]interface{}{
		"user_id":    userID,
		"product_id": req.ProductID,
		"quantity":   item.Quantity,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Item added to cart successfully",
		"cart_item": item,
	})
}

// UpdateCartItem sets a cart line's quantity; zero or negative removes it
// PUT /api/v1/cart/items/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to update cart item", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		log.Warn("Invalid cart item ID format", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": idStr,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "invalid cart item ID")
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": id,
			"error":        err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "invalid request data")
		return
	}

	cart, err := ctrl.cartService.GetUserCart(userID)
	if err != nil {
		log.Error("Failed to resolve cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	item, removed, err := ctrl.cartService.UpdateCartItem(cart.ID, uint(id), req.Quantity)
	if err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			log.Warn("Cart item not found", map[string]interface{}{
				"user_id":      userID,
				"cart_item_id": id,
			})
			apperrors.NotFound(c, apperrors.CartItemNotFound, "cart item not found")
			return
		}
		log.Error("Failed to update cart item", err, map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	if removed {
		log.Info("Cart item removed via zero quantity", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": id,
		})
		c.JSON(http.StatusOK, gin.H{
			"message": "Cart item removed",
		})
		return
	}

	log.Info("Cart item updated successfully", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": id,
		"quantity":     item.Quantity,
	})

	c.JSON(http.StatusOK, gin.H{
		"message":   "Cart item updated successfully",
		"cart_item": item,
	})
}

// RemoveFromCart removes one line from the user's cart
// DELETE /api/v1/cart/items/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to remove cart item", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		log.Warn("Invalid cart item ID format", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": idStr,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "invalid cart item ID")
		return
	}

	cart, err := ctrl.cartService.GetUserCart(userID)
	if err != nil {
		log.Error("Failed to resolve cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	item, err := ctrl.cartService.RemoveFromCart(cart.ID, uint(id))
	if err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			log.Warn("Cart item not found for removal", map[string]interface{}{
				"user_id":      userID,
				"cart_item_id": id,
			})
			apperrors.NotFound(c, apperrors.CartItemNotFound, "cart item not found")
			return
		}
		log.Error("Failed to remove cart item", err, map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	log.Info("Cart item removed successfully", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": id,
		"product_id":   item.ProductID,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item removed successfully",
	})
}

// ClearCart removes every line but keeps the cart itself
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to clear cart", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	removed, err := ctrl.cartService.ClearCart(userID)
	if err != nil {
		log.Error("Failed to clear cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	log.Info("Cart cleared successfully", map[string]interface{}{
		"user_id":       userID,
		"removed_items": removed,
	})

	c.JSON(http.StatusOK, gin.H{
		"message":       "Cart cleared successfully",
		"removed_items": removed,
	})
}

// GetCartTotal returns the cart's monetary total
// GET /api/v1/cart/total
func (ctrl *CartController) GetCartTotal(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to cart total", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	total, err := ctrl.cartService.CalculateCartTotal(userID)
	if err != nil {
		log.Error("Failed to calculate cart total", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
	})
}

// GetCartCount returns the summed quantity across all cart lines
// GET /api/v1/cart/count
func (ctrl *CartController) GetCartCount(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to cart count", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	count, err := ctrl.cartService.GetCartItemsCount(userID)
	if err != nil {
		log.Error("Failed to count cart items", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": count,
	})
}

// CheckProductInCart reports whether a product has a line in the cart
// GET /api/v1/cart/contains/:productID
func (ctrl *CartController) CheckProductInCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to cart membership check", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	idStr := c.Param("productID")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		log.Warn("Invalid product ID format", map[string]interface{}{
			"user_id":    userID,
			"product_id": idStr,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "invalid product ID")
		return
	}

	inCart, err := ctrl.cartService.IsProductInCart(userID, uint(id))
	if err != nil {
		log.Error("Failed to check cart membership", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": id,
		"in_cart":    inCart,
	})
}
