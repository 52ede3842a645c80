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

type WishlistController struct {
	wishlistService service.WishlistService
}

func NewWishlistController(wishlistService service.WishlistService) *WishlistController {
	return &WishlistController{
		wishlistService: wishlistService,
	}
}

type AddToWishlistRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

// GetWishlist returns the user's wishlist
// GET /api/v1/wishlist
func (ctrl *WishlistController) GetWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to wishlist", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	items, err := ctrl.wishlistService.GetWishlist(userID)
	if err != nil {
		log.Error("Failed to fetch wishlist", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wishlist": items,
		"count":    len(items),
	})
}

// AddToWishlist adds a product to the user's wishlist
// POST /api/v1/wishlist
func (ctrl *WishlistController) AddToWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to add to wishlist", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	var req AddToWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to wishlist request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "invalid request data")
		return
	}

	item, err := ctrl.wishlistService.AddToWishlist(userID, req.ProductID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			apperrors.NotFound(c, apperrors.ProductNotFound, "product not found")
			return
		}
		if errors.Is(err, service.ErrAlreadyInWishlist) {
			apperrors.Conflict(c, apperrors.WishlistItemExists, "product is already in wishlist")
			return
		}
		log.Error("Failed to add to wishlist", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": req.ProductID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	log.Info("Product added to wishlist", map[string]interface{}{
		"user_id":    userID,
		"product_id": req.ProductID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message":       "Product added to wishlist",
		"wishlist_item": item,
	})
}

// RemoveFromWishlist removes a product from the user's wishlist
// DELETE /api/v1/wishlist/:productID
func (ctrl *WishlistController) RemoveFromWishlist(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to remove from wishlist", nil)
		apperrors.Unauthorized(c, "authentication required")
		return
	}

	idStr := c.Param("productID")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "invalid product ID")
		return
	}

	if err := ctrl.wishlistService.RemoveFromWishlist(userID, uint(id)); err != nil {
		if errors.Is(err, service.ErrWishlistItemNotFound) {
			apperrors.NotFound(c, apperrors.WishlistItemNotFound, "wishlist item not found")
			return
		}
		log.Error("Failed to remove from wishlist", err, map[string]interface{}{
			"user_id":    userID,
			"product_id": id,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err)
		return
	}

	log.Info("Product removed from wishlist", map[string]interface{}{
		"user_id":    userID,
		"product_id": id,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Product removed from wishlist",
	})
}
