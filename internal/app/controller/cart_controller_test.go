package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/internal/app/repository"
	"github.com/minshop/minshop-backend/internal/app/service"
	"github.com/minshop/minshop-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartControllerTest(t *testing.T) (*CartController, *gin.Engine, *gorm.DB, *model.User, *model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cartRepo := repository.NewCartRepository(testDB)
	productRepo := repository.NewProductRepository(testDB, true)
	cartService := service.NewCartService(cartRepo, productRepo)
	cartController := NewCartController(cartService)

	user := &model.User{
		Email:        "test@example.com",
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         model.RoleUser,
	}
	testDB.Create(user)

	product := &model.Product{
		Name:          "Test Product",
		Price:         25.50,
		StockQuantity: 10,
		Category:      model.CategoryElectronics,
	}
	testDB.Create(product)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	return cartController, router, testDB, user, product
}

// Helper to inject the authenticated user, standing in for the auth middleware
func setUserIDInContext(c *gin.Context, userID uint) {
	c.Set("user_id", userID)
}

func TestCartController_GetCart_CreatesEmptyCart(t *testing.T) {
	controller, router, _, user, _ := setupCartControllerTest(t)

	router.GET("/cart", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.GetCart(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, float64(0), response["count"])
	cart := response["cart"].(map[string]interface{})
	assert.Equal(t, float64(user.ID), cart["user_id"])
	assert.Len(t, cart["items"], 0)
}

func TestCartController_GetCart_WithItems(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, err := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	require.NoError(t, cartRepo.CreateItem(&model.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  2,
	}))

	router.GET("/cart", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.GetCart(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, float64(1), response["count"])
	assert.Equal(t, "51", response["total"]) // 25.50 * 2
}

func TestCartController_GetCart_Unauthorized(t *testing.T) {
	controller, router, _, _, _ := setupCartControllerTest(t)

	router.GET("/cart", controller.GetCart)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartController_AddToCart_Success(t *testing.T) {
	controller, router, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/items", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.AddToCart(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{
		"product_id": product.ID,
		"quantity":   2,
	})
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	item := response["cart_item"].(map[string]interface{})
	assert.Equal(t, float64(2), item["quantity"])
	assert.Equal(t, float64(product.ID), item["product_id"])
}

func TestCartController_AddToCart_DefaultQuantity(t *testing.T) {
	controller, router, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/items", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.AddToCart(c)
	})

	// Omitted quantity defaults to 1
	jsonBody, _ := json.Marshal(map[string]interface{}{
		"product_id": product.ID,
	})
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	item := response["cart_item"].(map[string]interface{})
	assert.Equal(t, float64(1), item["quantity"])
}

func TestCartController_AddToCart_ProductNotFound(t *testing.T) {
	controller, router, _, user, _ := setupCartControllerTest(t)

	router.POST("/cart/items", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.AddToCart(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{
		"product_id": 9999,
		"quantity":   2,
	})
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "PRODUCT_NOT_FOUND", response["error"])
}

func TestCartController_AddToCart_NonPositiveFirstAdd(t *testing.T) {
	controller, router, _, user, product := setupCartControllerTest(t)

	router.POST("/cart/items", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.AddToCart(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{
		"product_id": product.ID,
		"quantity":   0,
	})
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "CART_INVALID_QUANTITY", response["error"])
}

func TestCartController_AddToCart_MissingProductID(t *testing.T) {
	controller, router, _, user, _ := setupCartControllerTest(t)

	router.POST("/cart/items", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.AddToCart(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{
		"quantity": 2,
	})
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_UpdateCartItem_Success(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, _ := cartRepo.FindOrCreateByUserID(user.ID)
	item := &model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 2}
	require.NoError(t, cartRepo.CreateItem(item))

	router.PUT("/cart/items/:id", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.UpdateCartItem(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{"quantity": 5})
	req := httptest.NewRequest(http.MethodPut, "/cart/items/1", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	updated := response["cart_item"].(map[string]interface{})
	assert.Equal(t, float64(5), updated["quantity"])
}

func TestCartController_UpdateCartItem_ZeroRemoves(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, _ := cartRepo.FindOrCreateByUserID(user.ID)
	item := &model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 2}
	require.NoError(t, cartRepo.CreateItem(item))

	router.PUT("/cart/items/:id", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.UpdateCartItem(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{"quantity": 0})
	req := httptest.NewRequest(http.MethodPut, "/cart/items/1", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "Cart item removed", response["message"])

	refreshed, err := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	assert.Len(t, refreshed.Items, 0)
}

func TestCartController_UpdateCartItem_NotFound(t *testing.T) {
	controller, router, _, user, _ := setupCartControllerTest(t)

	router.PUT("/cart/items/:id", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.UpdateCartItem(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{"quantity": 5})
	req := httptest.NewRequest(http.MethodPut, "/cart/items/9999", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "CART_ITEM_NOT_FOUND", response["error"])
}

func TestCartController_UpdateCartItem_InvalidID(t *testing.T) {
	controller, router, _, user, _ := setupCartControllerTest(t)

	router.PUT("/cart/items/:id", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.UpdateCartItem(c)
	})

	jsonBody, _ := json.Marshal(map[string]interface{}{"quantity": 5})
	req := httptest.NewRequest(http.MethodPut, "/cart/items/invalid", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_RemoveFromCart_Success(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, _ := cartRepo.FindOrCreateByUserID(user.ID)
	item := &model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 2}
	require.NoError(t, cartRepo.CreateItem(item))

	router.DELETE("/cart/items/:id", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.RemoveFromCart(c)
	})

	req := httptest.NewRequest(http.MethodDelete, "/cart/items/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCartController_RemoveFromCart_NotFound(t *testing.T) {
	controller, router, _, user, _ := setupCartControllerTest(t)

	router.DELETE("/cart/items/:id", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.RemoveFromCart(c)
	})

	req := httptest.NewRequest(http.MethodDelete, "/cart/items/9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartController_ClearCart_Success(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	other := &model.Product{Name: "Other Product", Price: 5.00}
	testDB.Create(other)

	cartRepo := repository.NewCartRepository(testDB)
	cart, _ := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, cartRepo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 2}))
	require.NoError(t, cartRepo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: other.ID, Quantity: 3}))

	router.DELETE("/cart", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.ClearCart(c)
	})

	req := httptest.NewRequest(http.MethodDelete, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, float64(2), response["removed_items"])

	refreshed, err := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	assert.Len(t, refreshed.Items, 0)
}

func TestCartController_GetCartCount(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, _ := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, cartRepo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 4}))

	router.GET("/cart/count", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.GetCartCount(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart/count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, float64(4), response["count"])
}

func TestCartController_CheckProductInCart(t *testing.T) {
	controller, router, testDB, user, product := setupCartControllerTest(t)

	cartRepo := repository.NewCartRepository(testDB)
	cart, _ := cartRepo.FindOrCreateByUserID(user.ID)
	require.NoError(t, cartRepo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}))

	router.GET("/cart/contains/:productID", func(c *gin.Context) {
		setUserIDInContext(c, user.ID)
		controller.CheckProductInCart(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart/contains/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, true, response["in_cart"])

	req = httptest.NewRequest(http.MethodGet, "/cart/contains/9999", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	err = json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, false, response["in_cart"])
}
