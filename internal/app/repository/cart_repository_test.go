package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartRepoTest(t *testing.T) (CartRepository, *model.User, *model.Product, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	user := &model.User{Email: "test@example.com", PasswordHash: "hash", Name: "Test User"}
	testDB.Create(user)
	product := &model.Product{Name: "Test Product", Price: 49.99}
	testDB.Create(product)

	return NewCartRepository(testDB), user, product, testDB
}

func TestCartRepository_FindOrCreateByUserID(t *testing.T) {
	repo, user, _, testDB := setupCartRepoTest(t)

	cart, err := repo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, cart.UserID)
	assert.NotNil(t, cart.Items)

	again, err := repo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	var count int64
	testDB.Model(&model.Cart{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCartRepository_FindOrCreateByUserID_Concurrent(t *testing.T) {
	repo, user, _, testDB := setupCartRepoTest(t)

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cart, err := repo.FindOrCreateByUserID(user.ID)
			assert.NoError(t, err)
			if cart != nil {
				ids[n] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	// Every caller resolved the same single cart
	var count int64
	testDB.Model(&model.Cart{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestCartRepository_CreateItem_DuplicatePair(t *testing.T) {
	repo, user, product, _ := setupCartRepoTest(t)

	cart, err := repo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)

	err = repo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	// The unique (cart_id, product_id) index rejects a second line
	err = repo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestCartRepository_AddItemQuantity(t *testing.T) {
	repo, user, product, _ := setupCartRepoTest(t)

	cart, err := repo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	require.NoError(t, repo.CreateItem(&model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 2}))

	item, err := repo.AddItemQuantity(cart.ID, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, product.Name, item.Product.Name)
}

func TestCartRepository_AddItemQuantity_LineGone(t *testing.T) {
	repo, user, product, testDB := setupCartRepoTest(t)

	cart, err := repo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)

	// No line for the pair: the increment matches nothing and must say so
	// instead of fabricating a row
	_, err = repo.AddItemQuantity(cart.ID, product.ID, 3)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	testDB.Model(&model.CartItem{}).Where("cart_id = ?", cart.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCartRepository_DeleteItem_ScopedToCart(t *testing.T) {
	repo, user, product, testDB := setupCartRepoTest(t)

	other := &model.User{Email: "other@example.com", PasswordHash: "hash", Name: "Other"}
	testDB.Create(other)

	cart, _ := repo.FindOrCreateByUserID(user.ID)
	otherCart, _ := repo.FindOrCreateByUserID(other.ID)

	item := &model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}
	require.NoError(t, repo.CreateItem(item))

	// Wrong cart id matches nothing
	deleted, err := repo.DeleteItem(otherCart.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	deleted, err = repo.DeleteItem(cart.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestCartRepository_DeleteStaleItems(t *testing.T) {
	repo, user, product, testDB := setupCartRepoTest(t)

	cart, _ := repo.FindOrCreateByUserID(user.ID)
	item := &model.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}
	require.NoError(t, repo.CreateItem(item))

	// Backdate the line past the cutoff
	old := time.Now().Add(-48 * time.Hour)
	testDB.Model(&model.CartItem{}).Where("id = ?", item.ID).UpdateColumn("updated_at", old)

	deleted, err := repo.DeleteStaleItems(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	fresh, err := repo.FindOrCreateByUserID(user.ID)
	require.NoError(t, err)
	assert.Len(t, fresh.Items, 0)
}
