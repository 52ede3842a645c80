package repository

import (
	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/pkg/logger"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(product *model.Product) error
	FindAll(limit, offset int) ([]model.Product, error)
	FindByID(id uint) (*model.Product, error)
	Search(query string) ([]model.Product, error)
	Update(product *model.Product) error
	Delete(id uint) error
	BulkCreate(products []model.Product, batchSize int) error
}

type productRepository struct {
	db *gorm.DB
	// caseInsensitiveSearch is injected at construction; substring search
	// matches case-insensitively when set.
	caseInsensitiveSearch bool
}

func NewProductRepository(db *gorm.DB, caseInsensitiveSearch bool) ProductRepository {
	return &productRepository{
		db:                    db,
		caseInsensitiveSearch: caseInsensitiveSearch,
	}
}

func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":     product.Name,
		"category": product.Category,
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}
	return nil
}

func (r *productRepository) FindAll(limit, offset int) ([]model.Product, error) {
	var products []model.Product
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&products).Error; err != nil {
		logger.Error("Failed to list products from database", err, map[string]interface{}{
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindByID(id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Search(query string) ([]model.Product, error) {
	logger.Debug("Searching products in database", map[string]interface{}{
		"query":            query,
		"case_insensitive": r.caseInsensitiveSearch,
	})

	pattern := "%" + query + "%"
	var products []model.Product

	q := r.db
	if r.caseInsensitiveSearch {
		// LOWER on both sides behaves the same on Postgres and SQLite.
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)", pattern, pattern)
	} else {
		q = q.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}

	if err := q.Find(&products).Error; err != nil {
		logger.Error("Failed to search products in database", err, map[string]interface{}{
			"query": query,
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) Update(product *model.Product) error {
	logger.Debug("Updating product in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})

	if err := r.db.Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}
	return nil
}

// BulkCreate inserts products in batches, used by the catalog import tool.
func (r *productRepository) BulkCreate(products []model.Product, batchSize int) error {
	if len(products) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(products, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create products", err, map[string]interface{}{
			"count": len(products),
		})
		return err
	}
	return nil
}

// Delete removes the product and, in the same transaction, every cart and
// wishlist line referencing it.
func (r *productRepository) Delete(id uint) error {
	logger.Debug("Deleting product from database", map[string]interface{}{
		"product_id": id,
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&model.WishlistItem{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Product{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete product from database", err, map[string]interface{}{
			"product_id": id,
		})
		return err
	}
	return nil
}
