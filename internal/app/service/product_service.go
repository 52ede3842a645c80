package service

import (
	"errors"

	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/internal/app/repository"
	"github.com/minshop/minshop-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrProductNameTaken = errors.New("product with this name already exists")
	ErrInvalidPrice     = errors.New("price must not be negative")
)

type ProductUpdate struct {
	Name          *string
	Description   *string
	Price         *float64
	StockQuantity *int
	ImageURL      *string
	Category      *model.ProductCategory
}

type ProductService interface {
	CreateProduct(product *model.Product) error
	GetProductByID(id uint) (*model.Product, error)
	ListProducts(limit, offset int) ([]model.Product, error)
	SearchProducts(query string) ([]model.Product, error)
	UpdateProduct(id uint, update ProductUpdate) (*model.Product, error)
	DeleteProduct(id uint) error
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) CreateProduct(product *model.Product) error {
	logger.Info("Creating product", map[string]interface{}{
		"name":     product.Name,
		"price":    product.Price,
		"category": product.Category,
	})

	if product.Price < 0 {
		logger.Warn("Cannot create product: negative price", map[string]interface{}{
			"name":  product.Name,
			"price": product.Price,
		})
		return ErrInvalidPrice
	}

	if err := s.productRepo.Create(product); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Warn("Product name already taken", map[string]interface{}{
				"name": product.Name,
			})
			return ErrProductNameTaken
		}
		return err
	}

	logger.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
	})
	return nil
}

func (s *productService) GetProductByID(id uint) (*model.Product, error) {
	logger.Debug("Fetching product by ID", map[string]interface{}{
		"product_id": id,
	})

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Product not found", map[string]interface{}{
				"product_id": id,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return product, nil
}

func (s *productService) ListProducts(limit, offset int) ([]model.Product, error) {
	products, err := s.productRepo.FindAll(limit, offset)
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, err
	}

	logger.Info("Products listed", map[string]interface{}{
		"count":  len(products),
		"limit":  limit,
		"offset": offset,
	})
	return products, nil
}

func (s *productService) SearchProducts(query string) ([]model.Product, error) {
	products, err := s.productRepo.Search(query)
	if err != nil {
		logger.Error("Failed to search products", err, map[string]interface{}{
			"query": query,
		})
		return nil, err
	}

	logger.Info("Product search completed", map[string]interface{}{
		"query": query,
		"count": len(products),
	})
	return products, nil
}

func (s *productService) UpdateProduct(id uint, update ProductUpdate) (*model.Product, error) {
	logger.Info("Updating product", map[string]interface{}{
		"product_id": id,
	})

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Price != nil {
		if *update.Price < 0 {
			return nil, ErrInvalidPrice
		}
		product.Price = *update.Price
	}
	if update.StockQuantity != nil {
		product.StockQuantity = *update.StockQuantity
	}
	if update.ImageURL != nil {
		product.ImageURL = *update.ImageURL
	}
	if update.Category != nil {
		product.Category = *update.Category
	}

	if err := s.productRepo.Update(product); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Warn("Product name already taken", map[string]interface{}{
				"product_id": id,
				"name":       product.Name,
			})
			return nil, ErrProductNameTaken
		}
		return nil, err
	}

	logger.Info("Product updated successfully", map[string]interface{}{
		"product_id": product.ID,
	})
	return product, nil
}

// DeleteProduct removes a product; carts and wishlists referencing it are
// emptied of it in the same transaction.
func (s *productService) DeleteProduct(id uint) error {
	logger.Info("Deleting product", map[string]interface{}{
		"product_id": id,
	})

	if err := s.productRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Product not found for deletion", map[string]interface{}{
				"product_id": id,
			})
			return ErrProductNotFound
		}
		return err
	}

	logger.Info("Product deleted successfully", map[string]interface{}{
		"product_id": id,
	})
	return nil
}
