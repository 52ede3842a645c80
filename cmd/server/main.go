package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minshop/minshop-backend/config"
	"github.com/minshop/minshop-backend/internal/app/controller"
	"github.com/minshop/minshop-backend/internal/app/repository"
	"github.com/minshop/minshop-backend/internal/app/service"
	"github.com/minshop/minshop-backend/internal/db"
	"github.com/minshop/minshop-backend/internal/middleware"
	"github.com/minshop/minshop-backend/internal/router"
	"github.com/minshop/minshop-backend/internal/scheduler"
	"github.com/minshop/minshop-backend/internal/storage"
	"github.com/minshop/minshop-backend/pkg/logger"
	"github.com/minshop/minshop-backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting MINSHOP Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis is optional: without it, token revocation degrades to expiry
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, token revocation disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redis.Close()
		}
	}

	// Repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB(), cfg.Catalog.CaseInsensitiveSearch)
	cartRepo := repository.NewCartRepository(db.GetDB())
	wishlistRepo := repository.NewWishlistRepository(db.GetDB())

	// Services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	productService := service.NewProductService(productRepo)
	cartService := service.NewCartService(cartRepo, productRepo)
	wishlistService := service.NewWishlistService(wishlistRepo, productRepo)

	// Controllers
	authController := controller.NewAuthController(authService, cfg.JWT.Secret)
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	wishlistController := controller.NewWishlistController(wishlistService)
	uploadController := controller.NewUploadController(storage.NewS3Storage(cfg.S3))

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authController,
		productController,
		cartController,
		wishlistController,
		uploadController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	cleanupScheduler := scheduler.NewCartCleanupScheduler(cartRepo, cfg.Cart.StaleItemTTL)
	if err := cleanupScheduler.Start(); err != nil {
		logger.Error("Failed to start cart cleanup scheduler", err)
	}
	defer cleanupScheduler.Stop()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
