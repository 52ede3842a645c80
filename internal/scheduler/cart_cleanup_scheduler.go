package scheduler

import (
	"time"

	"github.com/minshop/minshop-backend/internal/app/repository"
	"github.com/minshop/minshop-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CartCleanupScheduler removes cart lines that have not been touched
// within the configured TTL. Carts themselves are never deleted.
type CartCleanupScheduler struct {
	cron     *cron.Cron
	cartRepo repository.CartRepository
	ttl      time.Duration
}

func NewCartCleanupScheduler(cartRepo repository.CartRepository, ttl time.Duration) *CartCleanupScheduler {
	return &CartCleanupScheduler{
		cron:     cron.New(),
		cartRepo: cartRepo,
		ttl:      ttl,
	}
}

// Start schedules the cleanup to run daily at 4 AM.
func (s *CartCleanupScheduler) Start() error {
	_, err := s.cron.AddFunc("0 4 * * *", s.run)
	if err != nil {
		logger.Error("Failed to add cron job for cart cleanup", err)
		return err
	}

	s.cron.Start()
	logger.Info("Cart cleanup scheduler started", map[string]interface{}{
		"ttl": s.ttl.String(),
	})
	return nil
}

func (s *CartCleanupScheduler) run() {
	cutoff := time.Now().Add(-s.ttl)
	logger.Info("Starting scheduled stale cart item cleanup", map[string]interface{}{
		"cutoff": cutoff.Format(time.RFC3339),
	})

	deleted, err := s.cartRepo.DeleteStaleItems(cutoff)
	if err != nil {
		logger.Error("Stale cart item cleanup failed", err)
		return
	}

	logger.Info("Stale cart item cleanup completed", map[string]interface{}{
		"deleted_items": deleted,
	})
}

func (s *CartCleanupScheduler) Stop() {
	s.cron.Stop()
	logger.Info("Cart cleanup scheduler stopped", nil)
}
