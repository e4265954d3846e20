package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"gorm.io/gorm"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than
// retentionDays and idempotency markers older than markerTTL.
func StartCleanup(db *gorm.DB, retentionDays int, markerTTL time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				Cleanup(db, time.Now(), retentionDays, markerTTL)
			case <-done:
				return
			}
		}
	}()
}

// Cleanup performs one retention pass.
func Cleanup(db *gorm.DB, now time.Time, retentionDays int, markerTTL time.Duration) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.Error("log cleanup failed", "error", result.Error)
	} else if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}

	if markerTTL <= 0 {
		return
	}
	result = db.Where("processed_at < ?", now.Add(-markerTTL)).Delete(&models.ProcessedEvent{})
	if result.Error != nil {
		slog.Error("event marker cleanup failed", "error", result.Error)
	} else if result.RowsAffected > 0 {
		slog.Info("event marker cleanup completed", "deleted", result.RowsAffected)
	}
}
