package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/catalog"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	plans *catalog.Registry
}

// NewHealthHandler builds the health probe. redisClient may be nil when the
// deployment runs without Redis.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, plans *catalog.Registry) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, plans: plans}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}
	if dbStatus != "ok" {
		status = "degraded"
	}

	var redisStatus string
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy: " + err.Error()
			status = "degraded"
		}
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Redis:     redisStatus,
		PlanCount: len(h.plans.All()),
	})
}
