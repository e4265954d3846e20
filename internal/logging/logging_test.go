package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.SystemLog{}, &models.ProcessedEvent{}))
	return db
}

type countingHandler struct {
	level slog.Level
	n     int
}

func (c *countingHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= c.level
}

func (c *countingHandler) Handle(context.Context, slog.Record) error {
	c.n++
	return nil
}

func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return c }

func (c *countingHandler) WithGroup(string) slog.Handler { return c }

func TestDBHandler_PersistsErrorsOnly(t *testing.T) {
	db := openDB(t)
	h := NewDBHandler(db)
	log := slog.New(h).With("tenant_id", "t-1")

	log.Info("ignored")
	log.Error("tick failed", "action", "scheduler.tick", "error", "boom", "latency_ms", int64(42), "subscription_id", "s-1")
	h.Stop()

	var rows []models.SystemLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "tick failed", rows[0].Message)
	require.NotNil(t, rows[0].TenantID)
	assert.Equal(t, "t-1", *rows[0].TenantID)
	assert.Equal(t, "scheduler.tick", rows[0].Action)
	assert.Equal(t, 42, rows[0].LatencyMs)
	assert.Contains(t, string(rows[0].Extra), "subscription_id")
}

func TestMultiHandler_FansOut(t *testing.T) {
	info := &countingHandler{level: slog.LevelInfo}
	errOnly := &countingHandler{level: slog.LevelError}
	log := slog.New(NewMultiHandler(info, errOnly))

	log.Info("a")
	log.Error("b")

	assert.Equal(t, 2, info.n)
	assert.Equal(t, 1, errOnly.n)
}

func TestCleanup(t *testing.T) {
	db := openDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.Create(&[]models.SystemLog{
		{Timestamp: now.AddDate(0, 0, -40), Level: "ERROR", Message: "old"},
		{Timestamp: now, Level: "ERROR", Message: "new"},
	}).Error)
	require.NoError(t, db.Create(&[]models.ProcessedEvent{
		{EventID: "evt_old", Kind: "invoice_paid", Outcome: "applied", ProcessedAt: now.Add(-800 * time.Hour)},
		{EventID: "evt_new", Kind: "invoice_paid", Outcome: "applied", ProcessedAt: now},
	}).Error)

	Cleanup(db, now, 30, 720*time.Hour)

	var logs, markers int64
	db.Model(&models.SystemLog{}).Count(&logs)
	db.Model(&models.ProcessedEvent{}).Count(&markers)
	assert.Equal(t, int64(1), logs)
	assert.Equal(t, int64(1), markers)
}
