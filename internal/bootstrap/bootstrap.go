// Package bootstrap wires the billing services from configuration. The HTTP
// server and the ops CLI share it so both run against the same stack.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/catalog"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/config"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const lockLease = 30 * time.Second

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client // nil without REDIS_URL
	Feed   *services.RedisChangeFeed

	Plans         *catalog.Registry
	Dispatcher    *services.Dispatcher
	Store         *services.SubscriptionStore
	Ledger        *services.LedgerService
	Subscriptions *services.SubscriptionService
	Reconciler    *services.Reconciler
	Reminders     *services.ReminderService
	Scheduler     *services.Scheduler
}

// New builds every service on top of db. With REDIS_URL set, tenant locks,
// reminder markers and the change feed live in Redis; otherwise they fall
// back to in-process and SQL implementations.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	plans, err := catalog.Load(cfg.PlansConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load plan catalog: %w", err)
	}
	slog.Info("plan catalog loaded", "plans", len(plans.All()))

	a := &App{Config: cfg, DB: db, Plans: plans}

	var (
		locker      services.Locker      = services.NewLocalLocker()
		feed        services.ChangeFeed  = services.NopChangeFeed{}
		reminderLog services.ReminderLog = services.NewGormReminderLog(db)
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Redis = client
		a.Feed = services.NewRedisChangeFeed(client)
		locker = services.NewRedisLocker(client, lockLease)
		feed = a.Feed
		reminderLog = services.NewRedisReminderLog(client)
		slog.Info("redis connected", "addr", opts.Addr)
	}

	var sender services.Sender = services.LogSender{}
	if cfg.NotifyWebhookURL != "" {
		sender = services.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret)
	}
	a.Dispatcher = services.NewDispatcher(sender, cfg.NotifyQueueSize, cfg.NotifyWorkers)

	policy := cfg.Policy()
	a.Store = services.NewSubscriptionStore(db, locker, feed)
	a.Ledger = services.NewLedgerService(db, a.Store, a.Dispatcher, policy, cfg.RenewalLeadDays)
	a.Subscriptions = services.NewSubscriptionService(plans, a.Store, a.Dispatcher, policy)
	a.Reconciler = services.NewReconciler(db, a.Store, a.Dispatcher, policy)
	a.Reminders = services.NewReminderService(reminderLog, cfg.Location())
	a.Scheduler = services.NewScheduler(a.Store, a.Ledger, a.Reminders, a.Dispatcher, policy, cfg.SchedulerConcurrency)
	return a, nil
}

// Close drains queued notifications and releases the Redis client.
func (a *App) Close() {
	a.Dispatcher.Stop()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
}
