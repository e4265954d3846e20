package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/bootstrap"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/config"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/database"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/logging"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/routes"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBDriver != "sqlite" && cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET not set, stripe webhooks will be refused")
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.StdoutHandler(),
		dbLogHandler,
	)))

	// Retention for logs and webhook markers
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cfg.EventMarkerTTL, cleanupDone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Services
	billing, err := bootstrap.New(ctx, cfg, database.DB)
	if err != nil {
		slog.Error("service wiring failed", "error", err)
		os.Exit(1)
	}
	// Delivery outlives ctx so intents queued during shutdown still go out.
	billing.Dispatcher.Start(context.Background())

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: cfg.IsProduction(),
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, routes.Handlers{
		Health:       handlers.NewHealthHandler(database.DB, billing.Redis, billing.Plans),
		Webhook:      handlers.NewWebhookHandler(billing.Reconciler, cfg.StripeWebhookSecret),
		Subscription: handlers.NewSubscriptionHandler(billing.Subscriptions, billing.Scheduler),
		Payment:      handlers.NewPaymentHandler(billing.Ledger, billing.Subscriptions),
		Admin:        handlers.NewAdminHandler(billing.Scheduler),
		Plan:         handlers.NewPlanHandler(billing.Plans),
	})

	// Scheduler
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		slog.Info("scheduler starting", "interval", cfg.SchedulerInterval.String())
		billing.Scheduler.Run(ctx, cfg.SchedulerInterval)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	<-schedulerDone
	billing.Close()

	close(cleanupDone)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
