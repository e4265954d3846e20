package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT (issued by the tenant app)
	JWTSecret string

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
	AppEnv      string
	SentryDSN   string

	// Payment provider
	StripeWebhookSecret string

	// Redis (optional: distributed locks, reminder markers, change feed)
	RedisURL string

	// Lifecycle policy
	GraceWindowDays    int
	TrialDays          int
	PendingPaymentDays int
	RenewalLeadDays    int
	BillingTimezone    string

	// Scheduler
	SchedulerInterval    time.Duration
	SchedulerConcurrency int

	// Notification delivery
	NotifyWebhookURL    string
	NotifyWebhookSecret string
	NotifyQueueSize     int
	NotifyWorkers       int

	// Plan catalog
	PlansConfigPath string

	// Retention
	LogRetentionDays int
	EventMarkerTTL   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "menu_billing"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "billing.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppEnv:      getEnv("APP_ENV", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		GraceWindowDays:    parseInt(getEnv("GRACE_WINDOW_DAYS", "7"), 7),
		TrialDays:          parseInt(getEnv("TRIAL_DAYS", "14"), 14),
		PendingPaymentDays: parseInt(getEnv("PENDING_PAYMENT_DAYS", "7"), 7),
		RenewalLeadDays:    parseInt(getEnv("RENEWAL_LEAD_DAYS", "7"), 7),
		BillingTimezone:    getEnv("BILLING_TIMEZONE", "UTC"),

		SchedulerInterval:    parseDuration(getEnv("SCHEDULER_INTERVAL", "5m")),
		SchedulerConcurrency: parseInt(getEnv("SCHEDULER_CONCURRENCY", "8"), 8),

		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		NotifyQueueSize:     parseInt(getEnv("NOTIFY_QUEUE_SIZE", "256"), 256),
		NotifyWorkers:       parseInt(getEnv("NOTIFY_WORKERS", "2"), 2),

		PlansConfigPath: getEnv("PLANS_CONFIG_PATH", ""),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
		EventMarkerTTL:   parseDuration(getEnv("EVENT_MARKER_TTL", "720h")),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// Policy returns the lifecycle windows configured for this deployment.
func (c *Config) Policy() lifecycle.Policy {
	return lifecycle.Policy{
		GraceWindowDays:    c.GraceWindowDays,
		TrialDays:          c.TrialDays,
		PendingPaymentDays: c.PendingPaymentDays,
	}
}

// Location is the zone that defines a calendar day for reminders.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		slog.Warn("unknown billing timezone, using UTC", "timezone", c.BillingTimezone, "error", err)
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
