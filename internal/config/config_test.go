package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GRACE_WINDOW_DAYS", "")
	t.Setenv("SCHEDULER_INTERVAL", "")

	cfg := Load()

	assert.Equal(t, 7, cfg.GraceWindowDays)
	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, 5*time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 720*time.Hour, cfg.EventMarkerTTL)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GRACE_WINDOW_DAYS", "3")
	t.Setenv("TRIAL_DAYS", "30")
	t.Setenv("SCHEDULER_CONCURRENCY", "not-a-number")
	t.Setenv("SCHEDULER_INTERVAL", "90s")

	cfg := Load()

	p := cfg.Policy()
	assert.Equal(t, 3, p.GraceWindowDays)
	assert.Equal(t, 30, p.TrialDays)
	assert.Equal(t, 8, cfg.SchedulerConcurrency)
	assert.Equal(t, 90*time.Second, cfg.SchedulerInterval)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
