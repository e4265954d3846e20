package services

import (
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testReminderLogClaimOnce(t *testing.T, log ReminderLog) {
	t.Helper()
	ctx := t.Context()
	tenantID := uuid.New()
	in := lifecycle.Intent{TenantID: tenantID, ThresholdDays: 7, Reason: lifecycle.ReasonTrialEnding}

	sent, err := log.SentOn(ctx, tenantID, "2025-03-15")
	require.NoError(t, err)
	assert.False(t, sent)

	ok, err := log.Claim(ctx, tenantID, "2025-03-15", in)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.Claim(ctx, tenantID, "2025-03-15", in)
	require.NoError(t, err)
	assert.False(t, ok, "second claim on the same day must lose")

	sent, err = log.SentOn(ctx, tenantID, "2025-03-15")
	require.NoError(t, err)
	assert.True(t, sent)

	ok, err = log.Claim(ctx, tenantID, "2025-03-16", in)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGormReminderLog(t *testing.T) {
	testReminderLogClaimOnce(t, NewGormReminderLog(openTestDB(t)))
}

func TestRedisReminderLog(t *testing.T) {
	mr, client := newMiniRedis(t)
	testReminderLogClaimOnce(t, NewRedisReminderLog(client))

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	assert.Positive(t, mr.TTL(keys[0]))
}

func TestReminderServiceOncePerCalendarDay(t *testing.T) {
	kigali, err := time.LoadLocation("Africa/Kigali")
	if err != nil {
		kigali = time.FixedZone("CAT", 2*60*60)
	}

	// 20:00 UTC is 22:00 in Kigali.
	now := time.Date(2025, 3, 15, 20, 0, 0, 0, time.UTC)
	trialEnd := now.AddDate(0, 0, 7)
	rec := lifecycle.Record{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Status:   lifecycle.StatusTrialing,
		TrialEnd: &trialEnd,
	}

	_, client := newMiniRedis(t)
	svc := NewReminderService(NewRedisReminderLog(client), kigali)

	in, ok, err := svc.Evaluate(t.Context(), rec, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lifecycle.ReasonTrialEnding, in.Reason)
	assert.Equal(t, 7, in.ThresholdDays)

	_, ok, err = svc.Evaluate(t.Context(), rec, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "same Kigali day")

	_, ok, err = svc.Evaluate(t.Context(), rec, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok, "past midnight in Kigali")

	utc := NewReminderService(NewGormReminderLog(openTestDB(t)), time.UTC)
	_, ok, err = utc.Evaluate(t.Context(), rec, now)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = utc.Evaluate(t.Context(), rec, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "still the same UTC day")
}
