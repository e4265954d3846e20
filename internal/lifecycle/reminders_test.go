package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateReminder_Thresholds(t *testing.T) {
	for _, days := range []int{14, 7, 3, 1} {
		r := activeRecord(testNow.AddDate(0, 0, days))
		in, ok := EvaluateReminder(r, testNow, false)
		require.True(t, ok, days)
		assert.Equal(t, days, in.ThresholdDays)
		assert.Equal(t, ReasonRenewalDue, in.Reason)
		assert.Equal(t, r.TenantID, in.TenantID)
	}

	for _, days := range []int{15, 13, 8, 6, 4, 2} {
		r := activeRecord(testNow.AddDate(0, 0, days))
		_, ok := EvaluateReminder(r, testNow, false)
		assert.False(t, ok, days)
	}
}

func TestEvaluateReminder_TrialUsesTrialEnd(t *testing.T) {
	r := NewTrial(uuid.New(), monthly(10000), testNow.AddDate(0, 0, -11), DefaultPolicy())

	in, ok := EvaluateReminder(r, testNow, false)
	require.True(t, ok)
	assert.Equal(t, 3, in.ThresholdDays)
	assert.Equal(t, ReasonTrialEnding, in.Reason)
}

func TestEvaluateReminder_PartialDayCountsAsDay(t *testing.T) {
	r := activeRecord(testNow.AddDate(0, 0, 6).Add(time.Hour))

	in, ok := EvaluateReminder(r, testNow, false)
	require.True(t, ok)
	assert.Equal(t, 7, in.ThresholdDays)
}

func TestEvaluateReminder_AtMostOncePerDay(t *testing.T) {
	r := activeRecord(testNow.AddDate(0, 0, 7))
	loc := time.UTC
	notified := map[string]bool{}

	emitted := 0
	for i := 0; i < 10; i++ {
		now := testNow.Add(time.Duration(i) * time.Minute)
		key := CalendarDay(now, loc)
		if _, ok := EvaluateReminder(r, now, notified[key]); ok {
			emitted++
			notified[key] = true
		}
	}
	assert.Equal(t, 1, emitted)
}

func TestEvaluateReminder_SkipsOtherStatuses(t *testing.T) {
	for _, st := range []Status{StatusPastDue, StatusGracePeriod, StatusExpired, StatusCanceled, StatusPendingPayment} {
		r := activeRecord(testNow.AddDate(0, 0, 7))
		r.Status = st
		_, ok := EvaluateReminder(r, testNow, false)
		assert.False(t, ok, st)
	}
}

func TestCalendarDay(t *testing.T) {
	kigali, err := time.LoadLocation("Africa/Kigali")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	late := time.Date(2025, 3, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-15", CalendarDay(late, nil))
	assert.Equal(t, "2025-03-16", CalendarDay(late, kigali))
}
