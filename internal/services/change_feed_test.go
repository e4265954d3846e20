package services

import (
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisChangeFeedDeliversCommittedChanges(t *testing.T) {
	_, client := newMiniRedis(t)
	feed := NewRedisChangeFeed(client)

	changes, err := feed.Subscribe(t.Context())
	require.NoError(t, err)

	f := newFixture(t, date(2025, 3, 15))
	f.store = NewSubscriptionStore(f.db, NewLocalLocker(), feed)
	f.subs = NewSubscriptionService(f.plans, f.store, f.notifier, f.policy)

	rec := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))
	_, err = f.subs.Cancel(t.Context(), rec.TenantID)
	require.NoError(t, err)

	var got []SubscriptionChange
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case c := <-changes:
			got = append(got, c)
		case <-timeout:
			t.Fatalf("received %d changes, want 2", len(got))
		}
	}

	assert.Equal(t, lifecycle.StatusActive, got[0].Status)
	assert.Equal(t, "test", got[0].Source)
	assert.Equal(t, rec.TenantID, got[1].TenantID)
	assert.Equal(t, lifecycle.StatusActive, got[1].From)
	assert.Equal(t, lifecycle.StatusCanceled, got[1].Status)
	assert.Equal(t, "tenant.cancel", got[1].Source)
}
