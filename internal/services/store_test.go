package services

import (
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func bumpVersion(tx *gorm.DB, id uuid.UUID) error {
	return tx.Exec("UPDATE subscriptions SET version = version + 1 WHERE id = ?", id).Error
}

func TestMutateRetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	rec := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))

	attempts := 0
	out, err := f.store.Mutate(t.Context(), rec.TenantID, "test", func(tx *gorm.DB, r lifecycle.Record) (lifecycle.Record, error) {
		attempts++
		if attempts == 1 {
			// A concurrent writer lands between our read and our write.
			if err := bumpVersion(tx, r.ID); err != nil {
				return r, err
			}
		}
		next, _ := lifecycle.Cancel(r, f.now)
		return next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, lifecycle.StatusCanceled, out.Status)

	row := f.current(t, rec.TenantID)
	assert.Equal(t, string(lifecycle.StatusCanceled), row.Status)
	assert.EqualValues(t, 1, row.Version)
}

func TestMutateSurfacesConflictAfterRetries(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	rec := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))

	attempts := 0
	_, err := f.store.Mutate(t.Context(), rec.TenantID, "test", func(tx *gorm.DB, r lifecycle.Record) (lifecycle.Record, error) {
		attempts++
		if err := bumpVersion(tx, r.ID); err != nil {
			return r, err
		}
		next, _ := lifecycle.Cancel(r, f.now)
		return next, nil
	})
	require.ErrorIs(t, err, lifecycle.ErrConcurrentModification)
	assert.Equal(t, maxConflictRetries+1, attempts)
	assert.Equal(t, string(lifecycle.StatusActive), f.current(t, rec.TenantID).Status)
}

func TestMutateSkipsWriteWhenUnchanged(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	rec := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))

	_, err := f.store.Mutate(t.Context(), rec.TenantID, "test", func(_ *gorm.DB, r lifecycle.Record) (lifecycle.Record, error) {
		return r, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.current(t, rec.TenantID).Version)
}

func TestMutateErrorRollsBack(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	rec := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))

	boom := errors.New("boom")
	_, err := f.store.Mutate(t.Context(), rec.TenantID, "test", func(tx *gorm.DB, r lifecycle.Record) (lifecycle.Record, error) {
		if err := bumpVersion(tx, r.ID); err != nil {
			return r, err
		}
		return r, boom
	})
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, f.current(t, rec.TenantID).Version)
}

func TestMutateUnknownTenant(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	_, err := f.store.Mutate(t.Context(), uuid.New(), "test", func(_ *gorm.DB, r lifecycle.Record) (lifecycle.Record, error) {
		return r, nil
	})
	require.ErrorIs(t, err, lifecycle.ErrSubscriptionNotFound)
}

func TestInsertVetoRollsBack(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	first := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))

	second := lifecycle.NewTrial(first.TenantID, f.plan(t, "starter"), f.now, f.policy)
	err := f.store.Insert(t.Context(), second, "test", func(_ *gorm.DB, prev *lifecycle.Record) error {
		require.NotNil(t, prev)
		assert.Equal(t, first.ID, prev.ID)
		return lifecycle.ErrTrialUnavailable
	})
	require.ErrorIs(t, err, lifecycle.ErrTrialUnavailable)

	history, err := f.store.History(t.Context(), first.TenantID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTenantsWithLiveSubscriptions(t *testing.T) {
	f := newFixture(t, date(2025, 3, 15))
	live := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))
	gone := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))
	_, err := f.subs.Cancel(t.Context(), gone.TenantID)
	require.NoError(t, err)

	ids, err := f.store.TenantsWithLiveSubscriptions(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{live.TenantID}, ids)
}
