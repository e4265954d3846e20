package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/tenant"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxConflictRetries = 4

// MutateFunc computes the next record from the current one inside the
// write transaction. It may write related rows through tx. It can run more
// than once when a conflicting write forces a retry.
type MutateFunc func(tx *gorm.DB, rec lifecycle.Record) (lifecycle.Record, error)

// SubscriptionStore is the single write path for subscription rows. Writes
// for a tenant are serialized by the Locker and checked against the row
// version, so a concurrent writer can never be silently overwritten.
type SubscriptionStore struct {
	db     *gorm.DB
	locker Locker
	feed   ChangeFeed
}

func NewSubscriptionStore(db *gorm.DB, locker Locker, feed ChangeFeed) *SubscriptionStore {
	if feed == nil {
		feed = NopChangeFeed{}
	}
	return &SubscriptionStore{db: db, locker: locker, feed: feed}
}

// Current returns the tenant's most recently created subscription.
func (s *SubscriptionStore) Current(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return currentRow(s.db.WithContext(ctx), tenantID, false)
}

// History returns every subscription the tenant ever had, newest first.
func (s *SubscriptionStore) History(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := s.db.WithContext(ctx).
		Scopes(tenant.ForTenant(tenantID), tenant.Latest).
		Find(&rows).Error
	return rows, err
}

// TenantsWithLiveSubscriptions lists tenants that time-driven transitions may
// still affect.
func (s *SubscriptionStore) TenantsWithLiveSubscriptions(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status NOT IN ?", []string{"canceled", "cancelled", "expired", "incomplete_expired", "paused"}).
		Distinct().
		Pluck("tenant_id", &ids).Error
	return ids, err
}

// Mutate runs fn against the tenant's current record and persists the
// result with a version check, retrying with backoff on conflict.
func (s *SubscriptionStore) Mutate(ctx context.Context, tenantID uuid.UUID, source string, fn MutateFunc) (lifecycle.Record, error) {
	unlock, err := s.locker.Lock(ctx, tenantID.String())
	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("lock tenant: %w", err)
	}
	defer unlock()

	var before, after lifecycle.Record
	var changed bool
	op := func() error {
		changed = false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row, err := currentRow(tx, tenantID, true)
			if err != nil {
				return backoff.Permanent(err)
			}
			before = row.ToRecord()

			next, err := fn(tx, before)
			if err != nil {
				return backoff.Permanent(err)
			}
			after = next
			if reflect.DeepEqual(before, next) {
				return nil
			}
			changed = true
			return writeVersioned(tx, row, next)
		})
	}

	notify := func(err error, wait time.Duration) {
		metrics.ConflictRetries.Inc()
		slog.Warn("subscription write conflict, retrying",
			"tenant_id", tenantID.String(), "action", source, "wait_ms", wait.Milliseconds())
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newConflictBackOff(), maxConflictRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return lifecycle.Record{}, err
	}

	if changed {
		s.committed(ctx, before, after, source)
	}
	return after, nil
}

// Insert creates rec as the tenant's new current subscription. check sees
// the previous current record (nil when none) and may veto the insert or
// write related rows in the same transaction.
func (s *SubscriptionStore) Insert(ctx context.Context, rec lifecycle.Record, source string, check func(tx *gorm.DB, prev *lifecycle.Record) error) error {
	unlock, err := s.locker.Lock(ctx, rec.TenantID.String())
	if err != nil {
		return fmt.Errorf("lock tenant: %w", err)
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev *lifecycle.Record
		row, err := currentRow(tx, rec.TenantID, true)
		switch {
		case err == nil:
			r := row.ToRecord()
			prev = &r
		case !errors.Is(err, lifecycle.ErrSubscriptionNotFound):
			return err
		}

		if err := tx.Create(models.NewSubscription(rec)).Error; err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		if check != nil {
			return check(tx, prev)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.committed(ctx, lifecycle.Record{}, rec, source)
	return nil
}

func (s *SubscriptionStore) committed(ctx context.Context, before, after lifecycle.Record, source string) {
	if before.Status != after.Status {
		metrics.Transitions.WithLabelValues(source, string(after.Status)).Inc()
		slog.Info("subscription transition",
			"tenant_id", after.TenantID.String(),
			"subscription_id", after.ID.String(),
			"action", source,
			"from", string(before.Status),
			"to", string(after.Status),
		)
	}
	s.feed.Publish(ctx, SubscriptionChange{
		TenantID:       after.TenantID,
		SubscriptionID: after.ID,
		From:           before.Status,
		Status:         after.Status,
		Source:         source,
		At:             time.Now().UTC(),
	})
}

func writeVersioned(tx *gorm.DB, row *models.Subscription, next lifecycle.Record) error {
	version := row.Version
	row.ApplyRecord(next)
	row.Version = version + 1

	res := tx.Model(row).
		Where("version = ?", version).
		Select("*").
		Omit("ID", "TenantID", "CreatedAt").
		Updates(row)
	if res.Error != nil {
		return backoff.Permanent(fmt.Errorf("update subscription: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return lifecycle.ErrConcurrentModification
	}
	return nil
}

func currentRow(tx *gorm.DB, tenantID uuid.UUID, lock bool) (*models.Subscription, error) {
	q := tx.Scopes(tenant.ForTenant(tenantID), tenant.Latest)
	if lock {
		q = forUpdate(q)
	}
	var row models.Subscription
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lifecycle.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &row, nil
}

// forUpdate adds a row lock where the dialect supports one. SQLite
// serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func newConflictBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}
