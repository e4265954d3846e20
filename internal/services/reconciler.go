package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reconciler applies authenticated provider events to subscriptions exactly
// once per event id.
type Reconciler struct {
	db       *gorm.DB
	store    *SubscriptionStore
	notifier Notifier
	policy   lifecycle.Policy
	clock    func() time.Time
}

func NewReconciler(db *gorm.DB, store *SubscriptionStore, notifier Notifier, policy lifecycle.Policy) *Reconciler {
	return &Reconciler{
		db:       db,
		store:    store,
		notifier: notifier,
		policy:   policy,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply reconciles ev. Unresolvable tenants are logged and reported as
// OutcomeUnresolved without an error so the provider stops retrying.
func (r *Reconciler) Apply(ctx context.Context, ev lifecycle.ProviderEvent) (lifecycle.Outcome, error) {
	if ev.ID == "" {
		return "", errors.New("provider event has no id")
	}

	outcome, err := r.apply(ctx, ev)
	if err != nil {
		return "", err
	}
	metrics.WebhookEvents.WithLabelValues(string(ev.Kind), string(outcome)).Inc()
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, ev lifecycle.ProviderEvent) (lifecycle.Outcome, error) {
	seen, err := r.processed(ctx, ev.ID)
	if err != nil {
		return "", err
	}
	if seen {
		return lifecycle.OutcomeDuplicate, nil
	}

	tenantID, err := r.resolveTenant(ctx, ev)
	if errors.Is(err, lifecycle.ErrUnresolvedTenant) {
		r.warnUnresolved(ev)
		return lifecycle.OutcomeUnresolved, nil
	}
	if err != nil {
		return "", err
	}

	var outcome lifecycle.Outcome
	var intents []lifecycle.Intent
	_, err = r.store.Mutate(ctx, tenantID, "webhook."+string(ev.Kind), func(tx *gorm.DB, rec lifecycle.Record) (lifecycle.Record, error) {
		intents = nil
		var n int64
		if err := tx.Model(&models.ProcessedEvent{}).Where("event_id = ?", ev.ID).Count(&n).Error; err != nil {
			return rec, err
		}
		if n > 0 {
			outcome = lifecycle.OutcomeDuplicate
			return rec, nil
		}

		now := r.clock()
		next, in, oc := lifecycle.ApplyProviderEvent(rec, ev, now, r.policy)
		outcome, intents = oc, in
		marker := &models.ProcessedEvent{
			EventID:     ev.ID,
			Kind:        string(ev.Kind),
			TenantID:    &tenantID,
			Outcome:     string(oc),
			ProcessedAt: now,
		}
		if err := tx.Create(marker).Error; err != nil {
			return rec, fmt.Errorf("record processed event: %w", err)
		}
		return next, nil
	})
	switch {
	case errors.Is(err, lifecycle.ErrSubscriptionNotFound):
		r.warnUnresolved(ev)
		return lifecycle.OutcomeUnresolved, nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return lifecycle.OutcomeDuplicate, nil
	case err != nil:
		return "", err
	}

	r.notifier.Enqueue(intents...)
	return outcome, nil
}

func (r *Reconciler) processed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedEvent{}).Where("event_id = ?", eventID).Count(&n).Error
	return n > 0, err
}

// resolveTenant tries the provider subscription reference, then the
// customer reference, then the tenant hint carried in metadata.
func (r *Reconciler) resolveTenant(ctx context.Context, ev lifecycle.ProviderEvent) (uuid.UUID, error) {
	db := r.db.WithContext(ctx)
	lookups := []struct {
		column string
		value  string
	}{
		{"external_subscription_ref", ev.SubscriptionRef},
		{"external_customer_ref", ev.CustomerRef},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		var sub models.Subscription
		err := db.Select("tenant_id").Where(l.column+" = ?", l.value).Order("created_at DESC").First(&sub).Error
		if err == nil {
			return sub.TenantID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, err
		}
	}
	if ev.TenantHint != uuid.Nil {
		return ev.TenantHint, nil
	}
	return uuid.Nil, lifecycle.ErrUnresolvedTenant
}

func (r *Reconciler) warnUnresolved(ev lifecycle.ProviderEvent) {
	slog.Warn("provider event matches no tenant",
		"event_id", ev.ID,
		"action", string(ev.Kind),
		"customer_ref", ev.CustomerRef,
		"subscription_ref", ev.SubscriptionRef,
	)
}
