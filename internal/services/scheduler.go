package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Scheduler drives the time-based transitions, renewal requests and
// reminders for every tenant with a live subscription.
type Scheduler struct {
	store       *SubscriptionStore
	ledger      *LedgerService
	reminders   *ReminderService
	notifier    Notifier
	policy      lifecycle.Policy
	concurrency int
	clock       func() time.Time
}

func NewScheduler(store *SubscriptionStore, ledger *LedgerService, reminders *ReminderService, notifier Notifier, policy lifecycle.Policy, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		store:       store,
		ledger:      ledger,
		reminders:   reminders,
		notifier:    notifier,
		policy:      policy,
		concurrency: concurrency,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// TickReport summarizes one scheduler pass.
type TickReport struct {
	Tenants         int `json:"tenants"`
	Transitions     int `json:"transitions"`
	RenewalRequests int `json:"renewal_requests"`
	Reminders       int `json:"reminders"`
	Failed          int `json:"failed"`
}

// TenantTick is the result of processing one tenant.
type TenantTick struct {
	Record   lifecycle.Record
	Renewal  *models.PaymentRequest
	Reminder *lifecycle.Intent
	Intents  []lifecycle.Intent
}

// Tick processes all live tenants at now. A failing tenant is logged and
// reported without stopping the others.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	tenants, err := s.store.TenantsWithLiveSubscriptions(ctx)
	if err != nil {
		return TickReport{}, err
	}

	report := TickReport{Tenants: len(tenants)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			res, err := s.tick(gctx, tenantID, now, "scheduler.tick")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.reportFailure(tenantID, err)
				return nil
			}
			report.Transitions += countTransitions(res.Intents)
			if res.Renewal != nil {
				report.RenewalRequests++
			}
			if res.Reminder != nil {
				report.Reminders++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	slog.Info("scheduler tick completed",
		"tenants", report.Tenants,
		"transitions", report.Transitions,
		"failed", report.Failed,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return report, ctx.Err()
}

// TickTenant processes a single tenant at now.
func (s *Scheduler) TickTenant(ctx context.Context, tenantID uuid.UUID, now time.Time) (TenantTick, error) {
	return s.tick(ctx, tenantID, now, "scheduler.tick")
}

// Refresh brings the tenant's subscription up to date on read, so a
// dashboard never shows a state the scheduler has not caught up with yet.
func (s *Scheduler) Refresh(ctx context.Context, tenantID uuid.UUID) (TenantTick, error) {
	return s.tick(ctx, tenantID, s.clock(), "tenant.refresh")
}

func (s *Scheduler) tick(ctx context.Context, tenantID uuid.UUID, now time.Time, source string) (TenantTick, error) {
	var res TenantTick
	rec, err := s.store.Mutate(ctx, tenantID, source, func(tx *gorm.DB, rec lifecycle.Record) (lifecycle.Record, error) {
		next, intents := lifecycle.AdvanceTime(rec, now, s.policy)
		renewal, err := s.ledger.EnsureRenewalRequest(tx, next, now)
		if err != nil {
			return rec, err
		}
		res.Intents, res.Renewal = intents, renewal
		return next, nil
	})
	if err != nil {
		return res, err
	}
	res.Record = rec

	reminder, ok, err := s.reminders.Evaluate(ctx, rec, now)
	if err != nil {
		// Transitions already committed; their intents still go out.
		s.notifier.Enqueue(res.Intents...)
		return res, err
	}
	if ok {
		res.Reminder = &reminder
		res.Intents = append(res.Intents, reminder)
	}
	s.notifier.Enqueue(res.Intents...)
	return res, nil
}

// Run ticks immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx, s.clock()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("scheduler tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) reportFailure(tenantID uuid.UUID, err error) {
	slog.Error("tenant tick failed", "tenant_id", tenantID.String(), "action", "scheduler.tick", "error", err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("tenant_id", tenantID.String())
		sentry.CaptureException(err)
	})
}

func countTransitions(intents []lifecycle.Intent) int {
	n := 0
	for _, in := range intents {
		switch in.Reason {
		case lifecycle.ReasonTrialEnding, lifecycle.ReasonRenewalDue:
		default:
			n++
		}
	}
	return n
}
