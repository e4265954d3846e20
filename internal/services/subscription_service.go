package services

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/catalog"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionService holds the tenant-initiated operations: trial, purchase,
// plan change and cancellation.
type SubscriptionService struct {
	plans    *catalog.Registry
	store    *SubscriptionStore
	notifier Notifier
	policy   lifecycle.Policy
	clock    func() time.Time
}

func NewSubscriptionService(plans *catalog.Registry, store *SubscriptionStore, notifier Notifier, policy lifecycle.Policy) *SubscriptionService {
	return &SubscriptionService{
		plans:    plans,
		store:    store,
		notifier: notifier,
		policy:   policy,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Current returns the tenant's current subscription record.
func (s *SubscriptionService) Current(ctx context.Context, tenantID uuid.UUID) (lifecycle.Record, error) {
	row, err := s.store.Current(ctx, tenantID)
	if err != nil {
		return lifecycle.Record{}, err
	}
	return row.ToRecord(), nil
}

// StartTrial opens a trial on planID. Only tenants that never had a
// subscription are eligible.
func (s *SubscriptionService) StartTrial(ctx context.Context, tenantID uuid.UUID, planID string) (lifecycle.Record, error) {
	plan, err := s.plans.Snapshot(planID)
	if err != nil {
		return lifecycle.Record{}, err
	}

	rec := lifecycle.NewTrial(tenantID, plan, s.clock(), s.policy)
	err = s.store.Insert(ctx, rec, "tenant.trial", func(_ *gorm.DB, prev *lifecycle.Record) error {
		if prev != nil {
			return lifecycle.ErrTrialUnavailable
		}
		return nil
	})
	if err != nil {
		return lifecycle.Record{}, err
	}
	return rec, nil
}

// Purchase creates a pending_payment subscription on planID together with
// its initial payment request. Tenants with a live subscription pay through
// payment requests against it instead.
func (s *SubscriptionService) Purchase(ctx context.Context, tenantID uuid.UUID, planID string) (lifecycle.Record, *models.PaymentRequest, error) {
	plan, err := s.plans.Snapshot(planID)
	if err != nil {
		return lifecycle.Record{}, nil, err
	}
	if plan.Price <= 0 {
		return lifecycle.Record{}, nil, lifecycle.ErrInvalidAmount
	}

	rec, draft := lifecycle.NewPendingPurchase(tenantID, plan, s.clock(), s.policy)
	var req *models.PaymentRequest
	err = s.store.Insert(ctx, rec, "tenant.purchase", func(tx *gorm.DB, prev *lifecycle.Record) error {
		if prev != nil && prev.Status.IsLive() {
			return lifecycle.ErrSubscriptionAlreadyExists
		}
		var err error
		req, err = createRequest(tx, draft)
		return err
	})
	if err != nil {
		return lifecycle.Record{}, nil, err
	}
	return rec, req, nil
}

// ChangeResult is the outcome of ChangePlan.
type ChangeResult struct {
	Record  lifecycle.Record
	Charge  int64
	Request *models.PaymentRequest
}

// ChangePlan swaps the tenant's plan. An upgrade mid-period opens a
// proration payment request in the same transaction.
func (s *SubscriptionService) ChangePlan(ctx context.Context, tenantID uuid.UUID, planID string) (*ChangeResult, error) {
	plan, err := s.plans.Snapshot(planID)
	if err != nil {
		return nil, err
	}

	var res ChangeResult
	var intents []lifecycle.Intent
	rec, err := s.store.Mutate(ctx, tenantID, "tenant.change_plan", func(tx *gorm.DB, rec lifecycle.Record) (lifecycle.Record, error) {
		res, intents = ChangeResult{}, nil
		if rec.Plan.PlanID == plan.PlanID {
			return rec, nil
		}
		change, err := lifecycle.ChangePlan(rec, plan, s.clock())
		if err != nil {
			return rec, err
		}
		res.Charge = change.Charge
		intents = change.Intents
		if change.Draft != nil {
			if res.Request, err = createRequest(tx, *change.Draft); err != nil {
				return rec, err
			}
		}
		return change.Record, nil
	})
	if err != nil {
		return nil, err
	}

	res.Record = rec
	s.notifier.Enqueue(intents...)
	return &res, nil
}

// Cancel cancels the tenant's current subscription. Canceling twice is a
// no-op.
func (s *SubscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID) (lifecycle.Record, error) {
	var intents []lifecycle.Intent
	rec, err := s.store.Mutate(ctx, tenantID, "tenant.cancel", func(_ *gorm.DB, rec lifecycle.Record) (lifecycle.Record, error) {
		var next lifecycle.Record
		next, intents = lifecycle.Cancel(rec, s.clock())
		return next, nil
	})
	if err != nil {
		return lifecycle.Record{}, err
	}
	s.notifier.Enqueue(intents...)
	return rec, nil
}
