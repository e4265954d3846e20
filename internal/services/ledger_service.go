package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService manages manual payment requests and their admin decisions.
type LedgerService struct {
	db       *gorm.DB
	store    *SubscriptionStore
	notifier Notifier
	policy   lifecycle.Policy
	leadDays int
	clock    func() time.Time
}

func NewLedgerService(db *gorm.DB, store *SubscriptionStore, notifier Notifier, policy lifecycle.Policy, leadDays int) *LedgerService {
	return &LedgerService{
		db:       db,
		store:    store,
		notifier: notifier,
		policy:   policy,
		leadDays: leadDays,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// RequestFilter narrows List. Zero values match everything.
type RequestFilter struct {
	Status   lifecycle.RequestStatus
	TenantID uuid.UUID
	Limit    int
}

// Decision is the outcome of Decide shown to the admin.
type Decision struct {
	Request *models.PaymentRequest `json:"request"`
	Status  lifecycle.Status       `json:"subscription_status"`
}

// Submit records a new pending request for draft.SubscriptionID.
func (s *LedgerService) Submit(ctx context.Context, draft lifecycle.PaymentDraft) (*models.PaymentRequest, error) {
	if !draft.Period.Valid() {
		return nil, lifecycle.ErrInvalidPeriod
	}
	if draft.Amount <= 0 {
		return nil, lifecycle.ErrInvalidAmount
	}

	var req *models.PaymentRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.Scopes(tenant.ForTenant(draft.TenantID)).First(&sub, "id = ?", draft.SubscriptionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.ErrSubscriptionNotFound
			}
			return err
		}
		if draft.Currency == "" {
			draft.Currency = sub.Currency
		}
		if draft.Currency != sub.Currency {
			return lifecycle.ErrCurrencyMismatch
		}
		if draft.DueDate.IsZero() {
			draft.DueDate = draft.Period.Start
		}

		var err error
		req, err = createRequest(tx, draft)
		return err
	})
	return req, err
}

// MarkUnderReview attaches the tenant's proof of payment and moves the
// request to pending_approval.
func (s *LedgerService) MarkUnderReview(ctx context.Context, tenantID, requestID uuid.UUID, proof string) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRequest(tx.Scopes(tenant.ForTenant(tenantID)), requestID, &req); err != nil {
			return err
		}
		next, err := lifecycle.MarkUnderReview(lifecycle.RequestStatus(req.Status))
		if err != nil {
			return err
		}
		req.Status = string(next)
		req.ProofReference = proof
		return tx.Model(&req).Select("status", "proof_reference").Updates(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Decide approves or rejects a request. On approval of a period-crediting
// request the owning subscription is activated in the same transaction as
// the ledger update, so one never commits without the other.
func (s *LedgerService) Decide(ctx context.Context, requestID uuid.UUID, verifier string, approve bool, notes string) (*Decision, error) {
	var req models.PaymentRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lifecycle.ErrPaymentRequestNotFound
		}
		return nil, err
	}
	if lifecycle.RequestStatus(req.Status).Terminal() {
		return nil, lifecycle.ErrAlreadyFinalized
	}

	var intents []lifecycle.Intent
	rec, err := s.store.Mutate(ctx, req.TenantID, "admin.decide", func(tx *gorm.DB, rec lifecycle.Record) (lifecycle.Record, error) {
		intents = nil
		if err := lockRequest(tx, requestID, &req); err != nil {
			return rec, err
		}
		next, err := lifecycle.Decide(lifecycle.RequestStatus(req.Status), approve)
		if err != nil {
			return rec, err
		}

		out := rec
		if next == lifecycle.RequestApproved && lifecycle.RequestKind(req.Kind).CreditsPeriod() {
			if req.SubscriptionID != rec.ID {
				return rec, fmt.Errorf("%w: request belongs to a superseded subscription", lifecycle.ErrInvalidTransition)
			}
			approved, err := approvedPeriods(tx, req.SubscriptionID, req.ID)
			if err != nil {
				return rec, err
			}
			if err := lifecycle.CheckOverlap(req.Period(), approved); err != nil {
				return rec, err
			}
			out, intents, err = lifecycle.ApplyPaymentSuccess(rec, req.Period(), s.policy)
			if err != nil {
				return rec, err
			}
			out.ActivationSource = lifecycle.SourceManual
		}

		decidedAt := s.clock()
		req.Status = string(next)
		req.VerifiedBy = verifier
		req.Notes = notes
		req.DecidedAt = &decidedAt
		if err := tx.Model(&req).Select("status", "verified_by", "notes", "decided_at").Updates(&req).Error; err != nil {
			return rec, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	decision := "rejected"
	if approve {
		decision = "approved"
	}
	metrics.PaymentDecisions.WithLabelValues(decision).Inc()
	s.notifier.Enqueue(intents...)

	return &Decision{Request: &req, Status: rec.Status}, nil
}

// EnsureRenewalRequest opens the renewal request for a manually billed
// subscription nearing its period end. It runs inside the caller's
// transaction and does nothing when a live request already covers the
// next period.
func (s *LedgerService) EnsureRenewalRequest(tx *gorm.DB, rec lifecycle.Record, now time.Time) (*models.PaymentRequest, error) {
	draft, ok := lifecycle.RenewalDraft(rec, now, s.leadDays)
	if !ok {
		return nil, nil
	}

	var n int64
	err := tx.Model(&models.PaymentRequest{}).
		Where("subscription_id = ? AND kind = ? AND period_start = ? AND status <> ?",
			rec.ID, string(lifecycle.KindRenewal), draft.Period.Start, string(lifecycle.RequestRejected)).
		Count(&n).Error
	if err != nil || n > 0 {
		return nil, err
	}

	req, err := createRequest(tx, draft)
	if errors.Is(err, lifecycle.ErrOverlappingPeriod) {
		return nil, nil
	}
	return req, err
}

func (s *LedgerService) Get(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	var req models.PaymentRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lifecycle.ErrPaymentRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *LedgerService) List(ctx context.Context, f RequestFilter) ([]models.PaymentRequest, error) {
	q := s.db.WithContext(ctx).Model(&models.PaymentRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.TenantID != uuid.Nil {
		q = q.Scopes(tenant.ForTenant(f.TenantID))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []models.PaymentRequest
	err := q.Scopes(tenant.Latest).Limit(limit).Find(&out).Error
	return out, err
}

func createRequest(tx *gorm.DB, draft lifecycle.PaymentDraft) (*models.PaymentRequest, error) {
	if draft.Kind.CreditsPeriod() {
		approved, err := approvedPeriods(tx, draft.SubscriptionID, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if err := lifecycle.CheckOverlap(draft.Period, approved); err != nil {
			return nil, err
		}
	}

	req := models.NewPaymentRequest(draft)
	if err := tx.Create(req).Error; err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}
	return req, nil
}

func approvedPeriods(tx *gorm.DB, subscriptionID, exclude uuid.UUID) ([]lifecycle.Period, error) {
	var rows []models.PaymentRequest
	err := tx.Where("subscription_id = ? AND status = ? AND kind IN ? AND id <> ?",
		subscriptionID,
		string(lifecycle.RequestApproved),
		[]string{string(lifecycle.KindInitial), string(lifecycle.KindRenewal)},
		exclude,
	).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	periods := make([]lifecycle.Period, len(rows))
	for i := range rows {
		periods[i] = rows[i].Period()
	}
	return periods, nil
}

func lockRequest(tx *gorm.DB, id uuid.UUID, into *models.PaymentRequest) error {
	if err := forUpdate(tx).First(into, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lifecycle.ErrPaymentRequestNotFound
		}
		return err
	}
	return nil
}
