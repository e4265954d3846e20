package services

import (
	"testing"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingRecord(f *fixture, t *testing.T) lifecycle.Record {
	t.Helper()
	due := f.now.AddDate(0, 0, 7)
	return f.insert(t, lifecycle.Record{
		Plan:             f.plan(t, "pro"),
		Status:           lifecycle.StatusPendingPayment,
		NextBillingDate:  &due,
		ActivationSource: lifecycle.SourceManual,
	})
}

func draftFor(rec lifecycle.Record, kind lifecycle.RequestKind, p lifecycle.Period) lifecycle.PaymentDraft {
	return lifecycle.PaymentDraft{
		TenantID:       rec.TenantID,
		SubscriptionID: rec.ID,
		Kind:           kind,
		Amount:         rec.Plan.Price,
		Period:         p,
	}
}

func TestApproveActivatesSubscription(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)

	january := lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 1, 31)}
	req, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial, january))
	require.NoError(t, err)
	assert.EqualValues(t, 20000, req.Amount)
	assert.Equal(t, "RWF", req.Currency)
	assert.Equal(t, string(lifecycle.RequestPending), req.Status)

	decision, err := f.ledger.Decide(t.Context(), req.ID, "admin@example.com", true, "bank slip ok")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusActive, decision.Status)
	assert.Equal(t, string(lifecycle.RequestApproved), decision.Request.Status)
	assert.Equal(t, "admin@example.com", decision.Request.VerifiedBy)
	require.NotNil(t, decision.Request.DecidedAt)

	row := f.current(t, rec.TenantID)
	assert.Equal(t, string(lifecycle.StatusActive), row.Status)
	assert.Equal(t, string(lifecycle.SourceManual), row.ActivationSource)
	require.NotNil(t, row.CurrentPeriodEnd)
	assert.True(t, row.CurrentPeriodEnd.Equal(date(2025, 1, 31)))
	assert.Contains(t, f.notifier.reasons(), lifecycle.ReasonPaymentApplied)

	_, err = f.ledger.Decide(t.Context(), req.ID, "admin@example.com", true, "")
	require.ErrorIs(t, err, lifecycle.ErrAlreadyFinalized)
	_, err = f.ledger.Decide(t.Context(), req.ID, "admin@example.com", false, "")
	require.ErrorIs(t, err, lifecycle.ErrAlreadyFinalized)
}

func TestRejectLeavesSubscriptionUntouched(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)

	req, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}))
	require.NoError(t, err)

	decision, err := f.ledger.Decide(t.Context(), req.ID, "admin", false, "unreadable proof")
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.RequestRejected), decision.Request.Status)
	assert.Equal(t, lifecycle.StatusPendingPayment, decision.Status)
	assert.Equal(t, string(lifecycle.StatusPendingPayment), f.current(t, rec.TenantID).Status)
}

func TestSubmitRejectsOverlapWithApprovedPeriod(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)

	req, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 1, 31)}))
	require.NoError(t, err)
	_, err = f.ledger.Decide(t.Context(), req.ID, "admin", true, "")
	require.NoError(t, err)

	_, err = f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindRenewal,
		lifecycle.Period{Start: date(2025, 1, 15), End: date(2025, 2, 15)}))
	require.ErrorIs(t, err, lifecycle.ErrOverlappingPeriod)

	// Periods are half-open, so the adjacent period is accepted.
	_, err = f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindRenewal,
		lifecycle.Period{Start: date(2025, 1, 31), End: date(2025, 3, 3)}))
	require.NoError(t, err)
}

func TestApproveRechecksOverlap(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)

	a, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}))
	require.NoError(t, err)
	b, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 10), End: date(2025, 2, 10)}))
	require.NoError(t, err)

	_, err = f.ledger.Decide(t.Context(), a.ID, "admin", true, "")
	require.NoError(t, err)
	_, err = f.ledger.Decide(t.Context(), b.ID, "admin", true, "")
	require.ErrorIs(t, err, lifecycle.ErrOverlappingPeriod)

	got, err := f.ledger.Get(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.RequestPending), got.Status)
}

func TestFailedApprovalKeepsRequestPending(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)
	req, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}))
	require.NoError(t, err)

	_, err = f.subs.Cancel(t.Context(), rec.TenantID)
	require.NoError(t, err)

	_, err = f.ledger.Decide(t.Context(), req.ID, "admin", true, "")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	got, err := f.ledger.Get(t.Context(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.RequestPending), got.Status)
	assert.Empty(t, got.VerifiedBy)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)
	good := lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}

	_, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: good.End, End: good.Start}))
	assert.ErrorIs(t, err, lifecycle.ErrInvalidPeriod)

	zero := draftFor(rec, lifecycle.KindInitial, good)
	zero.Amount = 0
	_, err = f.ledger.Submit(t.Context(), zero)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidAmount)

	usd := draftFor(rec, lifecycle.KindInitial, good)
	usd.Currency = "USD"
	_, err = f.ledger.Submit(t.Context(), usd)
	assert.ErrorIs(t, err, lifecycle.ErrCurrencyMismatch)

	foreign := draftFor(rec, lifecycle.KindInitial, good)
	foreign.TenantID = uuid.New()
	_, err = f.ledger.Submit(t.Context(), foreign)
	assert.ErrorIs(t, err, lifecycle.ErrSubscriptionNotFound)
}

func TestMarkUnderReview(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)
	req, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}))
	require.NoError(t, err)

	_, err = f.ledger.MarkUnderReview(t.Context(), uuid.New(), req.ID, "momo-123")
	require.ErrorIs(t, err, lifecycle.ErrPaymentRequestNotFound)

	got, err := f.ledger.MarkUnderReview(t.Context(), rec.TenantID, req.ID, "momo-123")
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.RequestPendingApproval), got.Status)
	assert.Equal(t, "momo-123", got.ProofReference)

	_, err = f.ledger.MarkUnderReview(t.Context(), rec.TenantID, req.ID, "again")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.ledger.Decide(t.Context(), req.ID, "admin", true, "")
	require.NoError(t, err)
	_, err = f.ledger.MarkUnderReview(t.Context(), rec.TenantID, req.ID, "late")
	require.ErrorIs(t, err, lifecycle.ErrAlreadyFinalized)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t, date(2025, 1, 1))
	rec := pendingRecord(f, t)
	a, err := f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindInitial,
		lifecycle.Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}))
	require.NoError(t, err)
	_, err = f.ledger.Submit(t.Context(), draftFor(rec, lifecycle.KindRenewal,
		lifecycle.Period{Start: date(2025, 2, 1), End: date(2025, 3, 1)}))
	require.NoError(t, err)
	_, err = f.ledger.Decide(t.Context(), a.ID, "admin", false, "")
	require.NoError(t, err)

	pending, err := f.ledger.List(t.Context(), RequestFilter{Status: lifecycle.RequestPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, string(lifecycle.KindRenewal), pending[0].Kind)

	all, err := f.ledger.List(t.Context(), RequestFilter{TenantID: rec.TenantID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.ledger.List(t.Context(), RequestFilter{TenantID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEnsureRenewalRequestIsIdempotent(t *testing.T) {
	f := newFixture(t, date(2025, 3, 27))
	rec := f.activeManual(t, date(2025, 3, 1), date(2025, 4, 1))

	for i := 0; i < 2; i++ {
		_, err := f.scheduler.TickTenant(t.Context(), rec.TenantID, f.now)
		require.NoError(t, err)
	}

	var rows []models.PaymentRequest
	require.NoError(t, f.db.Where("subscription_id = ?", rec.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, string(lifecycle.KindRenewal), rows[0].Kind)
	assert.True(t, rows[0].PeriodStart.Equal(date(2025, 4, 1)))
	assert.True(t, rows[0].PeriodEnd.Equal(date(2025, 5, 1)))
	assert.EqualValues(t, 20000, rows[0].Amount)
}
