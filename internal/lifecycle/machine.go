package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

// maxSteps bounds the transition loop in AdvanceTime. The longest legal chain
// (trialing -> active -> past_due -> expired) is three steps.
const maxSteps = 8

// AdvanceTime applies every time-driven transition that is due at now and
// returns the resulting record with the intents the transitions produced.
// Applying it twice with the same now yields the same record.
func AdvanceTime(r Record, now time.Time, p Policy) (Record, []Intent) {
	out := normalize(r, p)
	var intents []Intent
	for i := 0; i < maxSteps; i++ {
		next, intent, changed := step(out, now, p)
		if !changed {
			break
		}
		out = next
		if intent != nil {
			intents = append(intents, *intent)
		}
	}
	return out, intents
}

func step(r Record, now time.Time, p Policy) (Record, *Intent, bool) {
	switch {
	case r.Status == StatusTrialing && r.TrialEnd != nil && !now.Before(*r.TrialEnd):
		end := *r.TrialEnd
		if !r.PaymentMethodOnFile {
			r.Status = StatusExpired
			r.NextBillingDate = nil
			in := newIntent(r, ReasonTrialExpired, end)
			return r, &in, true
		}
		periodEnd := r.Plan.Interval.AddTo(end)
		r.Status = StatusActive
		r.CurrentPeriodStart = ptr(end)
		r.CurrentPeriodEnd = ptr(periodEnd)
		r.NextBillingDate = ptr(periodEnd)
		r.ActivationSource = SourceProvider
		in := newIntent(r, ReasonTrialConverted, end)
		return r, &in, true

	case r.Status == StatusActive && r.CurrentPeriodEnd != nil && !now.Before(*r.CurrentPeriodEnd):
		r.Status = StatusPastDue
		r.GracePeriodEnd = ptr(p.GraceEnd(*r.CurrentPeriodEnd))
		in := newIntent(r, ReasonPaymentOverdue, *r.CurrentPeriodEnd)
		return r, &in, true

	case r.Status == StatusPastDue && r.GracePeriodEnd == nil && r.CurrentPeriodEnd != nil:
		r.Status = StatusGracePeriod
		r.GracePeriodEnd = ptr(p.GraceEnd(*r.CurrentPeriodEnd))
		in := newIntent(r, ReasonGraceStarted, now)
		in.ThresholdDays = p.GraceWindowDays
		return r, &in, true

	case r.Status.carriesGrace() && r.GracePeriodEnd != nil && !now.Before(*r.GracePeriodEnd):
		at := *r.GracePeriodEnd
		r.Status = StatusExpired
		r.GracePeriodEnd = nil
		r.NextBillingDate = nil
		in := newIntent(r, ReasonSubscriptionExpired, at)
		return r, &in, true

	case r.Status == StatusPendingPayment && r.NextBillingDate != nil && !now.Before(*r.NextBillingDate):
		at := *r.NextBillingDate
		r.Status = StatusExpired
		r.NextBillingDate = nil
		in := newIntent(r, ReasonSubscriptionExpired, at)
		return r, &in, true
	}
	return r, nil, false
}

// normalize repairs field combinations no transition can produce. It never
// fails: stale grace markers are cleared and mismatched ones recomputed.
func normalize(r Record, p Policy) Record {
	if !r.Status.Valid() {
		if st, ok := ParseStatus(string(r.Status)); ok {
			r.Status = st
		}
	}
	if !r.Status.carriesGrace() {
		r.GracePeriodEnd = nil
		return r
	}
	if r.CurrentPeriodEnd == nil {
		// Overdue without a period to be overdue against.
		r.Status = StatusExpired
		r.GracePeriodEnd = nil
		return r
	}
	want := p.GraceEnd(*r.CurrentPeriodEnd)
	switch {
	case r.Status == StatusGracePeriod && !sameInstant(r.GracePeriodEnd, want):
		r.GracePeriodEnd = ptr(want)
	case r.Status == StatusPastDue && r.GracePeriodEnd != nil && !sameInstant(r.GracePeriodEnd, want):
		r.GracePeriodEnd = ptr(want)
	}
	return r
}

// ApplyPaymentSuccess credits a paid period. It activates the record, extends
// the period end to the later of the current end and the covered end, and
// clears any grace marker. Calling it with the same period twice is a no-op
// on the second call.
func ApplyPaymentSuccess(r Record, covered Period, p Policy) (Record, []Intent, error) {
	if !covered.Valid() {
		return r, nil, ErrInvalidPeriod
	}
	if r.Status.IsTerminal() {
		return r, nil, ErrInvalidTransition
	}
	r = normalize(r, p)
	before := r

	extendsCurrent := r.Status == StatusActive && r.CurrentPeriodEnd != nil && !covered.Start.After(*r.CurrentPeriodEnd)
	if r.CurrentPeriodEnd == nil || covered.End.After(*r.CurrentPeriodEnd) {
		if !extendsCurrent || r.CurrentPeriodStart == nil {
			r.CurrentPeriodStart = ptr(covered.Start)
		}
		r.CurrentPeriodEnd = ptr(covered.End)
	}
	r.Status = StatusActive
	r.GracePeriodEnd = nil
	r.NextBillingDate = ptr(*r.CurrentPeriodEnd)

	if before.Status == StatusActive && sameInstant(before.CurrentPeriodEnd, *r.CurrentPeriodEnd) {
		return r, nil, nil
	}
	return r, []Intent{newIntent(r, ReasonPaymentApplied, covered.Start)}, nil
}

// ApplyPaymentFailure marks an active record past due. Every other status is
// left untouched, so a failure can never revive an expired or canceled record.
func ApplyPaymentFailure(r Record, at time.Time) (Record, []Intent) {
	if r.Status != StatusActive {
		return r, nil
	}
	r.Status = StatusPastDue
	r.GracePeriodEnd = nil
	return r, []Intent{newIntent(r, ReasonPaymentFailed, at)}
}

// PlanChange is the result of ChangePlan.
type PlanChange struct {
	Record  Record
	Charge  int64
	Draft   *PaymentDraft
	Intents []Intent
}

// ChangePlan swaps the plan snapshot, keeping the current period end. When
// the prorated delta is positive a proration payment draft is returned;
// downgrades produce no draft and no refund.
func ChangePlan(r Record, plan PlanSnapshot, now time.Time) (PlanChange, error) {
	switch r.Status {
	case StatusExpired, StatusCanceled:
		return PlanChange{Record: r}, ErrInvalidTransition
	}
	if r.Plan.Currency != "" && plan.Currency != r.Plan.Currency {
		return PlanChange{Record: r}, ErrCurrencyMismatch
	}

	var charge int64
	if r.Status != StatusTrialing && r.Status != StatusPendingPayment && r.CurrentPeriodEnd != nil {
		charge = Prorate(r.Plan, plan, now, *r.CurrentPeriodEnd)
	}

	r.Plan = plan
	change := PlanChange{
		Record:  r,
		Charge:  charge,
		Intents: []Intent{newIntent(r, ReasonPlanChanged, now)},
	}
	if charge > 0 {
		change.Draft = &PaymentDraft{
			TenantID:       r.TenantID,
			SubscriptionID: r.ID,
			Kind:           KindProration,
			Amount:         charge,
			Currency:       plan.Currency,
			Period:         Period{Start: now, End: *r.CurrentPeriodEnd},
			DueDate:        now,
		}
	}
	return change, nil
}

// NewTrial starts a trial on plan for tenantID.
func NewTrial(tenantID uuid.UUID, plan PlanSnapshot, now time.Time, p Policy) Record {
	end := now.AddDate(0, 0, p.TrialDays)
	return Record{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Plan:             plan,
		Status:           StatusTrialing,
		TrialStart:       ptr(now),
		TrialEnd:         ptr(end),
		NextBillingDate:  ptr(end),
		ActivationSource: SourceTrial,
	}
}

// NewPendingPurchase creates a record awaiting its first payment together
// with the initial payment draft covering one interval from now.
func NewPendingPurchase(tenantID uuid.UUID, plan PlanSnapshot, now time.Time, p Policy) (Record, PaymentDraft) {
	due := now.AddDate(0, 0, p.PendingPaymentDays)
	r := Record{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Plan:             plan,
		Status:           StatusPendingPayment,
		NextBillingDate:  ptr(due),
		ActivationSource: SourceManual,
	}
	return r, PaymentDraft{
		TenantID:       tenantID,
		SubscriptionID: r.ID,
		Kind:           KindInitial,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Period:         Period{Start: now, End: plan.Interval.AddTo(now)},
		DueDate:        due,
	}
}

// Cancel moves any non-canceled record to canceled. Canceling a canceled
// record returns it unchanged.
func Cancel(r Record, now time.Time) (Record, []Intent) {
	if r.Status.IsTerminal() {
		return r, nil
	}
	r.Status = StatusCanceled
	r.GracePeriodEnd = nil
	r.NextBillingDate = nil
	r.CanceledAt = ptr(now)
	return r, []Intent{newIntent(r, ReasonCanceled, now)}
}
