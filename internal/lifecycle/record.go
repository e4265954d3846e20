package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

const day = 24 * time.Hour

// Source records which payment path last activated a subscription.
type Source string

const (
	SourceTrial    Source = "trial"
	SourceManual   Source = "manual"
	SourceProvider Source = "provider"
)

// Record is the state-machine view of one subscription. Functions in this
// package never mutate a Record passed to them; time pointers are replaced,
// not written through.
type Record struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Plan     PlanSnapshot
	Status   Status

	TrialStart         *time.Time
	TrialEnd           *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	NextBillingDate    *time.Time
	GracePeriodEnd     *time.Time
	CanceledAt         *time.Time

	PaymentMethodOnFile     bool
	ActivationSource        Source
	ExternalCustomerRef     string
	ExternalSubscriptionRef string
	ProviderSyncedAt        *time.Time
}

// ReferenceExpiry is the single instant that grace-period and reminder math
// is measured against: the trial end while trialing, otherwise the period end.
func (r Record) ReferenceExpiry() *time.Time {
	if r.Status.IsTrial() {
		return r.TrialEnd
	}
	return r.CurrentPeriodEnd
}

// DaysRemaining returns whole days left until the reference expiry, rounded up.
func (r Record) DaysRemaining(now time.Time) int64 {
	ref := r.ReferenceExpiry()
	if ref == nil {
		return 0
	}
	return DaysUntil(*ref, now)
}

// GraceDaysRemaining is the countdown shown while the record is overdue.
func (r Record) GraceDaysRemaining(now time.Time) int64 {
	if r.GracePeriodEnd == nil {
		return 0
	}
	return DaysUntil(*r.GracePeriodEnd, now)
}

// Period is a half-open billing interval [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the period has positive length.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && p.End.After(p.Start)
}

// Overlaps reports whether two periods share any instant.
func (p Period) Overlaps(o Period) bool {
	return p.Start.Before(o.End) && o.Start.Before(p.End)
}

// DaysUntil is the one definition of "days left": the ceiling of the
// remaining duration in days, never negative.
func DaysUntil(ref, now time.Time) int64 {
	d := ref.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int64(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

// Policy holds the tunable windows of the lifecycle.
type Policy struct {
	GraceWindowDays    int
	TrialDays          int
	PendingPaymentDays int
}

// DefaultPolicy mirrors the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		GraceWindowDays:    7,
		TrialDays:          14,
		PendingPaymentDays: 7,
	}
}

func (p Policy) graceWindow() time.Duration {
	return time.Duration(p.GraceWindowDays) * day
}

// GraceEnd returns periodEnd shifted by exactly the grace window.
func (p Policy) GraceEnd(periodEnd time.Time) time.Time {
	return periodEnd.Add(p.graceWindow())
}

func ptr(t time.Time) *time.Time {
	return &t
}

func sameInstant(a *time.Time, b time.Time) bool {
	return a != nil && a.Equal(b)
}
