package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the canonical provider event type.
type EventKind string

const (
	EventCheckoutCompleted    EventKind = "checkout_completed"
	EventSubscriptionCreated  EventKind = "subscription_created"
	EventSubscriptionUpdated  EventKind = "subscription_updated"
	EventSubscriptionCanceled EventKind = "subscription_canceled"
	EventInvoicePaid          EventKind = "invoice_paid"
	EventInvoicePaymentFailed EventKind = "invoice_payment_failed"
)

// ProviderEvent is an authenticated, already parsed payment provider event.
type ProviderEvent struct {
	ID         string
	Kind       EventKind
	OccurredAt time.Time

	CustomerRef     string
	SubscriptionRef string
	TenantHint      uuid.UUID

	ProviderStatus string
	Amount         int64
	Currency       string
	Period         *Period
	TrialPeriod    *Period
}

// Outcome is how an event was handled.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeUnresolved Outcome = "unresolved"
)

// ApplyProviderEvent merges ev into r. Boundaries are always set from the
// payload, so replays and reordering converge. Provider events only move a
// record forward along the success path or into past_due or canceled, and
// never downgrade a record a human activated for the period still running.
func ApplyProviderEvent(r Record, ev ProviderEvent, now time.Time, p Policy) (Record, []Intent, Outcome) {
	r = normalize(r, p)
	hold := manualHold(r, now)

	switch ev.Kind {
	case EventCheckoutCompleted:
		if r.Status.IsTerminal() {
			return r, nil, OutcomeIgnored
		}
		r = link(r, ev)
		r.PaymentMethodOnFile = true
		return r, nil, OutcomeApplied

	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return applySubscriptionState(r, ev, now, hold)

	case EventSubscriptionCanceled:
		return cancelOrUnlink(r, ev, now, hold)

	case EventInvoicePaid:
		if ev.Period == nil || !ev.Period.Valid() || r.Status.IsTerminal() {
			return r, nil, OutcomeIgnored
		}
		prevEnd := r.CurrentPeriodEnd
		r = link(r, ev)
		next, intents, err := ApplyPaymentSuccess(r, *ev.Period, p)
		if err != nil {
			return r, nil, OutcomeIgnored
		}
		if prevEnd == nil || next.CurrentPeriodEnd.After(*prevEnd) || !hold {
			next.ActivationSource = SourceProvider
		}
		next.PaymentMethodOnFile = true
		next = markSynced(next, ev.OccurredAt)
		return next, intents, OutcomeApplied

	case EventInvoicePaymentFailed:
		if hold || staleFailure(r, ev) {
			return r, nil, OutcomeIgnored
		}
		next, intents := ApplyPaymentFailure(r, ev.OccurredAt)
		next = markSynced(next, ev.OccurredAt)
		return next, intents, OutcomeApplied
	}
	return r, nil, OutcomeIgnored
}

func applySubscriptionState(r Record, ev ProviderEvent, now time.Time, hold bool) (Record, []Intent, Outcome) {
	if r.Status.IsTerminal() {
		return r, nil, OutcomeIgnored
	}
	if !ev.OccurredAt.IsZero() {
		if r.ProviderSyncedAt != nil && ev.OccurredAt.Before(*r.ProviderSyncedAt) {
			return r, nil, OutcomeIgnored
		}
		r.ProviderSyncedAt = ptr(ev.OccurredAt)
	}
	r = link(r, ev)

	if r.Status == StatusTrialing && ev.TrialPeriod != nil && ev.TrialPeriod.Valid() {
		r.TrialStart = ptr(ev.TrialPeriod.Start)
		r.TrialEnd = ptr(ev.TrialPeriod.End)
		r.NextBillingDate = ptr(ev.TrialPeriod.End)
	}

	st, _ := ParseStatus(ev.ProviderStatus)
	switch st {
	case StatusActive:
		if ev.Period != nil && ev.Period.Valid() {
			r = setPeriod(r, *ev.Period, hold)
		}
		if r.Status == StatusActive || r.CurrentPeriodEnd == nil || !now.Before(*r.CurrentPeriodEnd) {
			return r, nil, OutcomeApplied
		}
		r.Status = StatusActive
		r.GracePeriodEnd = nil
		r.PaymentMethodOnFile = true
		if !hold {
			r.ActivationSource = SourceProvider
		}
		return r, []Intent{newIntent(r, ReasonPaymentApplied, now)}, OutcomeApplied

	case StatusPastDue:
		if hold {
			return r, nil, OutcomeApplied
		}
		if ev.Period != nil && ev.Period.Valid() {
			r = setPeriod(r, *ev.Period, false)
		}
		next, intents := ApplyPaymentFailure(r, ev.OccurredAt)
		return next, intents, OutcomeApplied

	case StatusCanceled:
		return cancelOrUnlink(r, ev, now, hold)

	case StatusExpired:
		if r.Status == StatusPendingPayment {
			r.Status = StatusExpired
			r.NextBillingDate = nil
			return r, []Intent{newIntent(r, ReasonSubscriptionExpired, now)}, OutcomeApplied
		}
	}
	return r, nil, OutcomeApplied
}

// setPeriod copies provider period boundaries onto r. While a manual payment
// holds the record, a shorter provider period never truncates it.
func setPeriod(r Record, period Period, hold bool) Record {
	if hold && r.CurrentPeriodEnd != nil && !period.End.After(*r.CurrentPeriodEnd) {
		return r
	}
	r.CurrentPeriodStart = ptr(period.Start)
	r.CurrentPeriodEnd = ptr(period.End)
	r.NextBillingDate = ptr(period.End)
	return r
}

func cancelOrUnlink(r Record, ev ProviderEvent, now time.Time, hold bool) (Record, []Intent, Outcome) {
	if r.Status.IsTerminal() {
		return r, nil, OutcomeIgnored
	}
	if hold {
		// The manually paid period keeps running; only the provider link goes.
		r.ExternalSubscriptionRef = ""
		r.PaymentMethodOnFile = false
		return r, nil, OutcomeApplied
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = now
	}
	next, intents := Cancel(r, at)
	return next, intents, OutcomeApplied
}

func link(r Record, ev ProviderEvent) Record {
	if r.ExternalCustomerRef == "" && ev.CustomerRef != "" {
		r.ExternalCustomerRef = ev.CustomerRef
	}
	if r.ExternalSubscriptionRef == "" && ev.SubscriptionRef != "" {
		r.ExternalSubscriptionRef = ev.SubscriptionRef
	}
	return r
}

// manualHold reports whether an admin-approved payment governs the period
// that is still running at now.
func manualHold(r Record, now time.Time) bool {
	return r.ActivationSource == SourceManual &&
		r.Status == StatusActive &&
		r.CurrentPeriodEnd != nil &&
		now.Before(*r.CurrentPeriodEnd)
}

// staleFailure reports whether a payment failure was already overtaken by a
// later provider event or by a payment covering the failed invoice's period.
func staleFailure(r Record, ev ProviderEvent) bool {
	if !ev.OccurredAt.IsZero() && r.ProviderSyncedAt != nil && ev.OccurredAt.Before(*r.ProviderSyncedAt) {
		return true
	}
	return ev.Period != nil && r.CurrentPeriodEnd != nil && !ev.Period.End.After(*r.CurrentPeriodEnd)
}

// markSynced advances ProviderSyncedAt to at; it never moves backwards.
func markSynced(r Record, at time.Time) Record {
	if at.IsZero() || (r.ProviderSyncedAt != nil && !at.After(*r.ProviderSyncedAt)) {
		return r
	}
	r.ProviderSyncedAt = ptr(at)
	return r
}
