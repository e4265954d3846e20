package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

// Reason codes carried by intents. Reminder reasons come from the threshold
// generator; the rest are emitted by transitions.
type Reason string

const (
	ReasonTrialEnding         Reason = "trial_ending"
	ReasonRenewalDue          Reason = "renewal_due"
	ReasonTrialConverted      Reason = "trial_converted"
	ReasonTrialExpired        Reason = "trial_expired"
	ReasonPaymentOverdue      Reason = "payment_overdue"
	ReasonPaymentFailed       Reason = "payment_failed"
	ReasonGraceStarted        Reason = "grace_started"
	ReasonSubscriptionExpired Reason = "subscription_expired"
	ReasonPaymentApplied      Reason = "payment_applied"
	ReasonPlanChanged         Reason = "plan_changed"
	ReasonCanceled            Reason = "canceled"
)

// Intent describes something a delivery collaborator may want to act on. The
// core only produces intents; it never sends anything.
type Intent struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	ThresholdDays  int       `json:"threshold_days"`
	Reason         Reason    `json:"reason_code"`
	At             time.Time `json:"at"`
}

func newIntent(r Record, reason Reason, at time.Time) Intent {
	return Intent{
		TenantID:       r.TenantID,
		SubscriptionID: r.ID,
		Reason:         reason,
		At:             at,
	}
}
