package lifecycle

import "strings"

// Status is the closed set of subscription states.
type Status string

const (
	StatusTrialing       Status = "trialing"
	StatusActive         Status = "active"
	StatusPendingPayment Status = "pending_payment"
	StatusPastDue        Status = "past_due"
	StatusGracePeriod    Status = "grace_period"
	StatusExpired        Status = "expired"
	StatusCanceled       Status = "canceled"
)

// AllStatuses lists every canonical status.
var AllStatuses = []Status{
	StatusTrialing,
	StatusActive,
	StatusPendingPayment,
	StatusPastDue,
	StatusGracePeriod,
	StatusExpired,
	StatusCanceled,
}

// statusSynonyms maps every spelling seen in stored rows and provider payloads
// to its canonical status. Keys are lower-cased and trimmed.
var statusSynonyms = map[string]Status{
	"trialing":           StatusTrialing,
	"trial":              StatusTrialing,
	"in_trial":           StatusTrialing,
	"active":             StatusActive,
	"paid":               StatusActive,
	"pending_payment":    StatusPendingPayment,
	"pending":            StatusPendingPayment,
	"incomplete":         StatusPendingPayment,
	"past_due":           StatusPastDue,
	"pastdue":            StatusPastDue,
	"past-due":           StatusPastDue,
	"unpaid":             StatusPastDue,
	"grace_period":       StatusGracePeriod,
	"grace":              StatusGracePeriod,
	"expired":            StatusExpired,
	"incomplete_expired": StatusExpired,
	"paused":             StatusExpired,
	"canceled":           StatusCanceled,
	"cancelled":          StatusCanceled,
}

// ParseStatus resolves a legacy or provider status string. The second return
// value is false when the string has no known mapping.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusSynonyms[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTrial reports whether the trial end governs expiry math for this status.
func (s Status) IsTrial() bool {
	return s == StatusTrialing
}

// IsTerminal reports whether no transition other than resubscription leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled
}

// IsLive reports whether s still holds the tenant's single subscription slot.
// Expired and canceled records leave room for a new purchase.
func (s Status) IsLive() bool {
	return s != StatusExpired && s != StatusCanceled
}

// HasAccess reports whether the tenant keeps feature access in this status.
// Grace period keeps full access; the countdown is shown instead.
func (s Status) HasAccess() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusGracePeriod:
		return true
	}
	return false
}

// carriesGrace reports whether GracePeriodEnd may be set in this status.
func (s Status) carriesGrace() bool {
	return s == StatusPastDue || s == StatusGracePeriod
}
