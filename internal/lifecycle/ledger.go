package lifecycle

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the disposition of a manual payment request.
type RequestStatus string

const (
	RequestPending         RequestStatus = "pending"
	RequestPendingApproval RequestStatus = "pending_approval"
	RequestApproved        RequestStatus = "approved"
	RequestRejected        RequestStatus = "rejected"
)

// Terminal reports whether the request can no longer change.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// RequestKind tells what a payment request pays for.
type RequestKind string

const (
	KindInitial   RequestKind = "initial"
	KindRenewal   RequestKind = "renewal"
	KindProration RequestKind = "proration"
)

// CreditsPeriod reports whether approving this kind of request moves the
// subscription's period markers. Only such requests take part in the
// overlap guard.
func (k RequestKind) CreditsPeriod() bool {
	return k == KindInitial || k == KindRenewal
}

// PaymentDraft is a payment request that has not been persisted yet.
type PaymentDraft struct {
	TenantID       uuid.UUID
	SubscriptionID uuid.UUID
	Kind           RequestKind
	Amount         int64
	Currency       string
	Period         Period
	DueDate        time.Time
}

// CheckOverlap fails with ErrOverlappingPeriod when period intersects any of
// the already approved periods.
func CheckOverlap(period Period, approved []Period) error {
	for _, a := range approved {
		if period.Overlaps(a) {
			return ErrOverlappingPeriod
		}
	}
	return nil
}

// MarkUnderReview is the pending -> pending_approval step.
func MarkUnderReview(s RequestStatus) (RequestStatus, error) {
	if s.Terminal() {
		return s, ErrAlreadyFinalized
	}
	if s != RequestPending {
		return s, ErrInvalidTransition
	}
	return RequestPendingApproval, nil
}

// Decide resolves a request to approved or rejected. Terminal requests are
// never overwritten.
func Decide(s RequestStatus, approve bool) (RequestStatus, error) {
	switch s {
	case RequestApproved, RequestRejected:
		return s, ErrAlreadyFinalized
	case RequestPending, RequestPendingApproval:
		if approve {
			return RequestApproved, nil
		}
		return RequestRejected, nil
	}
	return s, ErrInvalidTransition
}

// RenewalDraft returns the renewal request due for an active, manually billed
// record whose period ends within leadDays of now. ok is false when no
// renewal is due.
func RenewalDraft(r Record, now time.Time, leadDays int) (PaymentDraft, bool) {
	if r.Status != StatusActive || r.ExternalSubscriptionRef != "" || r.CurrentPeriodEnd == nil {
		return PaymentDraft{}, false
	}
	end := *r.CurrentPeriodEnd
	if DaysUntil(end, now) > int64(leadDays) {
		return PaymentDraft{}, false
	}
	return PaymentDraft{
		TenantID:       r.TenantID,
		SubscriptionID: r.ID,
		Kind:           KindRenewal,
		Amount:         r.Plan.Price,
		Currency:       r.Plan.Currency,
		Period:         Period{Start: end, End: r.Plan.Interval.AddTo(end)},
		DueDate:        end,
	}, true
}
