package lifecycle

import "errors"

var (
	ErrInvalidTransition      = errors.New("invalid subscription transition")
	ErrOverlappingPeriod      = errors.New("billing period overlaps an approved payment")
	ErrAlreadyFinalized       = errors.New("payment request already finalized")
	ErrUnresolvedTenant       = errors.New("no tenant matches provider event")
	ErrConcurrentModification = errors.New("subscription modified concurrently")

	ErrCurrencyMismatch          = errors.New("plan currency differs from subscription currency")
	ErrPlanNotFound              = errors.New("plan not found")
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrPaymentRequestNotFound    = errors.New("payment request not found")
	ErrInvalidPeriod             = errors.New("invalid billing period")
	ErrSubscriptionAlreadyExists = errors.New("tenant already has a live subscription")
	ErrInvalidAmount             = errors.New("payment amount must be positive")
	ErrTrialUnavailable          = errors.New("tenant is not eligible for a trial")
)
