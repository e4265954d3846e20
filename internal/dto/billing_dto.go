package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/catalog"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/google/uuid"
)

type PlanRequest struct {
	PlanID string `json:"plan_id"`
}

type SubmitPaymentRequest struct {
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Kind           string     `json:"kind"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	PeriodStart    time.Time  `json:"period_start"`
	PeriodEnd      time.Time  `json:"period_end"`
	DueDate        *time.Time `json:"due_date,omitempty"`
}

type ProofRequest struct {
	Reference string `json:"reference"`
}

type DecisionRequest struct {
	Approve *bool  `json:"approve"`
	Notes   string `json:"notes"`
}

// SubscriptionResponse is the tenant dashboard view of a subscription,
// including the countdowns derived at read time.
type SubscriptionResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Status              string     `json:"status"`
	HasAccess           bool       `json:"has_access"`
	PlanID              string     `json:"plan_id"`
	PlanName            string     `json:"plan_name"`
	Price               int64      `json:"price"`
	Currency            string     `json:"currency"`
	Interval            string     `json:"interval"`
	Features            []string   `json:"features"`
	TrialEnd            *time.Time `json:"trial_end,omitempty"`
	CurrentPeriodStart  *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd    *time.Time `json:"current_period_end,omitempty"`
	NextBillingDate     *time.Time `json:"next_billing_date,omitempty"`
	GracePeriodEnd      *time.Time `json:"grace_period_end,omitempty"`
	CanceledAt          *time.Time `json:"canceled_at,omitempty"`
	DaysRemaining       int64      `json:"days_remaining"`
	GraceDaysRemaining  int64      `json:"grace_days_remaining"`
	ActivationSource    string     `json:"activation_source"`
	PaymentMethodOnFile bool       `json:"payment_method_on_file"`
}

func NewSubscriptionResponse(r lifecycle.Record, now time.Time) SubscriptionResponse {
	features := make([]string, len(r.Plan.Features.Flags))
	for i, f := range r.Plan.Features.Flags {
		features[i] = string(f)
	}
	return SubscriptionResponse{
		ID:                  r.ID,
		Status:              string(r.Status),
		HasAccess:           r.Status.HasAccess(),
		PlanID:              r.Plan.PlanID,
		PlanName:            r.Plan.Name,
		Price:               r.Plan.Price,
		Currency:            r.Plan.Currency,
		Interval:            string(r.Plan.Interval),
		Features:            features,
		TrialEnd:            r.TrialEnd,
		CurrentPeriodStart:  r.CurrentPeriodStart,
		CurrentPeriodEnd:    r.CurrentPeriodEnd,
		NextBillingDate:     r.NextBillingDate,
		GracePeriodEnd:      r.GracePeriodEnd,
		CanceledAt:          r.CanceledAt,
		DaysRemaining:       r.DaysRemaining(now),
		GraceDaysRemaining:  r.GraceDaysRemaining(now),
		ActivationSource:    string(r.ActivationSource),
		PaymentMethodOnFile: r.PaymentMethodOnFile,
	}
}

type PurchaseResponse struct {
	Subscription   SubscriptionResponse   `json:"subscription"`
	PaymentRequest *models.PaymentRequest `json:"payment_request"`
}

type ChangePlanResponse struct {
	Subscription   SubscriptionResponse   `json:"subscription"`
	Charge         int64                  `json:"charge"`
	PaymentRequest *models.PaymentRequest `json:"payment_request,omitempty"`
}

type PaymentRequestList struct {
	Requests []models.PaymentRequest `json:"requests"`
	Count    int                     `json:"count"`
}

type PlanResponse struct {
	PlanID   string   `json:"plan_id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Currency string   `json:"currency"`
	Interval string   `json:"interval"`
	Features []string `json:"features"`
}

func NewPlanResponse(p *catalog.PlanConfig) PlanResponse {
	return PlanResponse{
		PlanID:   p.PlanID,
		Name:     p.Name,
		Price:    p.Price,
		Currency: p.Currency,
		Interval: p.Interval,
		Features: p.Features,
	}
}
