package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/google/uuid"
	stripelib "github.com/stripe/stripe-go/v82"
)

// ErrUnsupportedEvent is returned for Stripe event types the billing engine
// does not consume.
var ErrUnsupportedEvent = errors.New("unsupported stripe event type")

// StripeEventMapper turns verified Stripe events into provider events.
type StripeEventMapper struct{}

// Map decodes event.Data.Raw for the event types the reconciler understands.
func (StripeEventMapper) Map(event *stripelib.Event) (lifecycle.ProviderEvent, error) {
	ev := lifecycle.ProviderEvent{
		ID:         event.ID,
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return ev, fmt.Errorf("stripe event %s has no data", event.ID)
	}
	raw := event.Data.Raw

	switch string(event.Type) {
	case "checkout.session.completed":
		var session stripeCheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return ev, fmt.Errorf("decode checkout session: %w", err)
		}
		ev.Kind = lifecycle.EventCheckoutCompleted
		ev.CustomerRef = session.Customer.ID
		ev.SubscriptionRef = session.Subscription.ID
		ev.TenantHint = tenantHint(session.Metadata, session.ClientReferenceID)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return ev, fmt.Errorf("decode subscription: %w", err)
		}
		switch string(event.Type) {
		case "customer.subscription.created":
			ev.Kind = lifecycle.EventSubscriptionCreated
		case "customer.subscription.updated":
			ev.Kind = lifecycle.EventSubscriptionUpdated
		default:
			ev.Kind = lifecycle.EventSubscriptionCanceled
		}
		ev.CustomerRef = sub.Customer.ID
		ev.SubscriptionRef = sub.ID
		ev.TenantHint = tenantHint(sub.Metadata, "")
		ev.ProviderStatus = sub.Status
		ev.Period = sub.period()
		ev.TrialPeriod = unixPeriod(sub.TrialStart, sub.TrialEnd)

	case "invoice.paid", "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return ev, fmt.Errorf("decode invoice: %w", err)
		}
		ev.Kind = lifecycle.EventInvoicePaid
		ev.Amount = inv.AmountPaid
		if string(event.Type) == "invoice.payment_failed" {
			ev.Kind = lifecycle.EventInvoicePaymentFailed
			ev.Amount = inv.AmountDue
		}
		ev.CustomerRef = inv.Customer.ID
		ev.SubscriptionRef = inv.subscriptionRef()
		ev.Currency = strings.ToUpper(inv.Currency)
		ev.Period = inv.period()
		if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
			ev.TenantHint = tenantHint(inv.Parent.SubscriptionDetails.Metadata, "")
		}

	default:
		return ev, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}
	return ev, nil
}

// stripeRef is an expandable Stripe reference: either the bare id string or
// the expanded object.
type stripeRef struct {
	ID string
}

func (r *stripeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	return nil
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          stripeRef         `json:"customer"`
	Subscription      stripeRef         `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Customer           stripeRef         `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialStart         int64             `json:"trial_start"`
	TrialEnd           int64             `json:"trial_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// period prefers the item-level boundaries newer API versions send.
func (s stripeSubscription) period() *lifecycle.Period {
	if len(s.Items.Data) > 0 {
		if p := unixPeriod(s.Items.Data[0].CurrentPeriodStart, s.Items.Data[0].CurrentPeriodEnd); p != nil {
			return p
		}
	}
	return unixPeriod(s.CurrentPeriodStart, s.CurrentPeriodEnd)
}

type stripeInvoice struct {
	ID           string    `json:"id"`
	Customer     stripeRef `json:"customer"`
	Subscription stripeRef `json:"subscription"`
	AmountPaid   int64     `json:"amount_paid"`
	AmountDue    int64     `json:"amount_due"`
	Currency     string    `json:"currency"`
	PeriodStart  int64     `json:"period_start"`
	PeriodEnd    int64     `json:"period_end"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription stripeRef         `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

func (inv stripeInvoice) subscriptionRef() string {
	if inv.Subscription.ID != "" {
		return inv.Subscription.ID
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

// period uses the first line item's service period. The invoice-level
// period_start/period_end describe the previous cycle for renewals.
func (inv stripeInvoice) period() *lifecycle.Period {
	if len(inv.Lines.Data) > 0 {
		line := inv.Lines.Data[0].Period
		if p := unixPeriod(line.Start, line.End); p != nil {
			return p
		}
	}
	return unixPeriod(inv.PeriodStart, inv.PeriodEnd)
}

func unixPeriod(start, end int64) *lifecycle.Period {
	if start <= 0 || end <= start {
		return nil
	}
	return &lifecycle.Period{Start: time.Unix(start, 0).UTC(), End: time.Unix(end, 0).UTC()}
}

func tenantHint(metadata map[string]string, fallback string) uuid.UUID {
	for _, v := range []string{metadata["tenant_id"], fallback} {
		if id, err := uuid.Parse(strings.TrimSpace(v)); err == nil {
			return id
		}
	}
	return uuid.Nil
}
