package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Subscription is one tenant subscription row. Rows are never deleted; the
// current one for a tenant is the most recently created.
type Subscription struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index:idx_subscriptions_tenant_created,priority:1" json:"tenant_id"`

	PlanID   string                                    `gorm:"size:64;not null" json:"plan_id"`
	PlanName string                                    `gorm:"size:255" json:"plan_name"`
	Price    int64                                     `gorm:"not null" json:"price"`
	Currency string                                    `gorm:"size:3;not null" json:"currency"`
	Interval string                                    `gorm:"size:10;not null" json:"interval"`
	Features datatypes.JSONType[lifecycle.FeatureSet] `json:"features"`

	Status             string     `gorm:"size:30;not null;index" json:"status"`
	TrialStart         *time.Time `json:"trial_start"`
	TrialEnd           *time.Time `json:"trial_end"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	NextBillingDate    *time.Time `json:"next_billing_date"`
	GracePeriodEnd     *time.Time `json:"grace_period_end"`
	CanceledAt         *time.Time `json:"canceled_at"`

	PaymentMethodOnFile     bool       `gorm:"not null;default:false" json:"payment_method_on_file"`
	ActivationSource        string     `gorm:"size:20" json:"activation_source"`
	ExternalCustomerRef     string     `gorm:"size:255;index" json:"-"`
	ExternalSubscriptionRef string     `gorm:"size:255;index" json:"-"`
	ProviderSyncedAt        *time.Time `json:"-"`

	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `gorm:"index:idx_subscriptions_tenant_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ToRecord converts the row into the state-machine view. Legacy status
// spellings are mapped to their canonical form.
func (s *Subscription) ToRecord() lifecycle.Record {
	status := lifecycle.Status(s.Status)
	if st, ok := lifecycle.ParseStatus(s.Status); ok {
		status = st
	}
	interval, err := lifecycle.ParseInterval(s.Interval)
	if err != nil {
		interval = lifecycle.IntervalMonth
	}
	return lifecycle.Record{
		ID:       s.ID,
		TenantID: s.TenantID,
		Plan: lifecycle.PlanSnapshot{
			PlanID:   s.PlanID,
			Name:     s.PlanName,
			Price:    s.Price,
			Currency: s.Currency,
			Interval: interval,
			Features: s.Features.Data(),
		},
		Status:                  status,
		TrialStart:              s.TrialStart,
		TrialEnd:                s.TrialEnd,
		CurrentPeriodStart:      s.CurrentPeriodStart,
		CurrentPeriodEnd:        s.CurrentPeriodEnd,
		NextBillingDate:         s.NextBillingDate,
		GracePeriodEnd:          s.GracePeriodEnd,
		CanceledAt:              s.CanceledAt,
		PaymentMethodOnFile:     s.PaymentMethodOnFile,
		ActivationSource:        lifecycle.Source(s.ActivationSource),
		ExternalCustomerRef:     s.ExternalCustomerRef,
		ExternalSubscriptionRef: s.ExternalSubscriptionRef,
		ProviderSyncedAt:        s.ProviderSyncedAt,
	}
}

// ApplyRecord copies r onto the row, leaving identity and version alone.
func (s *Subscription) ApplyRecord(r lifecycle.Record) {
	s.PlanID = r.Plan.PlanID
	s.PlanName = r.Plan.Name
	s.Price = r.Plan.Price
	s.Currency = r.Plan.Currency
	s.Interval = string(r.Plan.Interval)
	s.Features = datatypes.NewJSONType(r.Plan.Features)
	s.Status = string(r.Status)
	s.TrialStart = r.TrialStart
	s.TrialEnd = r.TrialEnd
	s.CurrentPeriodStart = r.CurrentPeriodStart
	s.CurrentPeriodEnd = r.CurrentPeriodEnd
	s.NextBillingDate = r.NextBillingDate
	s.GracePeriodEnd = r.GracePeriodEnd
	s.CanceledAt = r.CanceledAt
	s.PaymentMethodOnFile = r.PaymentMethodOnFile
	s.ActivationSource = string(r.ActivationSource)
	s.ExternalCustomerRef = r.ExternalCustomerRef
	s.ExternalSubscriptionRef = r.ExternalSubscriptionRef
	s.ProviderSyncedAt = r.ProviderSyncedAt
}

// NewSubscription builds a row for a freshly created record.
func NewSubscription(r lifecycle.Record) *Subscription {
	s := &Subscription{ID: r.ID, TenantID: r.TenantID}
	s.ApplyRecord(r)
	return s
}
