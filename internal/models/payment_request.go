package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentRequest is a manual payment submission and its admin disposition.
type PaymentRequest struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;index:idx_payment_requests_sub_period,priority:1" json:"subscription_id"`

	Kind        string    `gorm:"size:20;not null" json:"kind"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"size:3;not null" json:"currency"`
	PeriodStart time.Time `gorm:"not null;index:idx_payment_requests_sub_period,priority:2" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null;index:idx_payment_requests_sub_period,priority:3" json:"period_end"`
	DueDate     time.Time `json:"due_date"`

	Status         string     `gorm:"size:20;not null;index" json:"status"`
	ProofReference string     `gorm:"size:500" json:"proof_reference,omitempty"`
	VerifiedBy     string     `gorm:"size:255" json:"verified_by,omitempty"`
	Notes          string     `gorm:"type:text" json:"notes,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PaymentRequest) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Period returns the billing period the request covers.
func (p *PaymentRequest) Period() lifecycle.Period {
	return lifecycle.Period{Start: p.PeriodStart, End: p.PeriodEnd}
}

// NewPaymentRequest builds a pending request from a draft.
func NewPaymentRequest(d lifecycle.PaymentDraft) *PaymentRequest {
	return &PaymentRequest{
		TenantID:       d.TenantID,
		SubscriptionID: d.SubscriptionID,
		Kind:           string(d.Kind),
		Amount:         d.Amount,
		Currency:       d.Currency,
		PeriodStart:    d.Period.Start,
		PeriodEnd:      d.Period.End,
		DueDate:        d.DueDate,
		Status:         string(lifecycle.RequestPending),
	}
}
