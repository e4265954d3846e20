package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent is the idempotency marker for a provider event. It is
// written in the same transaction as the mutation the event caused.
type ProcessedEvent struct {
	EventID     string     `gorm:"size:255;primaryKey" json:"event_id"`
	Kind        string     `gorm:"size:50;not null" json:"kind"`
	TenantID    *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	Outcome     string     `gorm:"size:20;not null" json:"outcome"`
	ProcessedAt time.Time  `gorm:"not null;index" json:"processed_at"`
}
