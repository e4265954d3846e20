package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReminderLog records that a tenant was reminded on a calendar day. The
// unique index makes the insert itself the once-per-day guard.
type ReminderLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_logs_tenant_day,priority:1" json:"tenant_id"`
	Day           string    `gorm:"size:10;not null;uniqueIndex:idx_reminder_logs_tenant_day,priority:2" json:"day"`
	ThresholdDays int       `gorm:"not null" json:"threshold_days"`
	Reason        string    `gorm:"size:30;not null" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *ReminderLog) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
