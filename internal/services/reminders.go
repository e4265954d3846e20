package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReminderLog owns the "already reminded today" fact. Claim is atomic: of
// several concurrent claims for the same tenant and day exactly one wins.
type ReminderLog interface {
	SentOn(ctx context.Context, tenantID uuid.UUID, day string) (bool, error)
	Claim(ctx context.Context, tenantID uuid.UUID, day string, in lifecycle.Intent) (bool, error)
}

// GormReminderLog keeps reminder markers in the reminder_logs table.
type GormReminderLog struct {
	db *gorm.DB
}

func NewGormReminderLog(db *gorm.DB) *GormReminderLog {
	return &GormReminderLog{db: db}
}

func (l *GormReminderLog) SentOn(ctx context.Context, tenantID uuid.UUID, day string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&models.ReminderLog{}).
		Where("tenant_id = ? AND day = ?", tenantID, day).
		Count(&n).Error
	return n > 0, err
}

func (l *GormReminderLog) Claim(ctx context.Context, tenantID uuid.UUID, day string, in lifecycle.Intent) (bool, error) {
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ReminderLog{
			TenantID:      tenantID,
			Day:           day,
			ThresholdDays: in.ThresholdDays,
			Reason:        string(in.Reason),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RedisReminderLog keeps reminder markers as expiring Redis keys.
type RedisReminderLog struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReminderLog(client *redis.Client) *RedisReminderLog {
	return &RedisReminderLog{client: client, ttl: 48 * time.Hour}
}

func reminderKey(tenantID uuid.UUID, day string) string {
	return "billing:reminder:" + tenantID.String() + ":" + day
}

func (l *RedisReminderLog) SentOn(ctx context.Context, tenantID uuid.UUID, day string) (bool, error) {
	err := l.client.Get(ctx, reminderKey(tenantID, day)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

func (l *RedisReminderLog) Claim(ctx context.Context, tenantID uuid.UUID, day string, in lifecycle.Intent) (bool, error) {
	return l.client.SetNX(ctx, reminderKey(tenantID, day), strconv.Itoa(in.ThresholdDays), l.ttl).Result()
}

// ReminderService turns a record into at most one reminder per tenant per
// calendar day in the billing timezone.
type ReminderService struct {
	log ReminderLog
	loc *time.Location
}

func NewReminderService(log ReminderLog, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{log: log, loc: loc}
}

// Evaluate returns the reminder due for rec at now, if any, and records it.
func (s *ReminderService) Evaluate(ctx context.Context, rec lifecycle.Record, now time.Time) (lifecycle.Intent, bool, error) {
	day := lifecycle.CalendarDay(now, s.loc)
	sent, err := s.log.SentOn(ctx, rec.TenantID, day)
	if err != nil {
		return lifecycle.Intent{}, false, err
	}

	in, ok := lifecycle.EvaluateReminder(rec, now, sent)
	if !ok {
		return lifecycle.Intent{}, false, nil
	}

	claimed, err := s.log.Claim(ctx, rec.TenantID, day, in)
	if err != nil || !claimed {
		return lifecycle.Intent{}, false, err
	}
	metrics.RemindersEmitted.WithLabelValues(strconv.Itoa(in.ThresholdDays)).Inc()
	return in, true, nil
}
