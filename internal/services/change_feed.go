package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SubscriptionChange is published after a subscription mutation commits.
type SubscriptionChange struct {
	TenantID       uuid.UUID        `json:"tenant_id"`
	SubscriptionID uuid.UUID        `json:"subscription_id"`
	From           lifecycle.Status `json:"from"`
	Status         lifecycle.Status `json:"status"`
	Source         string           `json:"source"`
	At             time.Time        `json:"at"`
}

// ChangeFeed pushes subscription changes to readers that would otherwise poll.
type ChangeFeed interface {
	Publish(ctx context.Context, change SubscriptionChange)
}

type NopChangeFeed struct{}

func (NopChangeFeed) Publish(context.Context, SubscriptionChange) {}

const changeChannel = "subscription-changes"

// RedisChangeFeed publishes changes on a Redis pub/sub channel.
type RedisChangeFeed struct {
	client  *redis.Client
	channel string
}

func NewRedisChangeFeed(client *redis.Client) *RedisChangeFeed {
	return &RedisChangeFeed{client: client, channel: changeChannel}
}

// Publish is best effort; the database row stays the source of truth.
func (f *RedisChangeFeed) Publish(ctx context.Context, change SubscriptionChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		slog.Warn("change feed publish failed", "tenant_id", change.TenantID.String(), "error", err)
	}
}

// Subscribe streams changes until ctx is done.
func (f *RedisChangeFeed) Subscribe(ctx context.Context) (<-chan SubscriptionChange, error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan SubscriptionChange)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change SubscriptionChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					slog.Warn("bad change feed message", "error", err)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
