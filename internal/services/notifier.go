package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
)

// Notifier accepts intents for delivery. Enqueue must not block on delivery.
type Notifier interface {
	Enqueue(intents ...lifecycle.Intent)
}

// Sender hands one intent to the external delivery collaborator.
type Sender interface {
	Send(ctx context.Context, intent lifecycle.Intent) error
}

// Dispatcher decouples intent producers from a slow Sender with a bounded
// queue and a fixed worker pool. When the queue is full the intent is
// dropped and logged.
type Dispatcher struct {
	queue   chan lifecycle.Intent
	sender  Sender
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDispatcher(sender Sender, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan lifecycle.Intent, queueSize),
		sender:  sender,
		workers: workers,
	}
}

func (d *Dispatcher) Enqueue(intents ...lifecycle.Intent) {
	for _, in := range intents {
		select {
		case d.queue <- in:
		default:
			metrics.NotificationsDelivered.WithLabelValues("dropped").Inc()
			slog.Warn("notification queue full, dropping intent",
				"tenant_id", in.TenantID.String(), "reason_code", string(in.Reason))
		}
	}
}

// Start launches the workers. They drain the queue until Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for in := range d.queue {
				d.deliver(ctx, in)
			}
		}()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, in lifecycle.Intent) {
	if err := d.sender.Send(ctx, in); err != nil {
		metrics.NotificationsDelivered.WithLabelValues("failed").Inc()
		slog.Error("notification delivery failed",
			"tenant_id", in.TenantID.String(), "reason_code", string(in.Reason), "error", err)
		return
	}
	metrics.NotificationsDelivered.WithLabelValues("sent").Inc()
}

// Stop closes the queue and waits for queued intents to be delivered.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

// LogSender writes intents to the log. It is used when no delivery
// endpoint is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, in lifecycle.Intent) error {
	slog.Info("notification intent",
		"tenant_id", in.TenantID.String(),
		"subscription_id", in.SubscriptionID.String(),
		"reason_code", string(in.Reason),
		"threshold_days", in.ThresholdDays,
	)
	return nil
}

// WebhookSender posts intents as signed JSON to the delivery collaborator.
type WebhookSender struct {
	url        string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
}

func NewWebhookSender(url, secret string) *WebhookSender {
	return &WebhookSender{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Send retries on the 1s, 5s, 30s schedule before giving up.
func (s *WebhookSender) Send(ctx context.Context, in lifecycle.Intent) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < len(s.delays); attempt++ {
		if lastErr = s.post(ctx, body); lastErr == nil {
			return nil
		}
		slog.Warn("notification webhook attempt failed",
			"tenant_id", in.TenantID.String(), "attempt", attempt+1, "error", lastErr)
		if attempt == len(s.delays)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delays[attempt]):
		}
	}
	return fmt.Errorf("notification webhook failed after %d attempts: %w", len(s.delays), lastErr)
}

func (s *WebhookSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "MenuBilling-Notifier/1.0")
	if s.secret != "" {
		req.Header.Set("X-Billing-Signature", Sign(body, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
