package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82/webhook"
)

type WebhookHandler struct {
	reconciler *services.Reconciler
	mapper     services.StripeEventMapper
	secret     string
}

func NewWebhookHandler(reconciler *services.Reconciler, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, secret: secret}
}

// HandleStripe verifies the Stripe-Signature header and reconciles the event.
// Any 2xx tells Stripe to stop retrying, so only failures that a retry can
// fix answer with 5xx.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	if h.secret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Stripe webhooks not configured",
		})
	}

	sig := c.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		return badRequest(c, "Invalid Stripe signature")
	}

	event, err := webhook.ConstructEventWithOptions(c.Body(), sig, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		slog.Warn("stripe signature rejected", "error", err)
		return badRequest(c, "Invalid Stripe signature")
	}

	ev, err := h.mapper.Map(&event)
	if errors.Is(err, services.ErrUnsupportedEvent) {
		metrics.WebhookEvents.WithLabelValues("unsupported", string(lifecycle.OutcomeIgnored)).Inc()
		return c.JSON(dto.WebhookAck{Received: true, EventID: event.ID, Outcome: string(lifecycle.OutcomeIgnored)})
	}
	if err != nil {
		slog.Warn("stripe event payload rejected", "event_id", event.ID, "type", event.Type, "error", err)
		return badRequest(c, "Invalid webhook payload")
	}

	outcome, err := h.reconciler.Apply(c.UserContext(), ev)
	if err != nil {
		if errors.Is(err, lifecycle.ErrConcurrentModification) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Subscription is busy, retry later",
			})
		}
		slog.Error("webhook processing failed", "event_id", event.ID, "type", event.Type, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.Info("webhook processed", "event_id", event.ID, "type", event.Type, "outcome", outcome)
	return c.JSON(dto.WebhookAck{Received: true, EventID: event.ID, Outcome: string(outcome)})
}
