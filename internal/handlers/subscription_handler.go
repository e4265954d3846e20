package handlers

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/services"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
	scheduler     *services.Scheduler
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService, scheduler *services.Scheduler) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, scheduler: scheduler}
}

func noTenant(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
		Error: true, Message: "Tenant required",
	})
}

// Get returns the tenant's subscription after catching up on any
// time-based transition that is due.
func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}

	res, err := h.scheduler.Refresh(c.UserContext(), id)
	if err != nil {
		if res.Record.ID == uuid.Nil {
			return respondError(c, err)
		}
		// The record was refreshed; only the reminder bookkeeping failed.
		slog.Warn("subscription refresh incomplete", "tenant_id", id.String(), "error", err)
	}
	return c.JSON(dto.NewSubscriptionResponse(res.Record, time.Now().UTC()))
}

func (h *SubscriptionHandler) StartTrial(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}
	var req dto.PlanRequest
	if err := c.BodyParser(&req); err != nil || req.PlanID == "" {
		return badRequest(c, "plan_id is required")
	}

	rec, err := h.subscriptions.StartTrial(c.UserContext(), id, req.PlanID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewSubscriptionResponse(rec, time.Now().UTC()))
}

func (h *SubscriptionHandler) Purchase(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}
	var req dto.PlanRequest
	if err := c.BodyParser(&req); err != nil || req.PlanID == "" {
		return badRequest(c, "plan_id is required")
	}

	rec, payment, err := h.subscriptions.Purchase(c.UserContext(), id, req.PlanID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.PurchaseResponse{
		Subscription:   dto.NewSubscriptionResponse(rec, time.Now().UTC()),
		PaymentRequest: payment,
	})
}

func (h *SubscriptionHandler) ChangePlan(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}
	var req dto.PlanRequest
	if err := c.BodyParser(&req); err != nil || req.PlanID == "" {
		return badRequest(c, "plan_id is required")
	}

	res, err := h.subscriptions.ChangePlan(c.UserContext(), id, req.PlanID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ChangePlanResponse{
		Subscription:   dto.NewSubscriptionResponse(res.Record, time.Now().UTC()),
		Charge:         res.Charge,
		PaymentRequest: res.Request,
	})
}

func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}

	rec, err := h.subscriptions.Cancel(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewSubscriptionResponse(rec, time.Now().UTC()))
}
