package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/services"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	ledger        *services.LedgerService
	subscriptions *services.SubscriptionService
}

func NewPaymentHandler(ledger *services.LedgerService, subscriptions *services.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, subscriptions: subscriptions}
}

// Submit opens a manual payment request. Without a subscription_id it
// targets the tenant's current subscription, and without a kind it pays
// for the next period of a running subscription or the first period of a
// new one.
func (h *PaymentHandler) Submit(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}
	var req dto.SubmitPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	draft := lifecycle.PaymentDraft{
		TenantID: id,
		Kind:     lifecycle.RequestKind(req.Kind),
		Amount:   req.Amount,
		Currency: req.Currency,
		Period:   lifecycle.Period{Start: req.PeriodStart.UTC(), End: req.PeriodEnd.UTC()},
	}
	if req.DueDate != nil {
		draft.DueDate = req.DueDate.UTC()
	}

	if req.SubscriptionID == nil || draft.Kind == "" {
		cur, err := h.subscriptions.Current(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		if req.SubscriptionID == nil {
			draft.SubscriptionID = cur.ID
		}
		if draft.Kind == "" {
			draft.Kind = lifecycle.KindInitial
			switch cur.Status {
			case lifecycle.StatusActive, lifecycle.StatusPastDue, lifecycle.StatusGracePeriod:
				draft.Kind = lifecycle.KindRenewal
			}
		}
	}
	if req.SubscriptionID != nil {
		draft.SubscriptionID = *req.SubscriptionID
	}

	switch draft.Kind {
	case lifecycle.KindInitial, lifecycle.KindRenewal, lifecycle.KindProration:
	default:
		return badRequest(c, "kind must be initial, renewal or proration")
	}

	payment, err := h.ledger.Submit(c.UserContext(), draft)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// SubmitProof attaches the tenant's payment reference and queues the
// request for admin review.
func (h *PaymentHandler) SubmitProof(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid request ID")
	}
	var req dto.ProofRequest
	if err := c.BodyParser(&req); err != nil || req.Reference == "" {
		return badRequest(c, "reference is required")
	}

	payment, err := h.ledger.MarkUnderReview(c.UserContext(), id, requestID, req.Reference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payment)
}

// ListOwn lists the calling tenant's requests, newest first.
func (h *PaymentHandler) ListOwn(c *fiber.Ctx) error {
	id, err := tenant.GetTenantID(c)
	if err != nil {
		return noTenant(c)
	}
	return h.list(c, services.RequestFilter{
		Status:   lifecycle.RequestStatus(c.Query("status")),
		TenantID: id,
		Limit:    c.QueryInt("limit", 0),
	})
}

// List is the admin review queue. ?status= and ?tenant_id= narrow it.
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	filter := services.RequestFilter{
		Status: lifecycle.RequestStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 0),
	}
	if raw := c.Query("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid tenant_id")
		}
		filter.TenantID = id
	}
	return h.list(c, filter)
}

func (h *PaymentHandler) list(c *fiber.Ctx, filter services.RequestFilter) error {
	switch filter.Status {
	case "", lifecycle.RequestPending, lifecycle.RequestPendingApproval, lifecycle.RequestApproved, lifecycle.RequestRejected:
	default:
		return badRequest(c, "Unknown status "+strconv.Quote(string(filter.Status)))
	}

	requests, err := h.ledger.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.PaymentRequestList{Requests: requests, Count: len(requests)})
}

// Decide records the admin's approval or rejection of a request.
func (h *PaymentHandler) Decide(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid request ID")
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil || req.Approve == nil {
		return badRequest(c, "approve is required")
	}

	decision, err := h.ledger.Decide(c.UserContext(), requestID, tenant.GetActor(c), *req.Approve, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(decision)
}
