package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/catalog"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	scheduler *services.Scheduler
}

func NewAdminHandler(scheduler *services.Scheduler) *AdminHandler {
	return &AdminHandler{scheduler: scheduler}
}

// Tick runs one scheduler pass on demand.
func (h *AdminHandler) Tick(c *fiber.Ctx) error {
	report, err := h.scheduler.Tick(c.UserContext(), time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

type PlanHandler struct {
	plans *catalog.Registry
}

func NewPlanHandler(plans *catalog.Registry) *PlanHandler {
	return &PlanHandler{plans: plans}
}

func (h *PlanHandler) List(c *fiber.Ctx) error {
	all := h.plans.All()
	out := make([]dto.PlanResponse, 0, len(all))
	for _, p := range all {
		out = append(out, dto.NewPlanResponse(p))
	}
	return c.JSON(fiber.Map{"plans": out})
}
