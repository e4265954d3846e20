package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/lifecycle"
	"github.com/gofiber/fiber/v2"
)

// errorStatus maps the billing error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrCurrencyMismatch),
		errors.Is(err, lifecycle.ErrInvalidPeriod),
		errors.Is(err, lifecycle.ErrInvalidAmount):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrOverlappingPeriod),
		errors.Is(err, lifecycle.ErrAlreadyFinalized),
		errors.Is(err, lifecycle.ErrSubscriptionAlreadyExists),
		errors.Is(err, lifecycle.ErrTrialUnavailable):
		return fiber.StatusConflict
	case errors.Is(err, lifecycle.ErrSubscriptionNotFound),
		errors.Is(err, lifecycle.ErrPaymentRequestNotFound),
		errors.Is(err, lifecycle.ErrPlanNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, lifecycle.ErrConcurrentModification):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Details of server errors are
// logged, not returned.
func respondError(c *fiber.Ctx, err error) error {
	code := errorStatus(err)
	message := err.Error()
	switch {
	case code == fiber.StatusServiceUnavailable:
		message = "Subscription is busy, retry shortly"
	case code >= 500:
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		message = "Internal server error"
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: message})
}
