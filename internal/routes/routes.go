package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/config"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Webhook      *handlers.WebhookHandler
	Subscription *handlers.SubscriptionHandler
	Payment      *handlers.PaymentHandler
	Admin        *handlers.AdminHandler
	Plan         *handlers.PlanHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Webhooks are registered ahead of the limiter so provider retries
	// are never throttled. The Stripe signature is the authentication.
	api.Post("/webhooks/stripe", h.Webhook.HandleStripe)

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)
	api.Get("/plans", h.Plan.List)

	// Tenant routes (JWT with tenant_id claim). Groups are prefixed so the
	// JWT middleware never reaches the admin routes.
	sub := api.Group("/subscription", middleware.JWTProtected(cfg), middleware.TenantRequired())
	sub.Get("/", h.Subscription.Get)
	sub.Post("/trial", h.Subscription.StartTrial)
	sub.Post("/purchase", h.Subscription.Purchase)
	sub.Post("/change-plan", h.Subscription.ChangePlan)
	sub.Post("/cancel", h.Subscription.Cancel)

	payments := api.Group("/payment-requests", middleware.JWTProtected(cfg), middleware.TenantRequired())
	payments.Get("/", h.Payment.ListOwn)
	payments.Post("/", h.Payment.Submit)
	payments.Post("/:id/proof", h.Payment.SubmitProof)

	// Admin routes (X-Admin-Token or admin JWT)
	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	admin.Get("/payment-requests", h.Payment.List)
	admin.Post("/payment-requests/:id/decision", h.Payment.Decide)
	admin.Post("/scheduler/tick", h.Admin.Tick)
}
