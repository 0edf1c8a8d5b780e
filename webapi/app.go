// Package webapi exposes the ledger over HTTP with Fiber. Handlers parse
// and validate, call a service, and translate the outcome; every financial
// decision stays in the service layer.
package webapi

import (
	"github.com/buildrail/escrow/pkg/config"
	disputesvc "github.com/buildrail/escrow/pkg/service/dispute"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	payoutsvc "github.com/buildrail/escrow/pkg/service/payout"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	reconcilesvc "github.com/buildrail/escrow/pkg/service/reconcile"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles the service layer for route registration.
type Services struct {
	Escrow    *escrowsvc.Service
	Milestone *milestonesvc.Service
	Dispute   *disputesvc.Service
	Payout    *payoutsvc.Service
	Project   *projectsvc.Service
	Reconcile *reconcilesvc.Service
}

// NewApp builds the Fiber app with middleware and every route registered.
func NewApp(svcs Services, cfg *config.App) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit.MaxRequests,
		Expiration: cfg.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
		},
	}))
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("escrow ledger is up")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	ProjectRoutes(app, svcs.Project, svcs.Reconcile, cfg)
	EscrowRoutes(app, svcs.Escrow, svcs.Reconcile, cfg)
	MilestoneRoutes(app, svcs.Milestone, cfg)
	DisputeRoutes(app, svcs.Dispute, cfg)
	PayoutRoutes(app, svcs.Payout, cfg)

	return app
}
