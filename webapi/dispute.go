package webapi

import (
	"github.com/buildrail/escrow/pkg/config"
	disputedomain "github.com/buildrail/escrow/pkg/domain/dispute"
	disputesvc "github.com/buildrail/escrow/pkg/service/dispute"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// OpenDisputeRequest raises a dispute against a project.
type OpenDisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=512"`
}

// ResolveDisputeRequest closes a dispute with the adjudicator's outcome.
type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=resolved dismissed"`
}

// DisputeRoutes registers dispute lifecycle endpoints.
//
// Routes:
//   - POST /project/:id/dispute   : Open a dispute, gating the project.
//   - GET  /project/:id/disputes  : List a project's disputes.
//   - POST /dispute/:id/review    : Move an open dispute under review.
//   - POST /dispute/:id/resolve   : Close the dispute and lift the gate.
func DisputeRoutes(app *fiber.App, svc *disputesvc.Service, cfg *config.App) {
	app.Post("/project/:id/dispute", JwtProtected(cfg.Auth.Jwt), OpenDispute(svc))
	app.Get("/project/:id/disputes", JwtProtected(cfg.Auth.Jwt), ListDisputes(svc))
	app.Post("/dispute/:id/review", JwtProtected(cfg.Auth.Jwt), ReviewDispute(svc))
	app.Post("/dispute/:id/resolve", JwtProtected(cfg.Auth.Jwt), ResolveDispute(svc))
}

// OpenDispute returns a handler raising a dispute for the authenticated
// user.
func OpenDispute(svc *disputesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		raisedBy, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[OpenDisputeRequest](c)
		if input == nil {
			return err
		}
		d, err := svc.Open(c.Context(), projectID, raisedBy, input.Reason)
		if err != nil {
			log.Errorf("open dispute failed: %v", err)
			return DomainErrorJSON(c, "Open dispute failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Dispute opened", d)
	}
}

// ListDisputes returns a handler listing a project's disputes.
func ListDisputes(svc *disputesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		ds, err := svc.ListByProject(c.Context(), projectID)
		if err != nil {
			return DomainErrorJSON(c, "Dispute list failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Disputes", ds)
	}
}

// ReviewDispute returns a handler moving a dispute under review.
func ReviewDispute(svc *disputesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		disputeID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		d, err := svc.StartReview(c.Context(), disputeID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Review failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Dispute under review", d)
	}
}

// ResolveDispute returns a handler closing the dispute.
func ResolveDispute(svc *disputesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		disputeID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[ResolveDisputeRequest](c)
		if input == nil {
			return err
		}
		d, err := svc.Resolve(c.Context(), disputeID, disputedomain.Status(input.Outcome), actor)
		if err != nil {
			log.Errorf("resolve dispute failed: %v", err)
			return DomainErrorJSON(c, "Resolve failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Dispute closed", d)
	}
}
