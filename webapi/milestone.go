package webapi

import (
	"github.com/buildrail/escrow/pkg/config"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// RejectRequest carries the client's reason for sending work back.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

// MilestoneRoutes registers milestone workflow endpoints.
//
// Routes:
//   - GET  /milestone/:id                  : Fetch a milestone.
//   - GET  /project/:id/milestones         : List a project's milestones.
//   - POST /milestone/:id/submit           : Contractor submits work.
//   - POST /milestone/:id/approve          : Client approves the work.
//   - POST /milestone/:id/reject           : Client sends work back.
//   - POST /milestone/:id/request-release  : Ask for the funds, gate permitting.
func MilestoneRoutes(app *fiber.App, svc *milestonesvc.Service, cfg *config.App) {
	app.Get("/milestone/:id", JwtProtected(cfg.Auth.Jwt), GetMilestone(svc))
	app.Get("/project/:id/milestones", JwtProtected(cfg.Auth.Jwt), ListMilestones(svc))
	app.Post("/milestone/:id/submit", JwtProtected(cfg.Auth.Jwt), SubmitMilestone(svc))
	app.Post("/milestone/:id/approve", JwtProtected(cfg.Auth.Jwt), ApproveMilestone(svc))
	app.Post("/milestone/:id/reject", JwtProtected(cfg.Auth.Jwt), RejectMilestone(svc))
	app.Post("/milestone/:id/request-release", JwtProtected(cfg.Auth.Jwt), RequestRelease(svc))
}

// GetMilestone returns a handler fetching one milestone.
func GetMilestone(svc *milestonesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		milestoneID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		m, err := svc.Get(c.Context(), milestoneID)
		if err != nil {
			return DomainErrorJSON(c, "Milestone lookup failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Milestone", m)
	}
}

// ListMilestones returns a handler listing a project's milestones.
func ListMilestones(svc *milestonesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		ms, err := svc.ListByProject(c.Context(), projectID)
		if err != nil {
			return DomainErrorJSON(c, "Milestone list failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Milestones", ms)
	}
}

// SubmitMilestone returns a handler for the contractor's submission.
func SubmitMilestone(svc *milestonesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		milestoneID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		m, err := svc.Submit(c.Context(), milestoneID, actor)
		if err != nil {
			log.Errorf("submit failed: %v", err)
			return DomainErrorJSON(c, "Submit failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Milestone submitted", m)
	}
}

// ApproveMilestone returns a handler for the client's approval.
func ApproveMilestone(svc *milestonesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		milestoneID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		m, err := svc.Approve(c.Context(), milestoneID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Approve failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Milestone approved", m)
	}
}

// RejectMilestone returns a handler sending submitted work back.
func RejectMilestone(svc *milestonesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		milestoneID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[RejectRequest](c)
		if input == nil {
			return err
		}
		m, err := svc.Reject(c.Context(), milestoneID, actor, input.Reason)
		if err != nil {
			return DomainErrorJSON(c, "Reject failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Milestone rejected", m)
	}
}

// RequestRelease returns a handler moving an approved milestone to
// release_requested, subject to the dispute gate.
func RequestRelease(svc *milestonesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		milestoneID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		m, err := svc.RequestRelease(c.Context(), milestoneID, actor)
		if err != nil {
			log.Errorf("request release failed: %v", err)
			return DomainErrorJSON(c, "Release request failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Release requested", m)
	}
}
