package webapi

import (
	"time"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/money"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	reconcilesvc "github.com/buildrail/escrow/pkg/service/reconcile"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// CreateProjectRequest is the project registration payload.
type CreateProjectRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

// AwardRequest assigns the contractor.
type AwardRequest struct {
	ContractorID uuid.UUID `json:"contractor_id" validate:"required"`
}

// MilestoneSpecRequest is one agreed milestone in an activation payload.
// Amount is in the smallest currency unit.
type MilestoneSpecRequest struct {
	Title   string    `json:"title" validate:"required,max=255"`
	Amount  int64     `json:"amount" validate:"required,gt=0"`
	DueDate time.Time `json:"due_date"`
}

// ActivateRequest carries the agreed milestones.
type ActivateRequest struct {
	Milestones []MilestoneSpecRequest `json:"milestones" validate:"required,min=1,dive"`
}

// ProjectRoutes registers project lifecycle and reporting endpoints.
//
// Routes:
//   - POST /project               : Register a project in setup.
//   - GET  /project/:id           : Fetch a project.
//   - POST /project/:id/award     : Assign the contractor.
//   - POST /project/:id/activate  : Activate with escrow account and milestones.
//   - POST /project/:id/complete  : Close out an active project.
//   - POST /project/:id/cancel    : Cancel and void unpaid milestones.
//   - GET  /project/:id/ledger    : Full transaction history with the folded balance.
//   - GET  /project/:id/audit     : Every recorded state transition.
func ProjectRoutes(app *fiber.App, svc *projectsvc.Service, reconcileSvc *reconcilesvc.Service, cfg *config.App) {
	app.Post("/project", JwtProtected(cfg.Auth.Jwt), CreateProject(svc))
	app.Get("/project/:id", JwtProtected(cfg.Auth.Jwt), GetProject(svc))
	app.Post("/project/:id/award", JwtProtected(cfg.Auth.Jwt), AwardProject(svc))
	app.Post("/project/:id/activate", JwtProtected(cfg.Auth.Jwt), ActivateProject(svc))
	app.Post("/project/:id/complete", JwtProtected(cfg.Auth.Jwt), CompleteProject(svc))
	app.Post("/project/:id/cancel", JwtProtected(cfg.Auth.Jwt), CancelProject(svc))
	app.Get("/project/:id/ledger", JwtProtected(cfg.Auth.Jwt), ProjectLedger(reconcileSvc))
	app.Get("/project/:id/audit", JwtProtected(cfg.Auth.Jwt), ProjectAudit(reconcileSvc))
}

// CreateProject returns a handler registering a new project for the
// authenticated user.
func CreateProject(svc *projectsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ownerID, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[CreateProjectRequest](c)
		if input == nil {
			return err
		}
		currency := money.DefaultCode
		if input.Currency != "" {
			currency = money.Code(input.Currency)
		}
		p, err := svc.Create(c.Context(), ownerID, input.Title, currency)
		if err != nil {
			log.Errorf("create project failed: %v", err)
			return DomainErrorJSON(c, "Failed to create project", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Project created", p)
	}
}

// GetProject returns a handler fetching one project.
func GetProject(svc *projectsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		p, err := svc.Get(c.Context(), projectID)
		if err != nil {
			return DomainErrorJSON(c, "Project lookup failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Project", p)
	}
}

// AwardProject returns a handler assigning the contractor.
func AwardProject(svc *projectsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[AwardRequest](c)
		if input == nil {
			return err
		}
		p, err := svc.Award(c.Context(), projectID, input.ContractorID, actor)
		if err != nil {
			log.Errorf("award failed: %v", err)
			return DomainErrorJSON(c, "Award failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Contractor awarded", p)
	}
}

// ActivateProject returns a handler activating the project with its escrow
// account and milestones.
func ActivateProject(svc *projectsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[ActivateRequest](c)
		if input == nil {
			return err
		}
		current, err := svc.Get(c.Context(), projectID)
		if err != nil {
			return DomainErrorJSON(c, "Project lookup failed", err)
		}
		specs := make([]projectsvc.MilestoneSpec, 0, len(input.Milestones))
		for _, m := range input.Milestones {
			amount, err := money.NewFromSmallestUnit(m.Amount, money.Code(current.Currency))
			if err != nil {
				return DomainErrorJSON(c, "Invalid milestone amount", err)
			}
			specs = append(specs, projectsvc.MilestoneSpec{
				Title:   m.Title,
				Amount:  amount,
				DueDate: m.DueDate,
			})
		}
		p, err := svc.Activate(c.Context(), projectID, actor, specs)
		if err != nil {
			log.Errorf("activate failed: %v", err)
			return DomainErrorJSON(c, "Activation failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Project activated", p)
	}
}

// CompleteProject returns a handler closing out an active project.
func CompleteProject(svc *projectsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		p, err := svc.Complete(c.Context(), projectID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Completion failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Project completed", p)
	}
}

// CancelProject returns a handler cancelling the project and its unpaid
// milestones.
func CancelProject(svc *projectsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		p, err := svc.Cancel(c.Context(), projectID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Cancellation failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Project cancelled", p)
	}
}

// ProjectLedger returns a handler serving the full transaction history.
func ProjectLedger(svc *reconcilesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		history, err := svc.ProjectLedgerHistory(c.Context(), projectID)
		if err != nil {
			return DomainErrorJSON(c, "Ledger lookup failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Ledger history", history)
	}
}

// ProjectAudit returns a handler serving the audit trail.
func ProjectAudit(svc *reconcilesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		trail, err := svc.AuditTrail(c.Context(), projectID)
		if err != nil {
			return DomainErrorJSON(c, "Audit lookup failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Audit trail", trail)
	}
}
