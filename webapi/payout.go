package webapi

import (
	"github.com/buildrail/escrow/pkg/config"
	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/money"
	payoutsvc "github.com/buildrail/escrow/pkg/service/payout"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// DirectPayoutRequest enqueues a payout unbacked by a release. Operator
// use only. Amount is in the smallest currency unit.
type DirectPayoutRequest struct {
	ContractorID uuid.UUID `json:"contractor_id" validate:"required"`
	Amount       int64     `json:"amount" validate:"required,gt=0"`
	Currency     string    `json:"currency" validate:"omitempty,len=3"`
	BankAccount  string    `json:"bank_account" validate:"required,max=128"`
}

// HoldPayoutRequest freezes a payout.
type HoldPayoutRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

// PayoutRoutes registers payout workflow endpoints.
//
// Routes:
//   - POST /payout                    : Enqueue a direct payout.
//   - GET  /payout/:id                : Fetch a payout.
//   - GET  /payouts                   : List payouts by status.
//   - POST /payout/:id/approve        : Sign off a pending payout.
//   - POST /payout/:id/dispatch       : Send an approved payout to the gateway.
//   - POST /payout/:id/retry          : Re-queue a failed payout.
//   - POST /payout/:id/hold           : Freeze a payout.
//   - POST /payout/:id/release-hold   : Return a held payout to pending.
func PayoutRoutes(app *fiber.App, svc *payoutsvc.Service, cfg *config.App) {
	app.Post("/payout", JwtProtected(cfg.Auth.Jwt), EnqueueDirectPayout(svc))
	app.Get("/payout/:id", JwtProtected(cfg.Auth.Jwt), GetPayout(svc))
	app.Get("/payouts", JwtProtected(cfg.Auth.Jwt), ListPayouts(svc))
	app.Post("/payout/:id/approve", JwtProtected(cfg.Auth.Jwt), ApprovePayout(svc))
	app.Post("/payout/:id/dispatch", JwtProtected(cfg.Auth.Jwt), DispatchPayout(svc))
	app.Post("/payout/:id/retry", JwtProtected(cfg.Auth.Jwt), RetryPayout(svc))
	app.Post("/payout/:id/hold", JwtProtected(cfg.Auth.Jwt), HoldPayout(svc))
	app.Post("/payout/:id/release-hold", JwtProtected(cfg.Auth.Jwt), ReleaseHoldPayout(svc))
}

// EnqueueDirectPayout returns a handler creating an operator payout.
func EnqueueDirectPayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[DirectPayoutRequest](c)
		if input == nil {
			return err
		}
		code := money.DefaultCode
		if input.Currency != "" {
			code = money.Code(input.Currency)
		}
		amount, err := money.NewFromSmallestUnit(input.Amount, code)
		if err != nil {
			return DomainErrorJSON(c, "Invalid amount", err)
		}
		p, err := svc.EnqueueDirect(c.Context(), input.ContractorID, amount, input.BankAccount, actor)
		if err != nil {
			log.Errorf("direct payout failed: %v", err)
			return DomainErrorJSON(c, "Payout enqueue failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Payout enqueued", p)
	}
}

// GetPayout returns a handler fetching one payout.
func GetPayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payoutID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		p, err := svc.Get(c.Context(), payoutID)
		if err != nil {
			return DomainErrorJSON(c, "Payout lookup failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payout", p)
	}
}

// ListPayouts returns a handler listing payouts by workflow state.
func ListPayouts(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := payoutdomain.Status(c.Query("status", string(payoutdomain.StatusPending)))
		if !status.Valid() {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid status", string(status))
		}
		limit := c.QueryInt("limit", 50)
		ps, err := svc.ListByStatus(c.Context(), status, limit)
		if err != nil {
			return DomainErrorJSON(c, "Payout list failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payouts", ps)
	}
}

// ApprovePayout returns a handler signing off a pending payout.
func ApprovePayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payoutID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		p, err := svc.Approve(c.Context(), payoutID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Approve failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payout approved", p)
	}
}

// DispatchPayout returns a handler pushing one payout through the gateway
// immediately instead of waiting for the worker's next poll.
func DispatchPayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payoutID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		p, err := svc.Dispatch(c.Context(), payoutID)
		if err != nil {
			log.Errorf("dispatch failed: %v", err)
			return DomainErrorJSON(c, "Dispatch failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payout dispatched", p)
	}
}

// RetryPayout returns a handler re-queuing a failed payout.
func RetryPayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payoutID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		p, err := svc.Retry(c.Context(), payoutID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Retry failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payout re-queued", p)
	}
}

// HoldPayout returns a handler freezing a payout.
func HoldPayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payoutID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		input, err := BindAndValidate[HoldPayoutRequest](c)
		if input == nil {
			return err
		}
		p, err := svc.Hold(c.Context(), payoutID, actor, input.Reason)
		if err != nil {
			return DomainErrorJSON(c, "Hold failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payout held", p)
	}
}

// ReleaseHoldPayout returns a handler returning a held payout to pending.
func ReleaseHoldPayout(svc *payoutsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payoutID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		actor, err := currentUserID(c)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "missing user context")
		}
		p, err := svc.ReleaseHold(c.Context(), payoutID, actor)
		if err != nil {
			return DomainErrorJSON(c, "Release hold failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Payout released from hold", p)
	}
}
