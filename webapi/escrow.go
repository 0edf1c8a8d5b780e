package webapi

import (
	"github.com/buildrail/escrow/pkg/config"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	reconcilesvc "github.com/buildrail/escrow/pkg/service/reconcile"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// DepositRequest is the deposit payload. Amount is in the smallest
// currency unit.
type DepositRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
}

// ReleaseRequest is the milestone release payload.
type ReleaseRequest struct {
	MilestoneID    uuid.UUID `json:"milestone_id" validate:"required"`
	Amount         int64     `json:"amount" validate:"required,gt=0"`
	BankAccount    string    `json:"bank_account" validate:"required,max=128"`
	IdempotencyKey string    `json:"idempotency_key" validate:"required,max=128"`
}

// RefundRequest is the refund payload.
type RefundRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Reason         string `json:"reason" validate:"max=512"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
}

// EscrowRoutes registers the money-movement endpoints.
//
// Routes:
//   - POST /escrow/:id/deposit  : Add funds to the escrow account.
//   - POST /escrow/:id/release  : Release a milestone's funds to the contractor.
//   - POST /escrow/:id/refund   : Return funds to the depositor.
//   - GET  /escrow/:id/balance  : Balance derived from the transaction log.
//   - POST /escrow/:id/verify   : Refold the log and check the invariants.
func EscrowRoutes(app *fiber.App, svc *escrowsvc.Service, reconcileSvc *reconcilesvc.Service, cfg *config.App) {
	app.Post("/escrow/:id/deposit", JwtProtected(cfg.Auth.Jwt), Deposit(svc))
	app.Post("/escrow/:id/release", JwtProtected(cfg.Auth.Jwt), Release(svc))
	app.Post("/escrow/:id/refund", JwtProtected(cfg.Auth.Jwt), Refund(svc))
	app.Get("/escrow/:id/balance", JwtProtected(cfg.Auth.Jwt), GetBalance(svc))
	app.Post("/escrow/:id/verify", JwtProtected(cfg.Auth.Jwt), VerifyInvariants(reconcileSvc))
}

// Deposit returns a handler that appends a deposit transaction.
func Deposit(svc *escrowsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		input, err := BindAndValidate[DepositRequest](c)
		if input == nil {
			return err
		}
		tx, err := svc.Deposit(c.Context(), escrowsvc.DepositCommand{
			AccountID:      accountID,
			Amount:         input.Amount,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			log.Errorf("deposit failed: %v", err)
			return DomainErrorJSON(c, "Deposit failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Deposit recorded", tx)
	}
}

// Release returns a handler that releases a milestone's funds.
func Release(svc *escrowsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		input, err := BindAndValidate[ReleaseRequest](c)
		if input == nil {
			return err
		}
		result, err := svc.Release(c.Context(), escrowsvc.ReleaseCommand{
			AccountID:      accountID,
			MilestoneID:    input.MilestoneID,
			Amount:         input.Amount,
			BankAccount:    input.BankAccount,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			log.Errorf("release failed: %v", err)
			return DomainErrorJSON(c, "Release failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Funds released", result)
	}
}

// Refund returns a handler that returns funds to the depositor.
func Refund(svc *escrowsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		input, err := BindAndValidate[RefundRequest](c)
		if input == nil {
			return err
		}
		tx, err := svc.Refund(c.Context(), escrowsvc.RefundCommand{
			AccountID:      accountID,
			Amount:         input.Amount,
			Reason:         input.Reason,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			log.Errorf("refund failed: %v", err)
			return DomainErrorJSON(c, "Refund failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Refund recorded", tx)
	}
}

// GetBalance returns a handler serving the folded balance.
func GetBalance(svc *escrowsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		balance, err := svc.Balance(c.Context(), accountID)
		if err != nil {
			return DomainErrorJSON(c, "Balance lookup failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Balance", balance)
	}
}

// VerifyInvariants returns a handler that refolds the account's log. A
// corrupt ledger comes back as a 500 and the account is already frozen.
func VerifyInvariants(svc *reconcilesvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := parseUUIDParam(c, "id")
		if !ok {
			return nil
		}
		balance, err := svc.VerifyInvariants(c.Context(), accountID)
		if err != nil {
			log.Errorf("invariant check failed: %v", err)
			return DomainErrorJSON(c, "Invariant check failed", err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Invariants hold", balance)
	}
}
