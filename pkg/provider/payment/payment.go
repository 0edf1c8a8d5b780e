// Package payment defines the payment-gateway collaborator the payout
// workflow dispatches through. The gateway moves real money; this core only
// tracks the attempt and its outcome.
package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Status is the gateway-side state of a payout attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusUnknown   Status = "unknown"
)

var (
	// ErrGatewayUnavailable is returned on transport failure or timeout.
	// Safe to retry with backoff.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrPayoutDeclined is returned when the gateway explicitly rejects the
	// payout.
	ErrPayoutDeclined = errors.New("payout declined by gateway")
)

// InitiatePayoutParams carries one payout attempt to the gateway. The
// idempotency token makes a re-sent attempt land on the same gateway-side
// payout.
type InitiatePayoutParams struct {
	PayoutID       uuid.UUID
	BankAccount    string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// InitiatePayoutResponse is the gateway's acknowledgement.
type InitiatePayoutResponse struct {
	ProviderRef string // gateway-side identifier for status queries
	Status      Status
}

// Gateway is the external payment rail.
//
// InitiatePayout may block on network I/O; callers never hold an account
// lock across it. Once the gateway has acknowledged receipt, the payout's
// fate is resolved by GetPayoutStatus, never by assuming failure.
type Gateway interface {
	InitiatePayout(ctx context.Context, params *InitiatePayoutParams) (*InitiatePayoutResponse, error)
	GetPayoutStatus(ctx context.Context, providerRef string) (Status, error)
}
