// Package payout models the workflow that turns a ledger release into money
// on the contractor's bank account.
//
// A payout is owned by exactly one release transaction, or none for
// administrative direct payouts. processed_at is written once, on the
// transition into completed, and is immutable afterwards; it is the
// authoritative timestamp for financial reporting and is never backfilled.
package payout

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
)

// Status is the workflow state of a payout.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusHeld       Status = "held"
)

// transitions holds the legal edges. held is reachable from every
// non-terminal state (administrative freeze) and exits to pending or failed.
var transitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusHeld},
	StatusApproved:   {StatusProcessing, StatusHeld},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusHeld},
	StatusFailed:     {StatusPending, StatusHeld},
	StatusHeld:       {StatusPending, StatusFailed},
	StatusCompleted:  {},
}

// Valid reports whether the status value is one the ledger knows.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge s -> to is legal.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrPayoutNotFound is returned when a payout cannot be found.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrInvalidTransition is returned for an illegal workflow edge; the
	// wrapped message names the current and attempted state.
	ErrInvalidTransition = errors.New("invalid payout transition")

	// ErrRetryExhausted is returned when a retry would exceed the maximum
	// attempt count; the payout surfaces to held for manual intervention.
	ErrRetryExhausted = errors.New("payout retry limit reached")
)

// Payout joins the ledger to the external payment rail.
type Payout struct {
	ID                   uuid.UUID
	ContractorID         uuid.UUID
	ReleaseTransactionID *uuid.UUID // nil for administrative direct payouts
	Amount               money.Money
	BankAccount          string // opaque reference understood by the gateway
	ProviderRef          string // gateway-side id, set once the gateway acknowledges
	Status               Status
	Attempts             int
	LastError            string
	ScheduledDate        time.Time
	ProcessedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// New creates a pending payout for a release transaction.
func New(
	contractorID uuid.UUID,
	releaseTransactionID *uuid.UUID,
	amount money.Money,
	bankAccount string,
) (*Payout, error) {
	if contractorID == uuid.Nil {
		return nil, errors.New("contractorID is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payout amount %s", common.ErrInvalidAmount, amount)
	}
	now := time.Now()
	return &Payout{
		ID:                   uuid.New(),
		ContractorID:         contractorID,
		ReleaseTransactionID: releaseTransactionID,
		Amount:               amount,
		BankAccount:          bankAccount,
		Status:               StatusPending,
		ScheduledDate:        now,
		CreatedAt:            now,
	}, nil
}

// transition applies one edge or fails with ErrInvalidTransition naming both
// states.
func (p *Payout) transition(to Status) error {
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	return nil
}

// Approve clears the payout for dispatch.
func (p *Payout) Approve() error {
	return p.transition(StatusApproved)
}

// StartProcessing marks the payout handed to the gateway and counts the
// attempt.
func (p *Payout) StartProcessing() error {
	if err := p.transition(StatusProcessing); err != nil {
		return err
	}
	p.Attempts++
	return nil
}

// Complete records gateway confirmation and stamps ProcessedAt exactly once.
func (p *Payout) Complete(at time.Time) error {
	if p.ProcessedAt != nil {
		return fmt.Errorf("%w: processed_at already set", ErrInvalidTransition)
	}
	if err := p.transition(StatusCompleted); err != nil {
		return err
	}
	p.ProcessedAt = &at
	return nil
}

// Fail records a gateway decline, timeout or transport failure with its
// reason. The payout stays queryable and retryable.
func (p *Payout) Fail(reason string) error {
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.LastError = reason
	return nil
}

// Retry re-enters pending from failed, bounded by maxRetries; past the bound
// the payout surfaces to held instead.
func (p *Payout) Retry(maxRetries int) error {
	if p.Status != StatusFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusPending)
	}
	if p.Attempts >= maxRetries {
		if err := p.transition(StatusHeld); err != nil {
			return err
		}
		return fmt.Errorf("%w: %d attempts", ErrRetryExhausted, p.Attempts)
	}
	return p.transition(StatusPending)
}

// Hold applies an administrative freeze.
func (p *Payout) Hold(reason string) error {
	if err := p.transition(StatusHeld); err != nil {
		return err
	}
	p.LastError = reason
	return nil
}

// ReleaseHold exits the freeze back to pending.
func (p *Payout) ReleaseHold() error {
	if p.Status != StatusHeld {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusPending)
	}
	return p.transition(StatusPending)
}
