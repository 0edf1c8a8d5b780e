// Package events defines the domain events published on the in-process bus.
// Subscribers observe; nothing financial depends on delivery. The ledger's
// state of record is the transaction log, not the bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the marker interface for everything carried on the bus.
type Event interface {
	EventType() string
}

// DepositReceived fires after a deposit transaction commits.
type DepositReceived struct {
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Amount        int64
	Currency      string
}

func (DepositReceived) EventType() string { return "escrow.deposit_received" }

// FundsReleased fires after a release transaction commits, with the payout
// that was enqueued for it.
type FundsReleased struct {
	AccountID     uuid.UUID
	MilestoneID   uuid.UUID
	TransactionID uuid.UUID
	PayoutID      uuid.UUID
	Amount        int64
	Currency      string
}

func (FundsReleased) EventType() string { return "escrow.funds_released" }

// FundsRefunded fires after a refund transaction commits.
type FundsRefunded struct {
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Amount        int64
	Currency      string
	Reason        string
}

func (FundsRefunded) EventType() string { return "escrow.funds_refunded" }

// MilestoneTransitioned fires for every milestone state change.
type MilestoneTransitioned struct {
	ProjectID   uuid.UUID
	MilestoneID uuid.UUID
	Actor       uuid.UUID
	From        string
	To          string
}

func (MilestoneTransitioned) EventType() string { return "milestone.transitioned" }

// DisputeOpened fires when a project becomes gated.
type DisputeOpened struct {
	ProjectID uuid.UUID
	DisputeID uuid.UUID
	RaisedBy  uuid.UUID
}

func (DisputeOpened) EventType() string { return "dispute.opened" }

// DisputeClosed fires when the gate lifts.
type DisputeClosed struct {
	ProjectID uuid.UUID
	DisputeID uuid.UUID
	Outcome   string
}

func (DisputeClosed) EventType() string { return "dispute.closed" }

// PayoutCompleted fires when the gateway confirms a payout.
type PayoutCompleted struct {
	PayoutID    uuid.UUID
	ProcessedAt time.Time
}

func (PayoutCompleted) EventType() string { return "payout.completed" }

// PayoutFailed fires when a dispatch fails or times out.
type PayoutFailed struct {
	PayoutID uuid.UUID
	Reason   string
	Attempts int
}

func (PayoutFailed) EventType() string { return "payout.failed" }

// LedgerCorruptionDetected fires when VerifyInvariants finds a violated
// invariant; the account has already been frozen when subscribers see it.
type LedgerCorruptionDetected struct {
	AccountID uuid.UUID
	Detail    string
}

func (LedgerCorruptionDetected) EventType() string { return "ledger.corruption_detected" }
