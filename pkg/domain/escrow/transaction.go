package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
)

// TxType is the kind of ledger transaction.
type TxType string

const (
	TxDeposit        TxType = "deposit"
	TxHoldAdjustment TxType = "hold_adjustment"
	TxRelease        TxType = "release"
	TxRefund         TxType = "refund"
)

// Valid reports whether the transaction type is one the ledger knows.
func (t TxType) Valid() bool {
	switch t {
	case TxDeposit, TxHoldAdjustment, TxRelease, TxRefund:
		return true
	default:
		return false
	}
}

// Transaction is a single append-only ledger row. Once created it is
// immutable; corrections are new transactions, never edits.
type Transaction struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Type           TxType
	Amount         money.Money
	MilestoneID    *uuid.UUID // required for type=release, nil otherwise
	Reason         string     // free text, set for refunds and adjustments
	IdempotencyKey string
	CreatedAt      time.Time
}

// NewTransaction validates and constructs a ledger transaction.
func NewTransaction(
	accountID uuid.UUID,
	txType TxType,
	amount money.Money,
	milestoneID *uuid.UUID,
	idempotencyKey string,
) (*Transaction, error) {
	if accountID == uuid.Nil {
		return nil, errors.New("accountID is required")
	}
	if !txType.Valid() {
		return nil, fmt.Errorf("invalid transaction type: %q", txType)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", common.ErrInvalidAmount, amount)
	}
	if idempotencyKey == "" {
		return nil, common.ErrMissingIdempotencyKey
	}
	if txType == TxRelease && milestoneID == nil {
		return nil, errors.New("release transaction requires a milestone")
	}
	if txType != TxRelease && milestoneID != nil {
		return nil, fmt.Errorf("milestone set on %s transaction", txType)
	}
	return &Transaction{
		ID:             uuid.New(),
		AccountID:      accountID,
		Type:           txType,
		Amount:         amount,
		MilestoneID:    milestoneID,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}, nil
}

// Matches reports whether a stored transaction corresponds to the same
// logical operation, used to decide whether an idempotency-key hit is a safe
// replay or a key collision. For releases the milestone is part of the
// operation's identity; the same key against a different milestone is a
// collision even when the amount happens to match.
func (t *Transaction) Matches(accountID uuid.UUID, txType TxType, amount money.Money, milestoneID *uuid.UUID) bool {
	if t.AccountID != accountID || t.Type != txType || !t.Amount.Equals(amount) {
		return false
	}
	if t.MilestoneID == nil || milestoneID == nil {
		return t.MilestoneID == nil && milestoneID == nil
	}
	return *t.MilestoneID == *milestoneID
}
