package escrow

import (
	"fmt"

	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
)

// Balance is the view computed by folding an account's transaction log.
// Conservation holds by construction:
//
//	TotalDeposited = Released + Refunded + Available
type Balance struct {
	AccountID      uuid.UUID
	TotalDeposited money.Money
	Released       money.Money
	Refunded       money.Money
	Held           money.Money // net hold adjustments
	Available      money.Money
}

// Fold replays the transaction log and returns the derived balance.
// The log must be single-currency and internally consistent; any violation
// is reported as ErrLedgerCorruption, never repaired here.
func Fold(accountID uuid.UUID, currency money.Code, txs []*Transaction) (Balance, error) {
	b := Balance{
		AccountID:      accountID,
		TotalDeposited: money.Zero(currency),
		Released:       money.Zero(currency),
		Refunded:       money.Zero(currency),
		Held:           money.Zero(currency),
		Available:      money.Zero(currency),
	}
	seenKeys := make(map[string]struct{}, len(txs))
	releasedMilestones := make(map[uuid.UUID]struct{})
	var err error
	for _, tx := range txs {
		if tx.AccountID != accountID {
			return Balance{}, fmt.Errorf("%w: transaction %s belongs to account %s",
				ErrLedgerCorruption, tx.ID, tx.AccountID)
		}
		if !tx.Amount.IsPositive() {
			return Balance{}, fmt.Errorf("%w: transaction %s has non-positive amount",
				ErrLedgerCorruption, tx.ID)
		}
		if tx.Amount.Currency() != currency {
			return Balance{}, fmt.Errorf("%w: transaction %s in %s on %s account",
				ErrLedgerCorruption, tx.ID, tx.Amount.Currency(), currency)
		}
		if _, dup := seenKeys[tx.IdempotencyKey]; dup {
			return Balance{}, fmt.Errorf("%w: idempotency key %q appears twice",
				ErrLedgerCorruption, tx.IdempotencyKey)
		}
		seenKeys[tx.IdempotencyKey] = struct{}{}

		switch tx.Type {
		case TxDeposit:
			if b.TotalDeposited, err = b.TotalDeposited.Add(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
			if b.Available, err = b.Available.Add(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
		case TxRelease:
			if tx.MilestoneID == nil {
				return Balance{}, fmt.Errorf("%w: release %s has no milestone",
					ErrLedgerCorruption, tx.ID)
			}
			if _, dup := releasedMilestones[*tx.MilestoneID]; dup {
				return Balance{}, fmt.Errorf("%w: milestone %s released twice",
					ErrLedgerCorruption, *tx.MilestoneID)
			}
			releasedMilestones[*tx.MilestoneID] = struct{}{}
			if b.Released, err = b.Released.Add(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
			if b.Available, err = b.Available.Subtract(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
		case TxRefund:
			if b.Refunded, err = b.Refunded.Add(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
			if b.Available, err = b.Available.Subtract(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
		case TxHoldAdjustment:
			if b.Held, err = b.Held.Add(tx.Amount); err != nil {
				return Balance{}, fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
			}
		default:
			return Balance{}, fmt.Errorf("%w: unknown transaction type %q",
				ErrLedgerCorruption, tx.Type)
		}
	}
	if b.Available.IsNegative() {
		return Balance{}, fmt.Errorf("%w: available balance is %s",
			ErrLedgerCorruption, b.Available)
	}
	return b, nil
}

// CanDebit checks a release or refund against the available balance.
// Overdrafts are rejected, never clamped.
func (b Balance) CanDebit(amount money.Money) error {
	ok, err := b.Available.GreaterThanOrEqual(amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: available %s, requested %s",
			ErrInsufficientFunds, b.Available, amount)
	}
	return nil
}

// Verify re-checks the conservation identity on an already-folded balance.
// Fold computes Available incrementally, so this is the independent cross
// check the reconciler runs.
func (b Balance) Verify() error {
	spent, err := b.Released.Add(b.Refunded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
	}
	spent, err = spent.Add(b.Available)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerCorruption, err)
	}
	if !b.TotalDeposited.Equals(spent) {
		return fmt.Errorf("%w: deposited %s but releases+refunds+available is %s",
			ErrLedgerCorruption, b.TotalDeposited, spent)
	}
	if b.Available.IsNegative() {
		return fmt.Errorf("%w: available balance is %s", ErrLedgerCorruption, b.Available)
	}
	return nil
}
