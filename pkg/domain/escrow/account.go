// Package escrow models the per-project escrow account and its append-only
// transaction log.
//
// The log is the system of record: balances and statuses are views computed
// by folding it. No transaction row is ever mutated or deleted, and the
// account itself carries no balance field at all.
package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
)

var (
	// ErrAccountNotFound is returned when an escrow account cannot be found.
	ErrAccountNotFound = errors.New("escrow account not found")

	// ErrAccountClosed is returned when a mutation targets a closed account.
	ErrAccountClosed = errors.New("escrow account is closed")

	// ErrAccountFrozen is returned when a mutation targets an account frozen
	// after a failed invariant check. Frozen accounts accept no writes until
	// a manual audit clears them.
	ErrAccountFrozen = errors.New("escrow account is frozen pending audit")

	// ErrInsufficientFunds is returned when a release or refund would drive
	// the available balance negative.
	ErrInsufficientFunds = errors.New("insufficient escrow funds")

	// ErrAlreadyReleased is returned when a milestone already has a release
	// transaction.
	ErrAlreadyReleased = errors.New("milestone already released")

	// ErrLedgerCorruption is returned when the transaction log violates a
	// ledger invariant. Corruption is reported, never patched.
	ErrLedgerCorruption = errors.New("ledger corruption detected")
)

// AccountStatus is the lifecycle state of an escrow account.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
	// AccountFrozen is entered only by the reconciler on a failed invariant
	// check; there is no business transition into it.
	AccountFrozen AccountStatus = "frozen"
)

// Valid reports whether the status value is within the supported range.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountClosed, AccountFrozen:
		return true
	default:
		return false
	}
}

// Account is the escrow account owned 1:1 by a project.
type Account struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Currency  money.Code
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Builder provides a fluent API for constructing Account instances.
type Builder struct {
	id        uuid.UUID
	projectID uuid.UUID
	currency  money.Code
	status    AccountStatus
	createdAt time.Time
	updatedAt time.Time
}

// New creates a Builder with a fresh UUID, active status and the default
// currency.
func New() *Builder {
	return &Builder{
		id:        uuid.New(),
		currency:  money.DefaultCode,
		status:    AccountActive,
		createdAt: time.Now(),
	}
}

// WithID sets the ID for the account being built.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithProjectID sets the owning project. Mandatory.
func (b *Builder) WithProjectID(id uuid.UUID) *Builder {
	b.projectID = id
	return b
}

// WithCurrency sets the account currency.
func (b *Builder) WithCurrency(c money.Code) *Builder {
	b.currency = c
	return b
}

// WithStatus sets the status. For hydration from the store.
func (b *Builder) WithStatus(s AccountStatus) *Builder {
	b.status = s
	return b
}

// WithCreatedAt sets the creation timestamp. For hydration from the store.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// WithUpdatedAt sets the last-updated timestamp. For hydration from the store.
func (b *Builder) WithUpdatedAt(t time.Time) *Builder {
	b.updatedAt = t
	return b
}

// Build validates invariants and returns the Account.
func (b *Builder) Build() (*Account, error) {
	if b.projectID == uuid.Nil {
		return nil, errors.New("projectID is required")
	}
	if !b.currency.IsValid() {
		return nil, fmt.Errorf("%w: %s", money.ErrInvalidCurrency, b.currency)
	}
	if !b.status.Valid() {
		return nil, fmt.Errorf("invalid account status: %q", b.status)
	}
	return &Account{
		ID:        b.id,
		ProjectID: b.projectID,
		Currency:  b.currency,
		Status:    b.status,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}, nil
}

// ValidateWritable checks that the account accepts new transactions.
func (a *Account) ValidateWritable() error {
	switch a.Status {
	case AccountClosed:
		return ErrAccountClosed
	case AccountFrozen:
		return ErrAccountFrozen
	}
	return nil
}

// ValidateAmount checks that an operation amount is positive and in the
// account currency.
func (a *Account) ValidateAmount(amount money.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", common.ErrInvalidAmount, amount)
	}
	if amount.Currency() != a.Currency {
		return fmt.Errorf("%w: account %s, amount %s",
			money.ErrMismatchedCurrencies, a.Currency, amount.Currency())
	}
	return nil
}
