package dto

import (
	"time"

	"github.com/google/uuid"
)

// AccountRead is a read-optimized DTO for escrow account queries.
type AccountRead struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Currency  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountCreate is a DTO for opening an escrow account.
type AccountCreate struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Currency  string
	Status    string
}

// AccountUpdate is a DTO for partial escrow account updates.
type AccountUpdate struct {
	Status *string
}

// TransactionCreate is a DTO for appending one ledger row. Rows are
// append-only; there is deliberately no TransactionUpdate.
type TransactionCreate struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Type           string
	Amount         int64 // smallest currency unit
	Currency       string
	MilestoneID    *uuid.UUID
	Reason         string
	IdempotencyKey string
}

// TransactionRead is a read-optimized DTO for ledger rows.
type TransactionRead struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Type           string
	Amount         int64
	Currency       string
	MilestoneID    *uuid.UUID
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// BalanceRead is the folded balance view returned to callers.
type BalanceRead struct {
	AccountID      uuid.UUID `json:"account_id"`
	Currency       string    `json:"currency"`
	TotalDeposited int64     `json:"total_deposited"`
	Released       int64     `json:"released"`
	Refunded       int64     `json:"refunded"`
	Held           int64     `json:"held"`
	Available      int64     `json:"available"`
}
