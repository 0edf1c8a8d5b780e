package dto

import (
	"time"

	"github.com/google/uuid"
)

// PayoutRead is a read-optimized DTO for payout queries.
type PayoutRead struct {
	ID                   uuid.UUID
	ContractorID         uuid.UUID
	ReleaseTransactionID *uuid.UUID
	Amount               int64
	Currency             string
	BankAccount          string
	ProviderRef          string
	Status               string
	Attempts             int
	LastError            string
	ScheduledDate        time.Time
	ProcessedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PayoutCreate is a DTO for enqueuing a payout.
type PayoutCreate struct {
	ID                   uuid.UUID
	ContractorID         uuid.UUID
	ReleaseTransactionID *uuid.UUID
	Amount               int64
	Currency             string
	BankAccount          string
	Status               string
	ScheduledDate        time.Time
}

// PayoutUpdate is a DTO for workflow updates. ProcessedAt is accepted only
// by the transition into completed; the repository rejects any later write.
type PayoutUpdate struct {
	Status      *string
	Attempts    *int
	LastError   *string
	ProviderRef *string
	ProcessedAt *time.Time
}

// DisputeRead is a read-optimized DTO for dispute queries.
type DisputeRead struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	RaisedBy   uuid.UUID
	Reason     string
	Status     string
	OpenedAt   time.Time
	ResolvedAt *time.Time
}

// DisputeCreate is a DTO for opening a dispute.
type DisputeCreate struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	RaisedBy  uuid.UUID
	Reason    string
	Status    string
}

// DisputeUpdate is a DTO for closing or reviewing a dispute.
type DisputeUpdate struct {
	Status     *string
	ResolvedAt *time.Time
}

// AuditCreate is a DTO for appending an audit record.
type AuditCreate struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Entity    string
	EntityID  uuid.UUID
	Actor     uuid.UUID
	FromState string
	ToState   string
	Note      string
	At        time.Time
}

// AuditRead is a read-optimized DTO for audit queries.
type AuditRead struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Entity    string
	EntityID  uuid.UUID
	Actor     uuid.UUID
	FromState string
	ToState   string
	Note      string
	At        time.Time
}
