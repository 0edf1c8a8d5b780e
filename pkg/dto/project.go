package dto

import (
	"time"

	"github.com/google/uuid"
)

// ProjectRead is a read-optimized DTO for project queries.
type ProjectRead struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	ContractorID *uuid.UUID
	Title        string
	Currency     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProjectCreate is a DTO for registering a project with the ledger.
type ProjectCreate struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Title    string
	Currency string
	Status   string
}

// ProjectUpdate is a DTO for partial project updates.
type ProjectUpdate struct {
	ContractorID *uuid.UUID
	Status       *string
}

// MilestoneRead is a read-optimized DTO for milestone queries.
type MilestoneRead struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Title     string
	Amount    int64
	Currency  string
	DueDate   time.Time
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MilestoneCreate is a DTO for creating a milestone.
type MilestoneCreate struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Title     string
	Amount    int64
	Currency  string
	DueDate   time.Time
	Status    string
}

// MilestoneUpdate is a DTO for partial milestone updates.
type MilestoneUpdate struct {
	Status *string
}
