// Package project defines the aggregate root that owns an escrow account.
//
// The ledger treats Project as already resolved: one owner, at most one
// contractor, exactly one escrow account once active. Bidding, messaging and
// profile concerns live outside this core.
package project

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusSetup     Status = "setup"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether the status value is one the ledger knows.
func (s Status) Valid() bool {
	switch s {
	case StatusSetup, StatusActive, StatusCompleted, StatusDisputed, StatusCancelled:
		return true
	default:
		return false
	}
}

var (
	// ErrProjectNotFound is returned when a project cannot be found.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidTransition is returned for an illegal project status change.
	ErrInvalidTransition = errors.New("invalid project transition")

	// ErrNoContractor is returned when activation is attempted before a
	// contractor has been awarded.
	ErrNoContractor = errors.New("project has no contractor")
)

// Project is the aggregate root feeding the escrow core.
type Project struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	ContractorID *uuid.UUID // nil until awarded
	Title        string
	Currency     money.Code
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Builder provides a fluent API for constructing Project instances.
type Builder struct {
	id           uuid.UUID
	ownerID      uuid.UUID
	contractorID *uuid.UUID
	title        string
	currency     money.Code
	status       Status
	createdAt    time.Time
	updatedAt    time.Time
}

// New creates a Builder with a fresh UUID, setup status and the default
// currency.
func New() *Builder {
	return &Builder{
		id:        uuid.New(),
		currency:  money.DefaultCode,
		status:    StatusSetup,
		createdAt: time.Now(),
	}
}

// WithID sets the ID for the project being built.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithOwnerID sets the owner. Mandatory.
func (b *Builder) WithOwnerID(id uuid.UUID) *Builder {
	b.ownerID = id
	return b
}

// WithContractorID sets the awarded contractor.
func (b *Builder) WithContractorID(id uuid.UUID) *Builder {
	b.contractorID = &id
	return b
}

// WithTitle sets the human-readable title.
func (b *Builder) WithTitle(title string) *Builder {
	b.title = title
	return b
}

// WithCurrency sets the project currency; every milestone, transaction and
// payout under the project is denominated in it.
func (b *Builder) WithCurrency(c money.Code) *Builder {
	b.currency = c
	return b
}

// WithStatus sets the status. For hydration from the store.
func (b *Builder) WithStatus(s Status) *Builder {
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

// Build validates invariants and returns the Project.
func (b *Builder) Build() (*Project, error) {
	if b.ownerID == uuid.Nil {
		return nil, errors.New("ownerID is required")
	}
	if !b.currency.IsValid() {
		return nil, fmt.Errorf("%w: %s", money.ErrInvalidCurrency, b.currency)
	}
	if !b.status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransition, b.status)
	}
	return &Project{
		ID:           b.id,
		OwnerID:      b.ownerID,
		ContractorID: b.contractorID,
		Title:        b.title,
		Currency:     b.currency,
		Status:       b.status,
		CreatedAt:    b.createdAt,
		UpdatedAt:    b.updatedAt,
	}, nil
}

// Award records the winning contractor. Legal only during setup.
func (p *Project) Award(contractorID uuid.UUID) error {
	if p.Status != StatusSetup {
		return fmt.Errorf("%w: cannot award contractor in %q", ErrInvalidTransition, p.Status)
	}
	if contractorID == uuid.Nil {
		return errors.New("contractorID is required")
	}
	p.ContractorID = &contractorID
	return nil
}

// Activate moves the project into active, which is when the escrow account
// and milestones come into existence.
func (p *Project) Activate() error {
	if p.Status != StatusSetup {
		return fmt.Errorf("%w: cannot activate from %q", ErrInvalidTransition, p.Status)
	}
	if p.ContractorID == nil {
		return ErrNoContractor
	}
	p.Status = StatusActive
	return nil
}

// Complete marks the project finished. Legal only from active.
func (p *Project) Complete() error {
	if p.Status != StatusActive {
		return fmt.Errorf("%w: cannot complete from %q", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusCompleted
	return nil
}

// Dispute marks the project gated while a dispute is open.
func (p *Project) Dispute() error {
	if p.Status != StatusActive {
		return fmt.Errorf("%w: cannot dispute from %q", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusDisputed
	return nil
}

// Reactivate lifts the gate after the last blocking dispute closes.
func (p *Project) Reactivate() error {
	if p.Status != StatusDisputed {
		return fmt.Errorf("%w: cannot reactivate from %q", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusActive
	return nil
}

// Cancel terminates the project. Completed and cancelled projects stay put.
func (p *Project) Cancel() error {
	switch p.Status {
	case StatusCompleted, StatusCancelled:
		return fmt.Errorf("%w: cannot cancel from %q", ErrInvalidTransition, p.Status)
	}
	p.Status = StatusCancelled
	return nil
}
