// Package milestone governs a milestone's lifecycle and whether it is
// eligible for release.
//
// Transitions never move money themselves; a milestone reaching
// release_requested only makes it legal for the escrow account manager to
// act. That separation keeps "can we ask for money" apart from "did we move
// money".
package milestone

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a milestone.
type Status string

const (
	StatusPending          Status = "pending"
	StatusSubmitted        Status = "submitted"
	StatusApproved         Status = "approved"
	StatusReleaseRequested Status = "release_requested"
	StatusPaid             Status = "paid"
	StatusRejected         Status = "rejected"
	StatusCancelled        Status = "cancelled"
)

// transitions holds the legal edges of the state machine. paid and cancelled
// are terminal.
var transitions = map[Status][]Status{
	StatusPending:          {StatusSubmitted, StatusCancelled},
	StatusSubmitted:        {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:         {StatusReleaseRequested, StatusCancelled},
	StatusReleaseRequested: {StatusPaid, StatusCancelled},
	StatusRejected:         {StatusSubmitted, StatusCancelled},
	StatusPaid:             {},
	StatusCancelled:        {},
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
	// ErrMilestoneNotFound is returned when a milestone cannot be found.
	ErrMilestoneNotFound = errors.New("milestone not found")

	// ErrInvalidTransition is returned for an illegal state change; the
	// wrapped message names the current and attempted state.
	ErrInvalidTransition = errors.New("invalid milestone transition")

	// ErrNotReleasable is returned when a release is attempted against a
	// milestone that is not in release_requested.
	ErrNotReleasable = errors.New("milestone is not releasable")
)

// Milestone is a unit of work with a fixed price, owned by a project.
// The amount is fixed at creation; whether the escrow balance still covers
// it is checked at release time, not here.
type Milestone struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Title     string
	Amount    money.Money
	DueDate   time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Builder provides a fluent API for constructing Milestone instances.
type Builder struct {
	id        uuid.UUID
	projectID uuid.UUID
	title     string
	amount    money.Money
	dueDate   time.Time
	status    Status
	createdAt time.Time
	updatedAt time.Time
}

// New creates a Builder with a fresh UUID and pending status.
func New() *Builder {
	return &Builder{
		id:        uuid.New(),
		status:    StatusPending,
		createdAt: time.Now(),
	}
}

// WithID sets the ID for the milestone being built.
func (b *Builder) WithID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// WithProjectID sets the owning project. Mandatory.
func (b *Builder) WithProjectID(id uuid.UUID) *Builder {
	b.projectID = id
	return b
}

// WithTitle sets the human-readable title.
func (b *Builder) WithTitle(title string) *Builder {
	b.title = title
	return b
}

// WithAmount sets the fixed milestone price. Mandatory, must be positive.
func (b *Builder) WithAmount(amount money.Money) *Builder {
	b.amount = amount
	return b
}

// WithDueDate sets the due date.
func (b *Builder) WithDueDate(t time.Time) *Builder {
	b.dueDate = t
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

// Build validates invariants and returns the Milestone.
func (b *Builder) Build() (*Milestone, error) {
	if b.projectID == uuid.Nil {
		return nil, errors.New("projectID is required")
	}
	if !b.amount.IsPositive() {
		return nil, fmt.Errorf("%w: milestone amount %s", common.ErrInvalidAmount, b.amount)
	}
	if !b.status.Valid() {
		return nil, fmt.Errorf("invalid milestone status: %q", b.status)
	}
	return &Milestone{
		ID:        b.id,
		ProjectID: b.projectID,
		Title:     b.title,
		Amount:    b.amount,
		DueDate:   b.dueDate,
		Status:    b.status,
		CreatedAt: b.createdAt,
		UpdatedAt: b.updatedAt,
	}, nil
}

// transition applies one edge of the state machine or fails with
// ErrInvalidTransition naming both states.
func (m *Milestone) transition(to Status) error {
	if !m.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	m.Status = to
	return nil
}

// Submit records the contractor handing in the work.
func (m *Milestone) Submit() error {
	return m.transition(StatusSubmitted)
}

// Approve records the owner accepting the submitted work.
func (m *Milestone) Approve() error {
	return m.transition(StatusApproved)
}

// Reject sends the submitted work back to the contractor.
func (m *Milestone) Reject() error {
	return m.transition(StatusRejected)
}

// RequestRelease flips an approved milestone to release_requested. The
// dispute-gate check belongs to the service layer, inside the same atomic
// unit as this transition.
func (m *Milestone) RequestRelease() error {
	return m.transition(StatusReleaseRequested)
}

// MarkPaid is invoked only by a successful escrow release. paid is terminal
// and immutable.
func (m *Milestone) MarkPaid() error {
	if m.Status != StatusReleaseRequested {
		return fmt.Errorf("%w: milestone is %s", ErrNotReleasable, m.Status)
	}
	return m.transition(StatusPaid)
}

// Cancel terminates the milestone when its project is cancelled. Legal from
// any state except paid.
func (m *Milestone) Cancel() error {
	return m.transition(StatusCancelled)
}
