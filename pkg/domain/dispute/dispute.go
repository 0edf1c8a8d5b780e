// Package dispute models the per-project gate that blocks fund movement.
//
// The gate is not a table of its own: it is the predicate "any dispute for
// the project is open or under review". Services consult it inside the same
// atomic unit as the balance check, never as a separate prior read.
package dispute

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a dispute.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusDismissed   Status = "dismissed"
)

// Valid reports whether the status value is one the ledger knows.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusResolved, StatusDismissed:
		return true
	default:
		return false
	}
}

// Blocking reports whether a dispute in this status gates the project.
func (s Status) Blocking() bool {
	return s == StatusOpen || s == StatusUnderReview
}

var (
	// ErrDisputeNotFound is returned when a dispute cannot be found.
	ErrDisputeNotFound = errors.New("dispute not found")

	// ErrProjectGated is returned when a release or release request hits a
	// project with an active dispute.
	ErrProjectGated = errors.New("project is gated by an open dispute")

	// ErrDisputeClosed is returned when resolving an already-closed dispute.
	ErrDisputeClosed = errors.New("dispute already closed")

	// ErrInvalidOutcome is returned when a resolution outcome is neither
	// resolved nor dismissed.
	ErrInvalidOutcome = errors.New("invalid dispute outcome")
)

// Dispute is raised by either project party and closed only by an
// adjudicator action external to this core.
type Dispute struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	RaisedBy   uuid.UUID
	Reason     string
	Status     Status
	OpenedAt   time.Time
	ResolvedAt *time.Time
}

// Open creates a new dispute in the open state.
func Open(projectID, raisedBy uuid.UUID, reason string) (*Dispute, error) {
	if projectID == uuid.Nil {
		return nil, errors.New("projectID is required")
	}
	if raisedBy == uuid.Nil {
		return nil, errors.New("raisedBy is required")
	}
	return &Dispute{
		ID:        uuid.New(),
		ProjectID: projectID,
		RaisedBy:  raisedBy,
		Reason:    reason,
		Status:    StatusOpen,
		OpenedAt:  time.Now(),
	}, nil
}

// StartReview moves an open dispute under adjudicator review. The project
// stays gated.
func (d *Dispute) StartReview() error {
	if d.Status != StatusOpen {
		return fmt.Errorf("%w: dispute is %s", ErrDisputeClosed, d.Status)
	}
	d.Status = StatusUnderReview
	return nil
}

// Resolve closes the dispute with the adjudicator's outcome and stamps
// ResolvedAt. Opening the gate again requires a new dispute.
func (d *Dispute) Resolve(outcome Status) error {
	if !d.Status.Blocking() {
		return fmt.Errorf("%w: dispute is %s", ErrDisputeClosed, d.Status)
	}
	if outcome != StatusResolved && outcome != StatusDismissed {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	now := time.Now()
	d.Status = outcome
	d.ResolvedAt = &now
	return nil
}
