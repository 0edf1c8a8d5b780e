// Package audit defines the transition records consumed by the
// reconciliation API. Every milestone, payout and dispute transition writes
// one, inside the same transaction as the transition itself.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Record is one state transition as seen by an auditor.
type Record struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Entity    string // "milestone", "payout", "dispute", "account"
	EntityID  uuid.UUID
	Actor     uuid.UUID // zero for system-driven transitions
	FromState string
	ToState   string
	Note      string
	At        time.Time
}

// NewRecord constructs an audit record stamped now.
func NewRecord(projectID uuid.UUID, entity string, entityID, actor uuid.UUID, from, to, note string) *Record {
	return &Record{
		ID:        uuid.New(),
		ProjectID: projectID,
		Entity:    entity,
		EntityID:  entityID,
		Actor:     actor,
		FromState: from,
		ToState:   to,
		Note:      note,
		At:        time.Now(),
	}
}
