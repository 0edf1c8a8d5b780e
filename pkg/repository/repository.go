// Package repository defines the data-access contracts for the ledger store.
// Implementations live in infra; services depend only on these interfaces
// plus the UnitOfWork for atomicity.
package repository

import (
	"context"

	"github.com/buildrail/escrow/pkg/dto"
	"github.com/google/uuid"
)

// ProjectRepository is data access for projects.
type ProjectRepository interface {
	Create(ctx context.Context, create dto.ProjectCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.ProjectRead, error)
	Update(ctx context.Context, id uuid.UUID, update dto.ProjectUpdate) error
}

// EscrowAccountRepository is data access for escrow accounts.
//
// GetForUpdate takes the account's row lock; every state-changing ledger
// operation on the account goes through it so the balance fold, the
// dispute-gate check and the append serialize on one row.
type EscrowAccountRepository interface {
	Create(ctx context.Context, create dto.AccountCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.AccountRead, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) (*dto.AccountRead, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*dto.AccountRead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// TransactionRepository is append-only data access for ledger rows.
type TransactionRepository interface {
	// Append inserts one row. The store's unique constraints surface as
	// common.ErrDuplicateOperation (idempotency key) or
	// escrow.ErrAlreadyReleased (release key).
	Append(ctx context.Context, create dto.TransactionCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.TransactionRead, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*dto.TransactionRead, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*dto.TransactionRead, error)
	GetReleaseForMilestone(ctx context.Context, accountID, milestoneID uuid.UUID) (*dto.TransactionRead, error)
}

// MilestoneRepository is data access for milestones.
type MilestoneRepository interface {
	Create(ctx context.Context, create dto.MilestoneCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.MilestoneRead, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.MilestoneRead, error)
	Update(ctx context.Context, id uuid.UUID, update dto.MilestoneUpdate) error
}

// DisputeRepository is data access for disputes.
type DisputeRepository interface {
	Create(ctx context.Context, create dto.DisputeCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.DisputeRead, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.DisputeRead, error)
	// AnyBlocking reports whether the project has a dispute in open or
	// under_review. It is the dispute-gate predicate and must be called
	// inside the same unit of work as the write it gates.
	AnyBlocking(ctx context.Context, projectID uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, update dto.DisputeUpdate) error
}

// PayoutRepository is data access for payouts.
type PayoutRepository interface {
	// Create inserts the payout; a violated unique release-transaction
	// constraint surfaces the already-enqueued payout instead of an error.
	Create(ctx context.Context, create dto.PayoutCreate) error
	Get(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error)
	GetByReleaseTransaction(ctx context.Context, releaseTxID uuid.UUID) (*dto.PayoutRead, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*dto.PayoutRead, error)
	Update(ctx context.Context, id uuid.UUID, update dto.PayoutUpdate) error
}

// AuditRepository is append-only data access for audit records.
type AuditRepository interface {
	Append(ctx context.Context, create dto.AuditCreate) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.AuditRead, error)
}
