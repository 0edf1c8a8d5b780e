package repository

import "context"

// UnitOfWork is the transaction boundary for ledger mutations.
//
// Do runs fn inside one store transaction; every repository obtained from
// the UnitOfWork passed to fn is bound to that transaction, so the balance
// fold, the dispute-gate check and the append are indivisible. If fn returns
// an error the transaction rolls back.
//
// Typed accessors return (repo, error) so implementations can fail fast on
// a missing binding rather than panic mid-transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	ProjectRepository() (ProjectRepository, error)
	EscrowAccountRepository() (EscrowAccountRepository, error)
	TransactionRepository() (TransactionRepository, error)
	MilestoneRepository() (MilestoneRepository, error)
	DisputeRepository() (DisputeRepository, error)
	PayoutRepository() (PayoutRepository, error)
	AuditRepository() (AuditRepository, error)
}
