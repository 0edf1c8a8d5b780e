package repository

import (
	"context"
	"errors"

	"github.com/buildrail/escrow/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides the transaction boundary and repository access in one
// abstraction. Every repository handed out inside Do is bound to the same
// transaction, so a balance fold, a gate check and an append commit or roll
// back together.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a UoW over the given connection pool.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn inside one database transaction. Nested calls join the
// enclosing transaction instead of opening a second one.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.tx != nil {
		return fn(u)
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

// session returns the bound transaction, or fails when a repository is
// requested outside Do.
func (u *UoW) session() (*gorm.DB, error) {
	if u.tx == nil {
		return nil, errors.New("repository requested outside a transaction")
	}
	return u.tx, nil
}

func (u *UoW) ProjectRepository() (repository.ProjectRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewProjectRepository(tx), nil
}

func (u *UoW) EscrowAccountRepository() (repository.EscrowAccountRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewEscrowAccountRepository(tx), nil
}

func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewTransactionRepository(tx), nil
}

func (u *UoW) MilestoneRepository() (repository.MilestoneRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewMilestoneRepository(tx), nil
}

func (u *UoW) DisputeRepository() (repository.DisputeRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewDisputeRepository(tx), nil
}

func (u *UoW) PayoutRepository() (repository.PayoutRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewPayoutRepository(tx), nil
}

func (u *UoW) AuditRepository() (repository.AuditRepository, error) {
	tx, err := u.session()
	if err != nil {
		return nil, err
	}
	return NewAuditRepository(tx), nil
}
