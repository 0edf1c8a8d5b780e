package repository

import (
	"context"

	"github.com/buildrail/escrow/infra/model"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type escrowAccountRepository struct {
	db *gorm.DB
}

// NewEscrowAccountRepository creates a CQRS-style escrow account repository.
func NewEscrowAccountRepository(db *gorm.DB) repository.EscrowAccountRepository {
	return &escrowAccountRepository{db: db}
}

func (r *escrowAccountRepository) Create(ctx context.Context, create dto.AccountCreate) error {
	row := model.EscrowAccount{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		Currency:  create.Currency,
		Status:    create.Status,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, escrowdomain.ErrAccountNotFound)
}

func (r *escrowAccountRepository) Get(ctx context.Context, id uuid.UUID) (*dto.AccountRead, error) {
	var row model.EscrowAccount
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err, escrowdomain.ErrAccountNotFound)
	}
	return mapAccountToDTO(&row), nil
}

func (r *escrowAccountRepository) GetByProject(ctx context.Context, projectID uuid.UUID) (*dto.AccountRead, error) {
	var row model.EscrowAccount
	if err := r.db.WithContext(ctx).First(&row, "project_id = ?", projectID).Error; err != nil {
		return nil, mapError(err, escrowdomain.ErrAccountNotFound)
	}
	return mapAccountToDTO(&row), nil
}

// GetForUpdate takes the account's row lock for the rest of the enclosing
// transaction. Outside a transaction the lock is pointless, so callers go
// through the unit of work.
func (r *escrowAccountRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*dto.AccountRead, error) {
	var row model.EscrowAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, mapError(err, escrowdomain.ErrAccountNotFound)
	}
	return mapAccountToDTO(&row), nil
}

func (r *escrowAccountRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res := r.db.WithContext(ctx).
		Model(&model.EscrowAccount{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return mapError(res.Error, escrowdomain.ErrAccountNotFound)
	}
	if res.RowsAffected == 0 {
		return escrowdomain.ErrAccountNotFound
	}
	return nil
}

func mapAccountToDTO(row *model.EscrowAccount) *dto.AccountRead {
	return &dto.AccountRead{
		ID:        row.ID,
		ProjectID: row.ProjectID,
		Currency:  row.Currency,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
