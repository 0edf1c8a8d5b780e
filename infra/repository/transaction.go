package repository

import (
	"context"
	"fmt"

	"github.com/buildrail/escrow/infra/model"
	"github.com/buildrail/escrow/pkg/domain/common"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates the append-only ledger row store.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

// Append inserts one ledger row. Release rows also get a release key, so a
// racing second release of the same milestone dies on the unique index and
// comes back as ErrAlreadyReleased.
func (r *transactionRepository) Append(ctx context.Context, create dto.TransactionCreate) error {
	row := model.Transaction{
		ID:             create.ID,
		AccountID:      create.AccountID,
		Type:           create.Type,
		Amount:         create.Amount,
		Currency:       create.Currency,
		MilestoneID:    create.MilestoneID,
		Reason:         create.Reason,
		IdempotencyKey: create.IdempotencyKey,
	}
	if create.Type == string(escrowdomain.TxRelease) && create.MilestoneID != nil {
		key := releaseKey(create.AccountID, *create.MilestoneID)
		row.ReleaseKey = &key
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, common.ErrNotFound)
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*dto.TransactionRead, error) {
	var row model.Transaction
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err, common.ErrNotFound)
	}
	return mapTransactionToDTO(&row), nil
}

func (r *transactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*dto.TransactionRead, error) {
	var rows []model.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, common.ErrNotFound)
	}
	result := make([]*dto.TransactionRead, 0, len(rows))
	for i := range rows {
		result = append(result, mapTransactionToDTO(&rows[i]))
	}
	return result, nil
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*dto.TransactionRead, error) {
	var row model.Transaction
	if err := r.db.WithContext(ctx).First(&row, "idempotency_key = ?", key).Error; err != nil {
		return nil, mapError(err, common.ErrNotFound)
	}
	return mapTransactionToDTO(&row), nil
}

func (r *transactionRepository) GetReleaseForMilestone(ctx context.Context, accountID, milestoneID uuid.UUID) (*dto.TransactionRead, error) {
	var row model.Transaction
	key := releaseKey(accountID, milestoneID)
	if err := r.db.WithContext(ctx).First(&row, "release_key = ?", key).Error; err != nil {
		return nil, mapError(err, common.ErrNotFound)
	}
	return mapTransactionToDTO(&row), nil
}

func releaseKey(accountID, milestoneID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", accountID, milestoneID)
}

func mapTransactionToDTO(row *model.Transaction) *dto.TransactionRead {
	return &dto.TransactionRead{
		ID:             row.ID,
		AccountID:      row.AccountID,
		Type:           row.Type,
		Amount:         row.Amount,
		Currency:       row.Currency,
		MilestoneID:    row.MilestoneID,
		Reason:         row.Reason,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.CreatedAt,
	}
}
