package repository

import (
	"context"
	"time"

	"github.com/buildrail/escrow/infra/model"
	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type payoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository creates a CQRS-style payout repository.
func NewPayoutRepository(db *gorm.DB) repository.PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(ctx context.Context, create dto.PayoutCreate) error {
	row := model.Payout{
		ID:                   create.ID,
		ContractorID:         create.ContractorID,
		ReleaseTransactionID: create.ReleaseTransactionID,
		Amount:               create.Amount,
		Currency:             create.Currency,
		BankAccount:          create.BankAccount,
		Status:               create.Status,
		ScheduledDate:        create.ScheduledDate,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, payoutdomain.ErrPayoutNotFound)
}

func (r *payoutRepository) Get(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error) {
	var row model.Payout
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err, payoutdomain.ErrPayoutNotFound)
	}
	return mapPayoutToDTO(&row), nil
}

// GetForUpdate takes the payout's row lock so workflow transitions and the
// dispatch claim serialize.
func (r *payoutRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error) {
	var row model.Payout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, mapError(err, payoutdomain.ErrPayoutNotFound)
	}
	return mapPayoutToDTO(&row), nil
}

func (r *payoutRepository) GetByReleaseTransaction(ctx context.Context, releaseTxID uuid.UUID) (*dto.PayoutRead, error) {
	var row model.Payout
	if err := r.db.WithContext(ctx).First(&row, "release_transaction_id = ?", releaseTxID).Error; err != nil {
		return nil, mapError(err, payoutdomain.ErrPayoutNotFound)
	}
	return mapPayoutToDTO(&row), nil
}

func (r *payoutRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*dto.PayoutRead, error) {
	var rows []model.Payout
	q := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("scheduled_date ASC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err, payoutdomain.ErrPayoutNotFound)
	}
	result := make([]*dto.PayoutRead, 0, len(rows))
	for i := range rows {
		result = append(result, mapPayoutToDTO(&rows[i]))
	}
	return result, nil
}

// Update applies a workflow update. processed_at is written only while
// still unset; a second write is silently ignored so the completion
// timestamp can never drift.
func (r *payoutRepository) Update(ctx context.Context, id uuid.UUID, update dto.PayoutUpdate) error {
	updates := make(map[string]any)
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.Attempts != nil {
		updates["attempts"] = *update.Attempts
	}
	if update.LastError != nil {
		updates["last_error"] = *update.LastError
	}
	if update.ProviderRef != nil {
		updates["provider_ref"] = *update.ProviderRef
	}
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&model.Payout{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return mapError(res.Error, payoutdomain.ErrPayoutNotFound)
		}
		if res.RowsAffected == 0 {
			return payoutdomain.ErrPayoutNotFound
		}
	}
	if update.ProcessedAt != nil {
		return r.setProcessedAt(ctx, id, *update.ProcessedAt)
	}
	return nil
}

func (r *payoutRepository) setProcessedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Payout{}).
		Where("id = ? AND processed_at IS NULL", id).
		Update("processed_at", at)
	return mapError(res.Error, payoutdomain.ErrPayoutNotFound)
}

func mapPayoutToDTO(row *model.Payout) *dto.PayoutRead {
	return &dto.PayoutRead{
		ID:                   row.ID,
		ContractorID:         row.ContractorID,
		ReleaseTransactionID: row.ReleaseTransactionID,
		Amount:               row.Amount,
		Currency:             row.Currency,
		BankAccount:          row.BankAccount,
		ProviderRef:          row.ProviderRef,
		Status:               row.Status,
		Attempts:             row.Attempts,
		LastError:            row.LastError,
		ScheduledDate:        row.ScheduledDate,
		ProcessedAt:          row.ProcessedAt,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}
