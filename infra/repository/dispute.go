package repository

import (
	"context"

	"github.com/buildrail/escrow/infra/model"
	disputedomain "github.com/buildrail/escrow/pkg/domain/dispute"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type disputeRepository struct {
	db *gorm.DB
}

// NewDisputeRepository creates a CQRS-style dispute repository.
func NewDisputeRepository(db *gorm.DB) repository.DisputeRepository {
	return &disputeRepository{db: db}
}

func (r *disputeRepository) Create(ctx context.Context, create dto.DisputeCreate) error {
	row := model.Dispute{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		RaisedBy:  create.RaisedBy,
		Reason:    create.Reason,
		Status:    create.Status,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, disputedomain.ErrDisputeNotFound)
}

func (r *disputeRepository) Get(ctx context.Context, id uuid.UUID) (*dto.DisputeRead, error) {
	var row model.Dispute
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err, disputedomain.ErrDisputeNotFound)
	}
	return mapDisputeToDTO(&row), nil
}

func (r *disputeRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.DisputeRead, error) {
	var rows []model.Dispute
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, disputedomain.ErrDisputeNotFound)
	}
	result := make([]*dto.DisputeRead, 0, len(rows))
	for i := range rows {
		result = append(result, mapDisputeToDTO(&rows[i]))
	}
	return result, nil
}

// AnyBlocking is the dispute-gate predicate. Callers run it inside the
// same transaction as the write being gated.
func (r *disputeRepository) AnyBlocking(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Dispute{}).
		Where("project_id = ? AND status IN ?", projectID, []string{
			string(disputedomain.StatusOpen),
			string(disputedomain.StatusUnderReview),
		}).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, disputedomain.ErrDisputeNotFound)
	}
	return count > 0, nil
}

func (r *disputeRepository) Update(ctx context.Context, id uuid.UUID, update dto.DisputeUpdate) error {
	updates := make(map[string]any)
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.ResolvedAt != nil {
		updates["resolved_at"] = *update.ResolvedAt
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Dispute{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return mapError(res.Error, disputedomain.ErrDisputeNotFound)
	}
	if res.RowsAffected == 0 {
		return disputedomain.ErrDisputeNotFound
	}
	return nil
}

func mapDisputeToDTO(row *model.Dispute) *dto.DisputeRead {
	return &dto.DisputeRead{
		ID:         row.ID,
		ProjectID:  row.ProjectID,
		RaisedBy:   row.RaisedBy,
		Reason:     row.Reason,
		Status:     row.Status,
		OpenedAt:   row.CreatedAt,
		ResolvedAt: row.ResolvedAt,
	}
}
