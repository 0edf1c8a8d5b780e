package repository

import (
	"context"

	"github.com/buildrail/escrow/infra/model"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type milestoneRepository struct {
	db *gorm.DB
}

// NewMilestoneRepository creates a CQRS-style milestone repository.
func NewMilestoneRepository(db *gorm.DB) repository.MilestoneRepository {
	return &milestoneRepository{db: db}
}

func (r *milestoneRepository) Create(ctx context.Context, create dto.MilestoneCreate) error {
	row := model.Milestone{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		Title:     create.Title,
		Amount:    create.Amount,
		Currency:  create.Currency,
		DueDate:   create.DueDate,
		Status:    create.Status,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, milestonedomain.ErrMilestoneNotFound)
}

func (r *milestoneRepository) Get(ctx context.Context, id uuid.UUID) (*dto.MilestoneRead, error) {
	var row model.Milestone
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err, milestonedomain.ErrMilestoneNotFound)
	}
	return mapMilestoneToDTO(&row), nil
}

func (r *milestoneRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.MilestoneRead, error) {
	var rows []model.Milestone
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("due_date ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, milestonedomain.ErrMilestoneNotFound)
	}
	result := make([]*dto.MilestoneRead, 0, len(rows))
	for i := range rows {
		result = append(result, mapMilestoneToDTO(&rows[i]))
	}
	return result, nil
}

func (r *milestoneRepository) Update(ctx context.Context, id uuid.UUID, update dto.MilestoneUpdate) error {
	updates := make(map[string]any)
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Milestone{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return mapError(res.Error, milestonedomain.ErrMilestoneNotFound)
	}
	if res.RowsAffected == 0 {
		return milestonedomain.ErrMilestoneNotFound
	}
	return nil
}

func mapMilestoneToDTO(row *model.Milestone) *dto.MilestoneRead {
	return &dto.MilestoneRead{
		ID:        row.ID,
		ProjectID: row.ProjectID,
		Title:     row.Title,
		Amount:    row.Amount,
		Currency:  row.Currency,
		DueDate:   row.DueDate,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
