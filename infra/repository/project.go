package repository

import (
	"context"

	"github.com/buildrail/escrow/infra/model"
	projectdomain "github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a CQRS-style project repository.
func NewProjectRepository(db *gorm.DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, create dto.ProjectCreate) error {
	row := model.Project{
		ID:       create.ID,
		OwnerID:  create.OwnerID,
		Title:    create.Title,
		Currency: create.Currency,
		Status:   create.Status,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, projectdomain.ErrProjectNotFound)
}

func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*dto.ProjectRead, error) {
	var row model.Project
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err, projectdomain.ErrProjectNotFound)
	}
	return mapProjectToDTO(&row), nil
}

func (r *projectRepository) Update(ctx context.Context, id uuid.UUID, update dto.ProjectUpdate) error {
	updates := make(map[string]any)
	if update.ContractorID != nil {
		updates["contractor_id"] = *update.ContractorID
	}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return mapError(res.Error, projectdomain.ErrProjectNotFound)
	}
	if res.RowsAffected == 0 {
		return projectdomain.ErrProjectNotFound
	}
	return nil
}

func mapProjectToDTO(row *model.Project) *dto.ProjectRead {
	return &dto.ProjectRead{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		ContractorID: row.ContractorID,
		Title:        row.Title,
		Currency:     row.Currency,
		Status:       row.Status,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
