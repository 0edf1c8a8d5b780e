package repository

import (
	"context"

	"github.com/buildrail/escrow/infra/model"
	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates the append-only audit record store.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, create dto.AuditCreate) error {
	row := model.AuditRecord{
		ID:        create.ID,
		ProjectID: create.ProjectID,
		Entity:    create.Entity,
		EntityID:  create.EntityID,
		Actor:     create.Actor,
		FromState: create.FromState,
		ToState:   create.ToState,
		Note:      create.Note,
		At:        create.At,
	}
	return mapError(r.db.WithContext(ctx).Create(&row).Error, common.ErrNotFound)
}

func (r *auditRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.AuditRead, error) {
	var rows []model.AuditRecord
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("at ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, common.ErrNotFound)
	}
	result := make([]*dto.AuditRead, 0, len(rows))
	for i := range rows {
		result = append(result, &dto.AuditRead{
			ID:        rows[i].ID,
			ProjectID: rows[i].ProjectID,
			Entity:    rows[i].Entity,
			EntityID:  rows[i].EntityID,
			Actor:     rows[i].Actor,
			FromState: rows[i].FromState,
			ToState:   rows[i].ToState,
			Note:      rows[i].Note,
			At:        rows[i].At,
		})
	}
	return result, nil
}
