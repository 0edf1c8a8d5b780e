// Package project owns project lifecycle. Activation is the moment the
// money side comes alive: the escrow account and the agreed milestones are
// created in the same transaction as the status change, so no project is
// ever active without a ledger behind it.
package project

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/domain/audit"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	projectdomain "github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/mapper"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
)

// Service owns project lifecycle operations.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewService creates the project service from shared deps.
func NewService(deps config.Deps) *Service {
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: deps.Logger,
	}
}

// MilestoneSpec is one agreed milestone supplied at activation.
type MilestoneSpec struct {
	Title   string
	Amount  money.Money
	DueDate time.Time
}

// Create registers a new project in setup.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title string, currency money.Code) (*dto.ProjectRead, error) {
	logger := s.logger.With("op", "CreateProject", "owner_id", ownerID)
	p, err := projectdomain.New().
		WithOwnerID(ownerID).
		WithTitle(title).
		WithCurrency(currency).
		Build()
	if err != nil {
		return nil, err
	}
	var out *dto.ProjectRead
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		projRepo, err := uow.ProjectRepository()
		if err != nil {
			return err
		}
		if err = projRepo.Create(ctx, mapper.ProjectToCreate(p)); err != nil {
			return err
		}
		out, err = projRepo.Get(ctx, p.ID)
		return err
	})
	if err != nil {
		logger.Error("create project failed", "error", err)
		return nil, err
	}
	logger.Info("project created", "project_id", out.ID)
	return out, nil
}

// Award assigns the contractor while the project is still in setup.
func (s *Service) Award(ctx context.Context, projectID, contractorID, actor uuid.UUID) (*dto.ProjectRead, error) {
	return s.transition(ctx, projectID, actor, func(p *projectdomain.Project) error {
		return p.Award(contractorID)
	}, func(p *projectdomain.Project) dto.ProjectUpdate {
		status := string(p.Status)
		return dto.ProjectUpdate{ContractorID: p.ContractorID, Status: &status}
	})
}

// Activate moves an awarded project into active and, in the same
// transaction, creates its escrow account and the agreed milestones.
func (s *Service) Activate(ctx context.Context, projectID, actor uuid.UUID, specs []MilestoneSpec) (*dto.ProjectRead, error) {
	logger := s.logger.With("op", "ActivateProject", "project_id", projectID)
	var out *dto.ProjectRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		projRepo, err := uow.ProjectRepository()
		if err != nil {
			return err
		}
		read, err := projRepo.Get(ctx, projectID)
		if err != nil {
			return err
		}
		p, err := mapper.ProjectFromDTO(read)
		if err != nil {
			return err
		}
		from := string(p.Status)
		if err = p.Activate(); err != nil {
			return err
		}
		status := string(p.Status)
		if err = projRepo.Update(ctx, projectID, dto.ProjectUpdate{Status: &status}); err != nil {
			return err
		}

		account, err := escrowdomain.New().
			WithProjectID(projectID).
			WithCurrency(p.Currency).
			Build()
		if err != nil {
			return err
		}
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		if err = acctRepo.Create(ctx, mapper.AccountToCreate(account)); err != nil {
			return err
		}

		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		for _, spec := range specs {
			if spec.Amount.Currency() != p.Currency {
				return fmt.Errorf("%w: milestone %q is %s, project is %s",
					money.ErrMismatchedCurrencies, spec.Title, spec.Amount.Currency(), p.Currency)
			}
			ms, err := milestonedomain.New().
				WithProjectID(projectID).
				WithTitle(spec.Title).
				WithAmount(spec.Amount).
				WithDueDate(spec.DueDate).
				Build()
			if err != nil {
				return err
			}
			if err = msRepo.Create(ctx, mapper.MilestoneToCreate(ms)); err != nil {
				return err
			}
		}

		if err = s.appendAudit(ctx, uow, projectID, actor, from, status, ""); err != nil {
			return err
		}
		out, err = projRepo.Get(ctx, projectID)
		return err
	})
	if err != nil {
		logger.Error("activate project failed", "error", err)
		return nil, err
	}
	logger.Info("project activated", "milestones", len(specs))
	return out, nil
}

// Complete closes out an active project.
func (s *Service) Complete(ctx context.Context, projectID, actor uuid.UUID) (*dto.ProjectRead, error) {
	return s.transition(ctx, projectID, actor, func(p *projectdomain.Project) error {
		return p.Complete()
	}, nil)
}

// Cancel terminates the project and cancels every milestone that has not
// been paid. Paid milestones and the ledger behind them are untouched.
func (s *Service) Cancel(ctx context.Context, projectID, actor uuid.UUID) (*dto.ProjectRead, error) {
	logger := s.logger.With("op", "CancelProject", "project_id", projectID)
	var out *dto.ProjectRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		projRepo, err := uow.ProjectRepository()
		if err != nil {
			return err
		}
		read, err := projRepo.Get(ctx, projectID)
		if err != nil {
			return err
		}
		p, err := mapper.ProjectFromDTO(read)
		if err != nil {
			return err
		}
		from := string(p.Status)
		if err = p.Cancel(); err != nil {
			return err
		}
		status := string(p.Status)
		if err = projRepo.Update(ctx, projectID, dto.ProjectUpdate{Status: &status}); err != nil {
			return err
		}

		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		milestones, err := msRepo.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		for _, msRead := range milestones {
			ms, err := mapper.MilestoneFromDTO(msRead)
			if err != nil {
				return err
			}
			if ms.Status == milestonedomain.StatusPaid || ms.Status == milestonedomain.StatusCancelled {
				continue
			}
			if err = ms.Cancel(); err != nil {
				return err
			}
			msStatus := string(ms.Status)
			if err = msRepo.Update(ctx, ms.ID, dto.MilestoneUpdate{Status: &msStatus}); err != nil {
				return err
			}
		}

		if err = s.appendAudit(ctx, uow, projectID, actor, from, status, ""); err != nil {
			return err
		}
		out, err = projRepo.Get(ctx, projectID)
		return err
	})
	if err != nil {
		logger.Error("cancel project failed", "error", err)
		return nil, err
	}
	logger.Info("project cancelled")
	return out, nil
}

// Get returns one project.
func (s *Service) Get(ctx context.Context, projectID uuid.UUID) (*dto.ProjectRead, error) {
	var out *dto.ProjectRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		projRepo, err := uow.ProjectRepository()
		if err != nil {
			return err
		}
		out, err = projRepo.Get(ctx, projectID)
		return err
	})
	return out, err
}

// transition runs one read-modify-write over the project row. buildUpdate
// may be nil when only the status column changes.
func (s *Service) transition(
	ctx context.Context,
	projectID, actor uuid.UUID,
	apply func(*projectdomain.Project) error,
	buildUpdate func(*projectdomain.Project) dto.ProjectUpdate,
) (*dto.ProjectRead, error) {
	var out *dto.ProjectRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		projRepo, err := uow.ProjectRepository()
		if err != nil {
			return err
		}
		read, err := projRepo.Get(ctx, projectID)
		if err != nil {
			return err
		}
		p, err := mapper.ProjectFromDTO(read)
		if err != nil {
			return err
		}
		from := string(p.Status)
		if err = apply(p); err != nil {
			return err
		}
		var update dto.ProjectUpdate
		if buildUpdate != nil {
			update = buildUpdate(p)
		} else {
			status := string(p.Status)
			update = dto.ProjectUpdate{Status: &status}
		}
		if err = projRepo.Update(ctx, projectID, update); err != nil {
			return err
		}
		if err = s.appendAudit(ctx, uow, projectID, actor, from, string(p.Status), ""); err != nil {
			return err
		}
		out, err = projRepo.Get(ctx, projectID)
		return err
	})
	return out, err
}

func (s *Service) appendAudit(
	ctx context.Context,
	uow repository.UnitOfWork,
	projectID, actor uuid.UUID,
	from, to, note string,
) error {
	auditRepo, err := uow.AuditRepository()
	if err != nil {
		return err
	}
	rec := audit.NewRecord(projectID, "project", projectID, actor, from, to, note)
	return auditRepo.Append(ctx, dto.AuditCreate{
		ID:        rec.ID,
		ProjectID: rec.ProjectID,
		Entity:    rec.Entity,
		EntityID:  rec.EntityID,
		Actor:     rec.Actor,
		FromState: rec.FromState,
		ToState:   rec.ToState,
		Note:      rec.Note,
		At:        rec.At,
	})
}
