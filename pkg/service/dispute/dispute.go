// Package dispute owns the gate: opening a dispute blocks new releases and
// release requests for the project, resolving it lifts the block. Opening
// never rolls back operations already committed.
package dispute

import (
	"context"
	"log/slog"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/domain/audit"
	disputedomain "github.com/buildrail/escrow/pkg/domain/dispute"
	"github.com/buildrail/escrow/pkg/domain/events"
	"github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/mapper"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
)

// Service owns dispute lifecycle and the gate predicate.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewService creates the dispute service from shared deps.
func NewService(deps config.Deps) *Service {
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: deps.Logger,
	}
}

// Open raises a dispute and gates the project.
//
// The escrow account row lock is taken first, so Open serializes against
// any in-flight release on the same project: whichever commits first wins,
// and the loser observes the other's effect. No partial outcomes.
func (s *Service) Open(ctx context.Context, projectID, raisedBy uuid.UUID, reason string) (*dto.DisputeRead, error) {
	logger := s.logger.With("op", "OpenDispute", "project_id", projectID)
	var out *dto.DisputeRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acctRead, err := acctRepo.GetByProject(ctx, projectID)
		if err != nil {
			return err
		}
		if _, err = acctRepo.GetForUpdate(ctx, acctRead.ID); err != nil {
			return err
		}

		d, err := disputedomain.Open(projectID, raisedBy, reason)
		if err != nil {
			return err
		}
		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		if err = dispRepo.Create(ctx, mapper.DisputeToCreate(d)); err != nil {
			return err
		}
		if err = s.markProjectDisputed(ctx, uow, projectID); err != nil {
			return err
		}
		if err = appendAudit(ctx, uow, projectID, d.ID, raisedBy, "", string(d.Status), reason); err != nil {
			return err
		}
		out, err = dispRepo.Get(ctx, d.ID)
		return err
	})
	if err != nil {
		logger.Error("open dispute failed", "error", err)
		return nil, err
	}
	logger.Info("dispute opened", "dispute_id", out.ID)
	s.publish(ctx, events.DisputeOpened{
		ProjectID: projectID,
		DisputeID: out.ID,
		RaisedBy:  raisedBy,
	})
	return out, nil
}

// StartReview moves an open dispute under adjudicator review.
func (s *Service) StartReview(ctx context.Context, disputeID, actor uuid.UUID) (*dto.DisputeRead, error) {
	var out *dto.DisputeRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		read, err := dispRepo.Get(ctx, disputeID)
		if err != nil {
			return err
		}
		d := mapper.DisputeFromDTO(read)
		from := string(d.Status)
		if err = d.StartReview(); err != nil {
			return err
		}
		to := string(d.Status)
		if err = dispRepo.Update(ctx, d.ID, dto.DisputeUpdate{Status: &to}); err != nil {
			return err
		}
		if err = appendAudit(ctx, uow, d.ProjectID, d.ID, actor, from, to, ""); err != nil {
			return err
		}
		read.Status = to
		out = read
		return nil
	})
	return out, err
}

// Resolve closes a dispute with the adjudicator's outcome and lifts the
// gate. outcome must be resolved or dismissed.
func (s *Service) Resolve(ctx context.Context, disputeID uuid.UUID, outcome disputedomain.Status, actor uuid.UUID) (*dto.DisputeRead, error) {
	logger := s.logger.With("op", "ResolveDispute", "dispute_id", disputeID)
	var out *dto.DisputeRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		read, err := dispRepo.Get(ctx, disputeID)
		if err != nil {
			return err
		}
		d := mapper.DisputeFromDTO(read)
		from := string(d.Status)
		if err = d.Resolve(outcome); err != nil {
			return err
		}
		to := string(d.Status)
		if err = dispRepo.Update(ctx, d.ID, dto.DisputeUpdate{
			Status:     &to,
			ResolvedAt: d.ResolvedAt,
		}); err != nil {
			return err
		}
		if err = appendAudit(ctx, uow, d.ProjectID, d.ID, actor, from, to, ""); err != nil {
			return err
		}
		if err = s.maybeReactivateProject(ctx, uow, d.ProjectID); err != nil {
			return err
		}
		read.Status = to
		read.ResolvedAt = d.ResolvedAt
		out = read
		return nil
	})
	if err != nil {
		logger.Error("resolve dispute failed", "error", err)
		return nil, err
	}
	logger.Info("dispute resolved", "outcome", out.Status)
	s.publish(ctx, events.DisputeClosed{
		ProjectID: out.ProjectID,
		DisputeID: out.ID,
		Outcome:   out.Status,
	})
	return out, nil
}

// IsGated reports whether the project currently has a blocking dispute.
// For display only: writes must re-check inside their own unit of work.
func (s *Service) IsGated(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var gated bool
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		gated, err = dispRepo.AnyBlocking(ctx, projectID)
		return err
	})
	return gated, err
}

// ListByProject returns a project's disputes.
func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.DisputeRead, error) {
	var out []*dto.DisputeRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		out, err = dispRepo.ListByProject(ctx, projectID)
		return err
	})
	return out, err
}

// markProjectDisputed flips an active project to disputed. A second
// dispute on an already-disputed project leaves the status alone.
func (s *Service) markProjectDisputed(ctx context.Context, uow repository.UnitOfWork, projectID uuid.UUID) error {
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
	if p.Status == project.StatusDisputed {
		return nil
	}
	if err = p.Dispute(); err != nil {
		return err
	}
	status := string(p.Status)
	return projRepo.Update(ctx, projectID, dto.ProjectUpdate{Status: &status})
}

// maybeReactivateProject lifts the gate once no blocking dispute remains.
func (s *Service) maybeReactivateProject(ctx context.Context, uow repository.UnitOfWork, projectID uuid.UUID) error {
	dispRepo, err := uow.DisputeRepository()
	if err != nil {
		return err
	}
	blocked, err := dispRepo.AnyBlocking(ctx, projectID)
	if err != nil || blocked {
		return err
	}
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
	if p.Status != project.StatusDisputed {
		return nil
	}
	if err = p.Reactivate(); err != nil {
		return err
	}
	status := string(p.Status)
	return projRepo.Update(ctx, projectID, dto.ProjectUpdate{Status: &status})
}

// appendAudit writes one transition record inside the caller's transaction.
func appendAudit(
	ctx context.Context,
	uow repository.UnitOfWork,
	projectID, disputeID, actor uuid.UUID,
	from, to, note string,
) error {
	auditRepo, err := uow.AuditRepository()
	if err != nil {
		return err
	}
	rec := audit.NewRecord(projectID, "dispute", disputeID, actor, from, to, note)
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

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event", event.EventType(), "error", err)
	}
}
