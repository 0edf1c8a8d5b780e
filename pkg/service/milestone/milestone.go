// Package milestone drives the milestone state machine. Transitions here
// never touch the transaction log; RequestRelease only makes a milestone
// eligible for the escrow account manager to act on.
package milestone

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/domain/audit"
	"github.com/buildrail/escrow/pkg/domain/dispute"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/domain/events"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/mapper"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
)

// Service drives milestone transitions.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewService creates the milestone service from shared deps.
func NewService(deps config.Deps) *Service {
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: deps.Logger,
	}
}

// Submit records the contractor handing in the milestone's work.
func (s *Service) Submit(ctx context.Context, milestoneID, actor uuid.UUID) (*dto.MilestoneRead, error) {
	return s.transition(ctx, milestoneID, actor, "",
		func(m *milestonedomain.Milestone) error { return m.Submit() })
}

// Approve records the owner accepting submitted work.
func (s *Service) Approve(ctx context.Context, milestoneID, actor uuid.UUID) (*dto.MilestoneRead, error) {
	return s.transition(ctx, milestoneID, actor, "",
		func(m *milestonedomain.Milestone) error { return m.Approve() })
}

// Reject sends submitted work back to the contractor with a reason.
func (s *Service) Reject(ctx context.Context, milestoneID, actor uuid.UUID, reason string) (*dto.MilestoneRead, error) {
	return s.transition(ctx, milestoneID, actor, reason,
		func(m *milestonedomain.Milestone) error { return m.Reject() })
}

// RequestRelease flips an approved milestone to release_requested.
//
// The dispute gate and the funds check both run under the escrow account's
// row lock, in the same atomic unit as the transition, so a gated project
// cannot even enter the state a release would later act on, and a milestone
// the account cannot cover fails at the moment release is requested instead
// of at release time. The failure is immediate and user-visible, not a
// silent queue.
func (s *Service) RequestRelease(ctx context.Context, milestoneID, actor uuid.UUID) (*dto.MilestoneRead, error) {
	logger := s.logger.With("op", "RequestRelease", "milestone_id", milestoneID)
	var out *dto.MilestoneRead
	var transitioned events.MilestoneTransitioned
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		msRead, err := msRepo.Get(ctx, milestoneID)
		if err != nil {
			return err
		}
		ms, err := mapper.MilestoneFromDTO(msRead)
		if err != nil {
			return err
		}

		// Serialize with releases and dispute-open on the account row.
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acctRead, err := acctRepo.GetByProject(ctx, ms.ProjectID)
		if err != nil {
			return err
		}
		if _, err = acctRepo.GetForUpdate(ctx, acctRead.ID); err != nil {
			return err
		}

		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		gated, err := dispRepo.AnyBlocking(ctx, ms.ProjectID)
		if err != nil {
			return err
		}
		if gated {
			return fmt.Errorf("%w: project %s", dispute.ErrProjectGated, ms.ProjectID)
		}

		acct, err := mapper.AccountFromDTO(acctRead)
		if err != nil {
			return err
		}
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		txReads, err := txRepo.ListByAccount(ctx, acct.ID)
		if err != nil {
			return err
		}
		txs, err := mapper.TransactionsFromDTO(txReads)
		if err != nil {
			return err
		}
		bal, err := escrowdomain.Fold(acct.ID, acct.Currency, txs)
		if err != nil {
			return err
		}
		if err = bal.CanDebit(ms.Amount); err != nil {
			return err
		}

		from := string(ms.Status)
		if err = ms.RequestRelease(); err != nil {
			return err
		}
		to := string(ms.Status)
		if err = msRepo.Update(ctx, ms.ID, dto.MilestoneUpdate{Status: &to}); err != nil {
			return err
		}
		if err = s.appendAudit(ctx, uow, ms.ProjectID, ms.ID, actor, from, to, ""); err != nil {
			return err
		}
		msRead.Status = to
		out = msRead
		transitioned = events.MilestoneTransitioned{
			ProjectID:   ms.ProjectID,
			MilestoneID: ms.ID,
			Actor:       actor,
			From:        from,
			To:          to,
		}
		return nil
	})
	if err != nil {
		logger.Error("request release failed", "error", err)
		return nil, err
	}
	logger.Info("release requested", "project_id", out.ProjectID)
	s.publish(ctx, transitioned)
	return out, nil
}

// Get returns one milestone.
func (s *Service) Get(ctx context.Context, milestoneID uuid.UUID) (*dto.MilestoneRead, error) {
	var out *dto.MilestoneRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		out, err = msRepo.Get(ctx, milestoneID)
		return err
	})
	return out, err
}

// ListByProject returns a project's milestones.
func (s *Service) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*dto.MilestoneRead, error) {
	var out []*dto.MilestoneRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		out, err = msRepo.ListByProject(ctx, projectID)
		return err
	})
	return out, err
}

// transition runs one plain state-machine edge (no gate, no lock beyond the
// milestone row) with its audit record.
func (s *Service) transition(
	ctx context.Context,
	milestoneID, actor uuid.UUID,
	note string,
	apply func(*milestonedomain.Milestone) error,
) (*dto.MilestoneRead, error) {
	var out *dto.MilestoneRead
	var transitioned events.MilestoneTransitioned
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		msRead, err := msRepo.Get(ctx, milestoneID)
		if err != nil {
			return err
		}
		ms, err := mapper.MilestoneFromDTO(msRead)
		if err != nil {
			return err
		}
		from := string(ms.Status)
		if err = apply(ms); err != nil {
			return err
		}
		to := string(ms.Status)
		if err = msRepo.Update(ctx, ms.ID, dto.MilestoneUpdate{Status: &to}); err != nil {
			return err
		}
		if err = s.appendAudit(ctx, uow, ms.ProjectID, ms.ID, actor, from, to, note); err != nil {
			return err
		}
		msRead.Status = to
		out = msRead
		transitioned = events.MilestoneTransitioned{
			ProjectID:   ms.ProjectID,
			MilestoneID: ms.ID,
			Actor:       actor,
			From:        from,
			To:          to,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("milestone transition failed", "milestone_id", milestoneID, "error", err)
		return nil, err
	}
	s.logger.Info("milestone transitioned",
		"milestone_id", milestoneID, "from", transitioned.From, "to", transitioned.To)
	s.publish(ctx, transitioned)
	return out, nil
}

func (s *Service) appendAudit(
	ctx context.Context,
	uow repository.UnitOfWork,
	projectID, milestoneID, actor uuid.UUID,
	from, to, note string,
) error {
	auditRepo, err := uow.AuditRepository()
	if err != nil {
		return err
	}
	rec := audit.NewRecord(projectID, "milestone", milestoneID, actor, from, to, note)
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
