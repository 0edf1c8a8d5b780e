// Package payout runs the disbursement workflow. Payouts are enqueued by a
// release (or directly by an operator), approved, then dispatched to the
// payment gateway. Every gateway call happens outside account and payout row
// locks; a dispatch whose outcome the gateway never confirmed stays in
// processing until the status poll settles it.
package payout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/domain/audit"
	"github.com/buildrail/escrow/pkg/domain/events"
	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/mapper"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/provider/payment"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Service owns payout lifecycle and gateway dispatch.
type Service struct {
	uow     repository.UnitOfWork
	gateway payment.Gateway
	bus     eventbus.EventBus
	logger  *slog.Logger
	cfg     *config.Payout
}

// NewService creates the payout service from shared deps.
func NewService(deps config.Deps) *Service {
	return &Service{
		uow:     deps.Uow,
		gateway: deps.Gateway,
		bus:     deps.EventBus,
		logger:  deps.Logger,
		cfg:     deps.Config.Payout,
	}
}

// EnqueueDirect creates a payout with no release transaction behind it.
// Operator-only; release-driven payouts are enqueued by the ledger itself.
func (s *Service) EnqueueDirect(
	ctx context.Context,
	contractorID uuid.UUID,
	amount money.Money,
	bankAccount string,
	actor uuid.UUID,
) (*dto.PayoutRead, error) {
	logger := s.logger.With("op", "EnqueueDirectPayout", "contractor_id", contractorID)
	p, err := payoutdomain.New(contractorID, nil, amount, bankAccount)
	if err != nil {
		return nil, err
	}
	var out *dto.PayoutRead
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payoutRepo, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		if err = payoutRepo.Create(ctx, mapper.PayoutToCreate(p)); err != nil {
			return err
		}
		if err = s.appendAudit(ctx, uow, p.ID, actor, "", string(p.Status), "direct payout"); err != nil {
			return err
		}
		out, err = payoutRepo.Get(ctx, p.ID)
		return err
	})
	if err != nil {
		logger.Error("enqueue direct payout failed", "error", err)
		return nil, err
	}
	logger.Info("direct payout enqueued", "payout_id", out.ID, "amount", amount)
	return out, nil
}

// Approve signs off a pending payout for dispatch.
func (s *Service) Approve(ctx context.Context, id, actor uuid.UUID) (*dto.PayoutRead, error) {
	return s.applyTransition(ctx, id, actor, "", func(p *payoutdomain.Payout) error {
		return p.Approve()
	})
}

// Hold freezes a payout administratively.
func (s *Service) Hold(ctx context.Context, id, actor uuid.UUID, reason string) (*dto.PayoutRead, error) {
	return s.applyTransition(ctx, id, actor, reason, func(p *payoutdomain.Payout) error {
		return p.Hold(reason)
	})
}

// ReleaseHold returns a held payout to the pending queue.
func (s *Service) ReleaseHold(ctx context.Context, id, actor uuid.UUID) (*dto.PayoutRead, error) {
	return s.applyTransition(ctx, id, actor, "", func(p *payoutdomain.Payout) error {
		return p.ReleaseHold()
	})
}

// Retry re-queues a failed payout, bounded by the configured retry limit.
// Past the limit the payout parks in held and ErrRetryExhausted surfaces.
func (s *Service) Retry(ctx context.Context, id, actor uuid.UUID) (*dto.PayoutRead, error) {
	return s.applyTransition(ctx, id, actor, "", func(p *payoutdomain.Payout) error {
		return p.Retry(s.cfg.MaxRetries)
	})
}

// Get returns one payout.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error) {
	var out *dto.PayoutRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payoutRepo, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		out, err = payoutRepo.Get(ctx, id)
		return err
	})
	return out, err
}

// ListByStatus returns payouts in one workflow state, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status payoutdomain.Status, limit int) ([]*dto.PayoutRead, error) {
	var out []*dto.PayoutRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payoutRepo, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		out, err = payoutRepo.ListByStatus(ctx, string(status), limit)
		return err
	})
	return out, err
}

// Dispatch sends one approved payout to the gateway.
//
// Three phases, two transactions. Phase one claims the payout by committing
// approved -> processing under the row lock. Phase two calls the gateway
// with no lock held. Phase three commits the outcome. A crash between the
// phases leaves the payout in processing; ResolveProcessing settles it from
// the gateway's view of record.
func (s *Service) Dispatch(ctx context.Context, id uuid.UUID) (*dto.PayoutRead, error) {
	logger := s.logger.With("op", "DispatchPayout", "payout_id", id)

	p, err := s.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == payoutdomain.StatusCompleted {
		logger.Info("payout already completed, dispatch is a no-op")
		return s.Get(ctx, id)
	}

	outcome, providerRef, failReason := s.callGateway(ctx, p)

	out, err := s.settle(ctx, id, outcome, providerRef, failReason)
	if err != nil {
		logger.Error("settle payout failed", "error", err)
		return nil, err
	}
	logger.Info("payout dispatched", "status", out.Status, "attempts", out.Attempts)
	return out, nil
}

// ResolveProcessing settles payouts stuck in processing by asking the
// gateway what actually happened. Run after a crash and periodically by the
// worker. Payouts with no provider reference never reached the gateway and
// are failed as retryable.
func (s *Service) ResolveProcessing(ctx context.Context, limit int) (int, error) {
	logger := s.logger.With("op", "ResolveProcessing")
	stuck, err := s.ListByStatus(ctx, payoutdomain.StatusProcessing, limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, read := range stuck {
		if read.ProviderRef == "" {
			if _, err := s.settle(ctx, read.ID, payoutdomain.StatusFailed, "", "dispatch interrupted before gateway acknowledgement"); err != nil {
				logger.Warn("resolve failed", "payout_id", read.ID, "error", err)
				continue
			}
			resolved++
			continue
		}
		status, err := s.gateway.GetPayoutStatus(ctx, read.ProviderRef)
		if err != nil {
			logger.Warn("gateway status query failed", "payout_id", read.ID, "error", err)
			continue
		}
		switch status {
		case payment.StatusCompleted:
			if _, err := s.settle(ctx, read.ID, payoutdomain.StatusCompleted, read.ProviderRef, ""); err != nil {
				logger.Warn("resolve failed", "payout_id", read.ID, "error", err)
				continue
			}
			resolved++
		case payment.StatusDeclined:
			if _, err := s.settle(ctx, read.ID, payoutdomain.StatusFailed, read.ProviderRef, "declined by gateway"); err != nil {
				logger.Warn("resolve failed", "payout_id", read.ID, "error", err)
				continue
			}
			resolved++
		default:
			// still pending gateway-side, leave it in processing
		}
	}
	return resolved, nil
}

// claim commits approved -> processing under the row lock and returns the
// hydrated payout. A completed payout is returned unchanged so a re-driven
// dispatch is idempotent.
func (s *Service) claim(ctx context.Context, id uuid.UUID) (*payoutdomain.Payout, error) {
	var p *payoutdomain.Payout
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payoutRepo, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		read, err := payoutRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p, err = mapper.PayoutFromDTO(read); err != nil {
			return err
		}
		if p.Status == payoutdomain.StatusCompleted {
			return nil
		}
		if err = p.StartProcessing(); err != nil {
			return err
		}
		status := string(p.Status)
		return payoutRepo.Update(ctx, id, dto.PayoutUpdate{
			Status:   &status,
			Attempts: &p.Attempts,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// callGateway runs phase two. Returns the terminal status to commit, the
// provider reference if the gateway acknowledged, and the failure reason
// when the outcome is failed. A processing return means the outcome is
// still unknown and must not be guessed.
func (s *Service) callGateway(ctx context.Context, p *payoutdomain.Payout) (payoutdomain.Status, string, string) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	resp, err := s.gateway.InitiatePayout(callCtx, &payment.InitiatePayoutParams{
		PayoutID:       p.ID,
		BankAccount:    p.BankAccount,
		Amount:         p.Amount.Amount(),
		Currency:       p.Amount.Currency().String(),
		IdempotencyKey: p.ID.String(),
	})
	if err != nil {
		if errors.Is(err, payment.ErrPayoutDeclined) {
			return payoutdomain.StatusFailed, "", "declined by gateway"
		}
		// transport failure before any acknowledgement, safe to fail and retry
		return payoutdomain.StatusFailed, "", err.Error()
	}

	switch resp.Status {
	case payment.StatusCompleted:
		return payoutdomain.StatusCompleted, resp.ProviderRef, ""
	case payment.StatusDeclined:
		return payoutdomain.StatusFailed, resp.ProviderRef, "declined by gateway"
	}

	// acknowledged but not yet settled gateway-side, poll until it is or
	// the dispatch window closes
	return s.pollStatus(callCtx, resp.ProviderRef)
}

func (s *Service) pollStatus(ctx context.Context, providerRef string) (payoutdomain.Status, string, string) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	status, err := backoff.RetryWithData(func() (payment.Status, error) {
		st, err := s.gateway.GetPayoutStatus(ctx, providerRef)
		if err != nil {
			return payment.StatusUnknown, err
		}
		if st == payment.StatusPending || st == payment.StatusUnknown {
			return st, errors.New("payout not yet settled")
		}
		return st, nil
	}, policy)
	if err != nil {
		// outcome unknown, stay in processing for ResolveProcessing
		return payoutdomain.StatusProcessing, providerRef, ""
	}
	if status == payment.StatusCompleted {
		return payoutdomain.StatusCompleted, providerRef, ""
	}
	return payoutdomain.StatusFailed, providerRef, "declined by gateway"
}

// settle commits phase three. outcome processing is a no-op beyond
// recording the provider reference.
func (s *Service) settle(
	ctx context.Context,
	id uuid.UUID,
	outcome payoutdomain.Status,
	providerRef, failReason string,
) (*dto.PayoutRead, error) {
	var out *dto.PayoutRead
	var completed *events.PayoutCompleted
	var failed *events.PayoutFailed
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payoutRepo, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		read, err := payoutRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := mapper.PayoutFromDTO(read)
		if err != nil {
			return err
		}
		from := string(p.Status)

		update := dto.PayoutUpdate{}
		if providerRef != "" && p.ProviderRef == "" {
			p.ProviderRef = providerRef
			update.ProviderRef = &providerRef
		}

		switch outcome {
		case payoutdomain.StatusCompleted:
			if p.Status == payoutdomain.StatusCompleted {
				out = read
				return nil
			}
			if err = p.Complete(time.Now()); err != nil {
				return err
			}
			update.ProcessedAt = p.ProcessedAt
			completed = &events.PayoutCompleted{PayoutID: p.ID, ProcessedAt: *p.ProcessedAt}
		case payoutdomain.StatusFailed:
			if err = p.Fail(failReason); err != nil {
				return err
			}
			update.LastError = &p.LastError
			failed = &events.PayoutFailed{PayoutID: p.ID, Reason: failReason, Attempts: p.Attempts}
		case payoutdomain.StatusProcessing:
			// outcome still unknown, keep the claim and the provider ref
		default:
			return payoutdomain.ErrInvalidTransition
		}

		status := string(p.Status)
		update.Status = &status
		if err = payoutRepo.Update(ctx, id, update); err != nil {
			return err
		}
		if from != status {
			if err = s.appendAudit(ctx, uow, p.ID, uuid.Nil, from, status, failReason); err != nil {
				return err
			}
		}
		out, err = payoutRepo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if completed != nil {
		s.publish(ctx, *completed)
	}
	if failed != nil {
		s.publish(ctx, *failed)
	}
	return out, nil
}

// applyTransition runs one locked read-modify-write over the payout row.
func (s *Service) applyTransition(
	ctx context.Context,
	id, actor uuid.UUID,
	note string,
	apply func(*payoutdomain.Payout) error,
) (*dto.PayoutRead, error) {
	var out *dto.PayoutRead
	// ErrRetryExhausted parks the payout in held; that write must commit,
	// so the error is carried past Do instead of returned inside it.
	var exhausted error
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payoutRepo, err := uow.PayoutRepository()
		if err != nil {
			return err
		}
		read, err := payoutRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		p, err := mapper.PayoutFromDTO(read)
		if err != nil {
			return err
		}
		from := string(p.Status)
		if applyErr := apply(p); applyErr != nil {
			if !errors.Is(applyErr, payoutdomain.ErrRetryExhausted) {
				return applyErr
			}
			exhausted = applyErr
		}
		status := string(p.Status)
		update := dto.PayoutUpdate{Status: &status}
		if p.LastError != read.LastError {
			update.LastError = &p.LastError
		}
		if err = payoutRepo.Update(ctx, id, update); err != nil {
			return err
		}
		if err = s.appendAudit(ctx, uow, p.ID, actor, from, status, note); err != nil {
			return err
		}
		out, err = payoutRepo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, exhausted
}

// appendAudit writes one payout transition record. Payouts are not bound to
// a project directly, so the record carries the payout id as the entity and
// a nil project for direct payouts.
func (s *Service) appendAudit(
	ctx context.Context,
	uow repository.UnitOfWork,
	payoutID, actor uuid.UUID,
	from, to, note string,
) error {
	auditRepo, err := uow.AuditRepository()
	if err != nil {
		return err
	}
	rec := audit.NewRecord(uuid.Nil, "payout", payoutID, actor, from, to, note)
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
