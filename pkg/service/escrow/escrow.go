// Package escrow implements the escrow account manager: the single choke
// point that moves money. Deposits, releases and refunds append to the
// account's transaction log inside one unit of work, with the balance fold
// and the dispute-gate check indivisible from the append.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/domain/audit"
	"github.com/buildrail/escrow/pkg/domain/common"
	"github.com/buildrail/escrow/pkg/domain/dispute"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/domain/events"
	"github.com/buildrail/escrow/pkg/domain/milestone"
	"github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/mapper"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
)

// Service is the escrow account manager.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewService creates the escrow account manager from shared deps.
func NewService(deps config.Deps) *Service {
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: deps.Logger,
	}
}

// DepositCommand asks for funds to be added to an account. Amount is in the
// smallest currency unit.
type DepositCommand struct {
	AccountID      uuid.UUID
	Amount         int64
	IdempotencyKey string
}

// ReleaseCommand asks for a milestone's funds to be released to the
// contractor. BankAccount is the opaque gateway reference the resulting
// payout will be dispatched to.
type ReleaseCommand struct {
	AccountID      uuid.UUID
	MilestoneID    uuid.UUID
	Amount         int64
	BankAccount    string
	IdempotencyKey string
}

// RefundCommand returns funds to the depositor.
type RefundCommand struct {
	AccountID      uuid.UUID
	Amount         int64
	Reason         string
	IdempotencyKey string
}

// ReleaseResult carries both sides of a successful release: the ledger row
// and the payout enqueued for it.
type ReleaseResult struct {
	Transaction *dto.TransactionRead
	Payout      *dto.PayoutRead
}

// Deposit appends a deposit transaction.
//
// A replay with a previously used idempotency key returns the original
// transaction; the same key with a different payload fails with
// ErrDuplicateOperation.
func (s *Service) Deposit(ctx context.Context, cmd DepositCommand) (*dto.TransactionRead, error) {
	logger := s.logger.With("op", "Deposit", "account_id", cmd.AccountID)
	var out *dto.TransactionRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acct, err := lockAccount(ctx, uow, cmd.AccountID)
		if err != nil {
			return err
		}
		amount, err := money.NewFromSmallestUnit(cmd.Amount, acct.Currency)
		if err != nil {
			return err
		}
		if err = acct.ValidateAmount(amount); err != nil {
			return err
		}
		if prior, err := s.priorTransaction(ctx, uow, cmd.IdempotencyKey, acct.ID, escrowdomain.TxDeposit, amount, nil); err != nil {
			return err
		} else if prior != nil {
			out = prior
			return nil
		}
		tx, err := escrowdomain.NewTransaction(acct.ID, escrowdomain.TxDeposit, amount, nil, cmd.IdempotencyKey)
		if err != nil {
			return err
		}
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		if err = txRepo.Append(ctx, mapper.TransactionToCreate(tx)); err != nil {
			return err
		}
		out = mapper.TransactionToRead(tx)
		return nil
	})
	if err != nil {
		logger.Error("deposit failed", "error", err)
		return nil, err
	}
	logger.Info("deposit recorded", "transaction_id", out.ID, "amount", out.Amount)
	s.publish(ctx, events.DepositReceived{
		AccountID:     out.AccountID,
		TransactionID: out.ID,
		Amount:        out.Amount,
		Currency:      out.Currency,
	})
	return out, nil
}

// Release appends a release transaction for a milestone, flips the milestone
// to paid and enqueues the contractor payout in one atomic unit.
//
// Preconditions checked against the folded ledger state under the account
// row lock: the milestone is in release_requested, the amount matches the
// milestone and fits the available balance, the project is not gated, and no
// prior release exists for the milestone. The release-key unique index
// backstops the last check structurally.
func (s *Service) Release(ctx context.Context, cmd ReleaseCommand) (*ReleaseResult, error) {
	logger := s.logger.With("op", "Release",
		"account_id", cmd.AccountID, "milestone_id", cmd.MilestoneID)
	var result *ReleaseResult
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acct, err := lockAccount(ctx, uow, cmd.AccountID)
		if err != nil {
			return err
		}
		amount, err := money.NewFromSmallestUnit(cmd.Amount, acct.Currency)
		if err != nil {
			return err
		}
		if err = acct.ValidateAmount(amount); err != nil {
			return err
		}

		milestoneID := cmd.MilestoneID
		if prior, err := s.priorTransaction(ctx, uow, cmd.IdempotencyKey, acct.ID, escrowdomain.TxRelease, amount, &milestoneID); err != nil {
			return err
		} else if prior != nil {
			payoutRepo, err := uow.PayoutRepository()
			if err != nil {
				return err
			}
			enqueued, err := payoutRepo.GetByReleaseTransaction(ctx, prior.ID)
			if err != nil {
				return err
			}
			result = &ReleaseResult{Transaction: prior, Payout: enqueued}
			return nil
		}

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
		if ms.ProjectID != acct.ProjectID {
			return fmt.Errorf("%w: milestone %s belongs to another project",
				milestone.ErrNotReleasable, ms.ID)
		}
		if !ms.Amount.Equals(amount) {
			return fmt.Errorf("%w: milestone is priced %s, release asked %s",
				common.ErrInvalidAmount, ms.Amount, amount)
		}

		// Gate check inside the locked unit; a dispute opened after this
		// commit cannot have raced us past it.
		dispRepo, err := uow.DisputeRepository()
		if err != nil {
			return err
		}
		gated, err := dispRepo.AnyBlocking(ctx, acct.ProjectID)
		if err != nil {
			return err
		}
		if gated {
			return fmt.Errorf("%w: project %s", dispute.ErrProjectGated, acct.ProjectID)
		}

		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		if prior, err := txRepo.GetReleaseForMilestone(ctx, acct.ID, milestoneID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		} else if prior != nil {
			return fmt.Errorf("%w: milestone %s", escrowdomain.ErrAlreadyReleased, milestoneID)
		}

		bal, err := s.fold(ctx, uow, acct)
		if err != nil {
			return err
		}
		if err = bal.CanDebit(amount); err != nil {
			return err
		}

		tx, err := escrowdomain.NewTransaction(acct.ID, escrowdomain.TxRelease, amount, &milestoneID, cmd.IdempotencyKey)
		if err != nil {
			return err
		}
		if err = txRepo.Append(ctx, mapper.TransactionToCreate(tx)); err != nil {
			return err
		}

		prevState := ms.Status
		if err = ms.MarkPaid(); err != nil {
			return err
		}
		paid := string(ms.Status)
		if err = msRepo.Update(ctx, ms.ID, dto.MilestoneUpdate{Status: &paid}); err != nil {
			return err
		}

		po, err := s.enqueuePayout(ctx, uow, acct.ProjectID, tx.ID, amount, cmd.BankAccount)
		if err != nil {
			return err
		}

		if err = appendAudit(ctx, uow, acct.ProjectID, "milestone", ms.ID, uuid.Nil,
			string(prevState), paid, "release "+tx.ID.String()); err != nil {
			return err
		}

		result = &ReleaseResult{Transaction: mapper.TransactionToRead(tx), Payout: po}
		return nil
	})
	if err != nil {
		logger.Error("release failed", "error", err)
		return nil, err
	}
	logger.Info("release recorded",
		"transaction_id", result.Transaction.ID, "payout_id", result.Payout.ID)
	s.publish(ctx, events.FundsReleased{
		AccountID:     result.Transaction.AccountID,
		MilestoneID:   cmd.MilestoneID,
		TransactionID: result.Transaction.ID,
		PayoutID:      result.Payout.ID,
		Amount:        result.Transaction.Amount,
		Currency:      result.Transaction.Currency,
	})
	return result, nil
}

// Refund appends a refund transaction returning funds to the depositor,
// subject to the same balance check as a release.
func (s *Service) Refund(ctx context.Context, cmd RefundCommand) (*dto.TransactionRead, error) {
	logger := s.logger.With("op", "Refund", "account_id", cmd.AccountID)
	var out *dto.TransactionRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acct, err := lockAccount(ctx, uow, cmd.AccountID)
		if err != nil {
			return err
		}
		amount, err := money.NewFromSmallestUnit(cmd.Amount, acct.Currency)
		if err != nil {
			return err
		}
		if err = acct.ValidateAmount(amount); err != nil {
			return err
		}
		if prior, err := s.priorTransaction(ctx, uow, cmd.IdempotencyKey, acct.ID, escrowdomain.TxRefund, amount, nil); err != nil {
			return err
		} else if prior != nil {
			out = prior
			return nil
		}
		bal, err := s.fold(ctx, uow, acct)
		if err != nil {
			return err
		}
		if err = bal.CanDebit(amount); err != nil {
			return err
		}
		tx, err := escrowdomain.NewTransaction(acct.ID, escrowdomain.TxRefund, amount, nil, cmd.IdempotencyKey)
		if err != nil {
			return err
		}
		tx.Reason = cmd.Reason
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		if err = txRepo.Append(ctx, mapper.TransactionToCreate(tx)); err != nil {
			return err
		}
		out = mapper.TransactionToRead(tx)
		return nil
	})
	if err != nil {
		logger.Error("refund failed", "error", err)
		return nil, err
	}
	logger.Info("refund recorded", "transaction_id", out.ID, "amount", out.Amount)
	s.publish(ctx, events.FundsRefunded{
		AccountID:     out.AccountID,
		TransactionID: out.ID,
		Amount:        out.Amount,
		Currency:      out.Currency,
		Reason:        cmd.Reason,
	})
	return out, nil
}

// Balance folds the account's transaction log and returns the derived view.
// There is no cached balance to drift from it.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (*dto.BalanceRead, error) {
	var out *dto.BalanceRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acctRead, err := acctRepo.Get(ctx, accountID)
		if err != nil {
			return err
		}
		acct, err := mapper.AccountFromDTO(acctRead)
		if err != nil {
			return err
		}
		bal, err := s.fold(ctx, uow, acct)
		if err != nil {
			return err
		}
		out = mapper.BalanceToRead(bal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockAccount takes the account's row lock and checks it is writable. Every
// mutation starts here; it is the serialization point of the ledger.
func lockAccount(ctx context.Context, uow repository.UnitOfWork, accountID uuid.UUID) (*escrowdomain.Account, error) {
	acctRepo, err := uow.EscrowAccountRepository()
	if err != nil {
		return nil, err
	}
	acctRead, err := acctRepo.GetForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	acct, err := mapper.AccountFromDTO(acctRead)
	if err != nil {
		return nil, err
	}
	if err = acct.ValidateWritable(); err != nil {
		return nil, err
	}
	return acct, nil
}

// priorTransaction resolves an idempotency key. nil, nil means the key is
// fresh; a non-nil read is a safe replay of the same logical operation.
func (s *Service) priorTransaction(
	ctx context.Context,
	uow repository.UnitOfWork,
	key string,
	accountID uuid.UUID,
	txType escrowdomain.TxType,
	amount money.Money,
	milestoneID *uuid.UUID,
) (*dto.TransactionRead, error) {
	if key == "" {
		return nil, common.ErrMissingIdempotencyKey
	}
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	read, err := txRepo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prior, err := mapper.TransactionFromDTO(read)
	if err != nil {
		return nil, err
	}
	if !prior.Matches(accountID, txType, amount, milestoneID) {
		return nil, fmt.Errorf("%w: idempotency key %q used by transaction %s",
			common.ErrDuplicateOperation, key, prior.ID)
	}
	return read, nil
}

func (s *Service) fold(ctx context.Context, uow repository.UnitOfWork, acct *escrowdomain.Account) (escrowdomain.Balance, error) {
	txRepo, err := uow.TransactionRepository()
	if err != nil {
		return escrowdomain.Balance{}, err
	}
	reads, err := txRepo.ListByAccount(ctx, acct.ID)
	if err != nil {
		return escrowdomain.Balance{}, err
	}
	txs, err := mapper.TransactionsFromDTO(reads)
	if err != nil {
		return escrowdomain.Balance{}, err
	}
	return escrowdomain.Fold(acct.ID, acct.Currency, txs)
}

// enqueuePayout creates the pending payout owned by a release transaction.
// One payout per release, enforced by the unique index on the join column.
func (s *Service) enqueuePayout(
	ctx context.Context,
	uow repository.UnitOfWork,
	projectID, releaseTxID uuid.UUID,
	amount money.Money,
	bankAccount string,
) (*dto.PayoutRead, error) {
	projRepo, err := uow.ProjectRepository()
	if err != nil {
		return nil, err
	}
	projRead, err := projRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	proj, err := mapper.ProjectFromDTO(projRead)
	if err != nil {
		return nil, err
	}
	if proj.ContractorID == nil {
		return nil, fmt.Errorf("%w: project %s", project.ErrNoContractor, projectID)
	}
	po, err := payout.New(*proj.ContractorID, &releaseTxID, amount, bankAccount)
	if err != nil {
		return nil, err
	}
	payoutRepo, err := uow.PayoutRepository()
	if err != nil {
		return nil, err
	}
	if err = payoutRepo.Create(ctx, mapper.PayoutToCreate(po)); err != nil {
		return nil, err
	}
	return payoutRepo.GetByReleaseTransaction(ctx, releaseTxID)
}

// appendAudit writes one transition record inside the caller's transaction.
func appendAudit(
	ctx context.Context,
	uow repository.UnitOfWork,
	projectID uuid.UUID,
	entity string,
	entityID, actor uuid.UUID,
	from, to, note string,
) error {
	auditRepo, err := uow.AuditRepository()
	if err != nil {
		return err
	}
	rec := audit.NewRecord(projectID, entity, entityID, actor, from, to, note)
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
