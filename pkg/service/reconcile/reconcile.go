// Package reconcile provides the read-your-books operations: full ledger
// history, the audit trail, and an invariant sweep that freezes any account
// whose transaction log no longer adds up. Reconciliation reports and
// quarantines; it never rewrites history.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/domain/audit"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/domain/events"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/eventbus"
	"github.com/buildrail/escrow/pkg/mapper"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
)

// Service owns reconciliation reads and the invariant sweep.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.EventBus
	logger *slog.Logger
}

// NewService creates the reconcile service from shared deps.
func NewService(deps config.Deps) *Service {
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: deps.Logger,
	}
}

// LedgerHistory is a project's escrow account with its full transaction log
// and the balance folded from it.
type LedgerHistory struct {
	Account      *dto.AccountRead
	Balance      *dto.BalanceRead
	Transactions []*dto.TransactionRead
}

// ProjectLedgerHistory returns the append-only log for a project's account,
// oldest first, with the balance recomputed from the rows being returned.
func (s *Service) ProjectLedgerHistory(ctx context.Context, projectID uuid.UUID) (*LedgerHistory, error) {
	var out *LedgerHistory
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acctRead, err := acctRepo.GetByProject(ctx, projectID)
		if err != nil {
			return err
		}
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		reads, err := txRepo.ListByAccount(ctx, acctRead.ID)
		if err != nil {
			return err
		}
		txs, err := mapper.TransactionsFromDTO(reads)
		if err != nil {
			return err
		}
		balance, err := escrowdomain.Fold(acctRead.ID, money.Code(acctRead.Currency), txs)
		if err != nil {
			return err
		}
		out = &LedgerHistory{
			Account:      acctRead,
			Balance:      mapper.BalanceToRead(balance),
			Transactions: reads,
		}
		return nil
	})
	return out, err
}

// AuditTrail returns every recorded state transition for a project.
func (s *Service) AuditTrail(ctx context.Context, projectID uuid.UUID) ([]*dto.AuditRead, error) {
	var out []*dto.AuditRead
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		auditRepo, err := uow.AuditRepository()
		if err != nil {
			return err
		}
		out, err = auditRepo.ListByProject(ctx, projectID)
		return err
	})
	return out, err
}

// VerifyInvariants refolds one account's log and checks conservation and
// non-negativity. A violation freezes the account in the same transaction,
// records the finding, and surfaces ErrLedgerCorruption. The log itself is
// never touched.
func (s *Service) VerifyInvariants(ctx context.Context, accountID uuid.UUID) (*dto.BalanceRead, error) {
	logger := s.logger.With("op", "VerifyInvariants", "account_id", accountID)
	var out *dto.BalanceRead
	var corruption *events.LedgerCorruptionDetected
	var corruptionErr error
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acctRead, err := acctRepo.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		txRepo, err := uow.TransactionRepository()
		if err != nil {
			return err
		}
		reads, err := txRepo.ListByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		txs, err := mapper.TransactionsFromDTO(reads)
		if err != nil {
			return err
		}

		balance, foldErr := escrowdomain.Fold(accountID, money.Code(acctRead.Currency), txs)
		if foldErr == nil {
			foldErr = balance.Verify()
		}
		if foldErr == nil {
			out = mapper.BalanceToRead(balance)
			return nil
		}
		if !errors.Is(foldErr, escrowdomain.ErrLedgerCorruption) {
			return foldErr
		}

		if err = acctRepo.UpdateStatus(ctx, accountID, string(escrowdomain.AccountFrozen)); err != nil {
			return err
		}
		if err = s.appendFinding(ctx, uow, acctRead.ProjectID, accountID, foldErr.Error()); err != nil {
			return err
		}
		corruption = &events.LedgerCorruptionDetected{AccountID: accountID, Detail: foldErr.Error()}
		corruptionErr = foldErr
		// commit the freeze; the corruption error surfaces to the caller
		// after the transaction lands
		return nil
	})
	if corruption != nil {
		logger.Error("ledger corruption detected, account frozen", "detail", corruption.Detail)
		s.publish(ctx, *corruption)
	}
	if err != nil {
		return nil, err
	}
	if corruptionErr != nil {
		return nil, corruptionErr
	}
	return out, nil
}

func (s *Service) appendFinding(
	ctx context.Context,
	uow repository.UnitOfWork,
	projectID, accountID uuid.UUID,
	detail string,
) error {
	auditRepo, err := uow.AuditRepository()
	if err != nil {
		return err
	}
	rec := audit.NewRecord(
		projectID,
		"escrow_account",
		accountID,
		uuid.Nil,
		string(escrowdomain.AccountActive),
		string(escrowdomain.AccountFrozen),
		detail,
	)
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
