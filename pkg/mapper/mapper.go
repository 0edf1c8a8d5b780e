// Package mapper hydrates domain aggregates from repository DTOs and builds
// the create DTOs going the other way. Services never touch persistence
// models directly.
package mapper

import (
	"github.com/buildrail/escrow/pkg/domain/dispute"
	"github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/domain/milestone"
	"github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/money"
)

// AccountFromDTO hydrates an escrow account aggregate.
func AccountFromDTO(read *dto.AccountRead) (*escrow.Account, error) {
	return escrow.New().
		WithID(read.ID).
		WithProjectID(read.ProjectID).
		WithCurrency(money.Code(read.Currency)).
		WithStatus(escrow.AccountStatus(read.Status)).
		WithCreatedAt(read.CreatedAt).
		WithUpdatedAt(read.UpdatedAt).
		Build()
}

// AccountToCreate builds the create DTO for a new escrow account.
func AccountToCreate(a *escrow.Account) dto.AccountCreate {
	return dto.AccountCreate{
		ID:        a.ID,
		ProjectID: a.ProjectID,
		Currency:  a.Currency.String(),
		Status:    string(a.Status),
	}
}

// TransactionFromDTO hydrates one ledger transaction.
func TransactionFromDTO(read *dto.TransactionRead) (*escrow.Transaction, error) {
	amount, err := money.NewFromSmallestUnit(read.Amount, money.Code(read.Currency))
	if err != nil {
		return nil, err
	}
	return &escrow.Transaction{
		ID:             read.ID,
		AccountID:      read.AccountID,
		Type:           escrow.TxType(read.Type),
		Amount:         amount,
		MilestoneID:    read.MilestoneID,
		Reason:         read.Reason,
		IdempotencyKey: read.IdempotencyKey,
		CreatedAt:      read.CreatedAt,
	}, nil
}

// TransactionsFromDTO hydrates a transaction log in order.
func TransactionsFromDTO(reads []*dto.TransactionRead) ([]*escrow.Transaction, error) {
	txs := make([]*escrow.Transaction, 0, len(reads))
	for _, read := range reads {
		tx, err := TransactionFromDTO(read)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// TransactionToCreate builds the append DTO for a ledger transaction.
func TransactionToCreate(tx *escrow.Transaction) dto.TransactionCreate {
	return dto.TransactionCreate{
		ID:             tx.ID,
		AccountID:      tx.AccountID,
		Type:           string(tx.Type),
		Amount:         tx.Amount.Amount(),
		Currency:       tx.Amount.Currency().String(),
		MilestoneID:    tx.MilestoneID,
		Reason:         tx.Reason,
		IdempotencyKey: tx.IdempotencyKey,
	}
}

// TransactionToRead mirrors a freshly appended transaction back to callers
// without a second round trip.
func TransactionToRead(tx *escrow.Transaction) *dto.TransactionRead {
	return &dto.TransactionRead{
		ID:             tx.ID,
		AccountID:      tx.AccountID,
		Type:           string(tx.Type),
		Amount:         tx.Amount.Amount(),
		Currency:       tx.Amount.Currency().String(),
		MilestoneID:    tx.MilestoneID,
		Reason:         tx.Reason,
		IdempotencyKey: tx.IdempotencyKey,
		CreatedAt:      tx.CreatedAt,
	}
}

// BalanceToRead flattens a folded balance for callers.
func BalanceToRead(b escrow.Balance) *dto.BalanceRead {
	return &dto.BalanceRead{
		AccountID:      b.AccountID,
		Currency:       b.Available.Currency().String(),
		TotalDeposited: b.TotalDeposited.Amount(),
		Released:       b.Released.Amount(),
		Refunded:       b.Refunded.Amount(),
		Held:           b.Held.Amount(),
		Available:      b.Available.Amount(),
	}
}

// MilestoneFromDTO hydrates a milestone aggregate.
func MilestoneFromDTO(read *dto.MilestoneRead) (*milestone.Milestone, error) {
	amount, err := money.NewFromSmallestUnit(read.Amount, money.Code(read.Currency))
	if err != nil {
		return nil, err
	}
	return milestone.New().
		WithID(read.ID).
		WithProjectID(read.ProjectID).
		WithTitle(read.Title).
		WithAmount(amount).
		WithDueDate(read.DueDate).
		WithStatus(milestone.Status(read.Status)).
		WithCreatedAt(read.CreatedAt).
		WithUpdatedAt(read.UpdatedAt).
		Build()
}

// MilestoneToCreate builds the create DTO for a milestone.
func MilestoneToCreate(m *milestone.Milestone) dto.MilestoneCreate {
	return dto.MilestoneCreate{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Title:     m.Title,
		Amount:    m.Amount.Amount(),
		Currency:  m.Amount.Currency().String(),
		DueDate:   m.DueDate,
		Status:    string(m.Status),
	}
}

// ProjectFromDTO hydrates a project aggregate.
func ProjectFromDTO(read *dto.ProjectRead) (*project.Project, error) {
	b := project.New().
		WithID(read.ID).
		WithOwnerID(read.OwnerID).
		WithTitle(read.Title).
		WithCurrency(money.Code(read.Currency)).
		WithStatus(project.Status(read.Status)).
		WithCreatedAt(read.CreatedAt).
		WithUpdatedAt(read.UpdatedAt)
	if read.ContractorID != nil {
		b = b.WithContractorID(*read.ContractorID)
	}
	return b.Build()
}

// ProjectToCreate builds the create DTO for a project.
func ProjectToCreate(p *project.Project) dto.ProjectCreate {
	return dto.ProjectCreate{
		ID:       p.ID,
		OwnerID:  p.OwnerID,
		Title:    p.Title,
		Currency: p.Currency.String(),
		Status:   string(p.Status),
	}
}

// PayoutFromDTO hydrates a payout aggregate.
func PayoutFromDTO(read *dto.PayoutRead) (*payout.Payout, error) {
	amount, err := money.NewFromSmallestUnit(read.Amount, money.Code(read.Currency))
	if err != nil {
		return nil, err
	}
	return &payout.Payout{
		ID:                   read.ID,
		ContractorID:         read.ContractorID,
		ReleaseTransactionID: read.ReleaseTransactionID,
		Amount:               amount,
		BankAccount:          read.BankAccount,
		ProviderRef:          read.ProviderRef,
		Status:               payout.Status(read.Status),
		Attempts:             read.Attempts,
		LastError:            read.LastError,
		ScheduledDate:        read.ScheduledDate,
		ProcessedAt:          read.ProcessedAt,
		CreatedAt:            read.CreatedAt,
		UpdatedAt:            read.UpdatedAt,
	}, nil
}

// PayoutToCreate builds the create DTO for a payout.
func PayoutToCreate(p *payout.Payout) dto.PayoutCreate {
	return dto.PayoutCreate{
		ID:                   p.ID,
		ContractorID:         p.ContractorID,
		ReleaseTransactionID: p.ReleaseTransactionID,
		Amount:               p.Amount.Amount(),
		Currency:             p.Amount.Currency().String(),
		BankAccount:          p.BankAccount,
		Status:               string(p.Status),
		ScheduledDate:        p.ScheduledDate,
	}
}

// DisputeFromDTO hydrates a dispute aggregate.
func DisputeFromDTO(read *dto.DisputeRead) *dispute.Dispute {
	return &dispute.Dispute{
		ID:         read.ID,
		ProjectID:  read.ProjectID,
		RaisedBy:   read.RaisedBy,
		Reason:     read.Reason,
		Status:     dispute.Status(read.Status),
		OpenedAt:   read.OpenedAt,
		ResolvedAt: read.ResolvedAt,
	}
}

// DisputeToCreate builds the create DTO for a dispute.
func DisputeToCreate(d *dispute.Dispute) dto.DisputeCreate {
	return dto.DisputeCreate{
		ID:        d.ID,
		ProjectID: d.ProjectID,
		RaisedBy:  d.RaisedBy,
		Reason:    d.Reason,
		Status:    string(d.Status),
	}
}
