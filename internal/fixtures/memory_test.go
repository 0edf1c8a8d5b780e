package fixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/buildrail/escrow/pkg/domain/common"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAccount(t *testing.T, uow *MemoryUoW) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := uow.Do(context.Background(), func(tx repository.UnitOfWork) error {
		repo, err := tx.EscrowAccountRepository()
		if err != nil {
			return err
		}
		return repo.Create(context.Background(), dto.AccountCreate{
			ID:        id,
			ProjectID: uuid.New(),
			Currency:  "USD",
			Status:    string(escrowdomain.AccountActive),
		})
	})
	require.NoError(t, err)
	return id
}

func TestDo_RollsBackOnError(t *testing.T) {
	uow := NewMemoryUoW()
	ctx := context.Background()
	accountID := createAccount(t, uow)
	boom := errors.New("abort")

	err := uow.Do(ctx, func(tx repository.UnitOfWork) error {
		repo, err := tx.TransactionRepository()
		if err != nil {
			return err
		}
		if err := repo.Append(ctx, dto.TransactionCreate{
			ID:             uuid.New(),
			AccountID:      accountID,
			Type:           string(escrowdomain.TxDeposit),
			Amount:         1000,
			Currency:       "USD",
			IdempotencyKey: "dep-1",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = uow.Do(ctx, func(tx repository.UnitOfWork) error {
		repo, err := tx.TransactionRepository()
		if err != nil {
			return err
		}
		rows, err := repo.ListByAccount(ctx, accountID)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	})
	require.NoError(t, err)
}

func TestDo_RepositoriesRequireTransaction(t *testing.T) {
	uow := NewMemoryUoW()

	_, err := uow.TransactionRepository()
	require.Error(t, err)
}

func TestAppend_DuplicateIdempotencyKey(t *testing.T) {
	uow := NewMemoryUoW()
	ctx := context.Background()
	accountID := createAccount(t, uow)

	append1 := func(id uuid.UUID) error {
		return uow.Do(ctx, func(tx repository.UnitOfWork) error {
			repo, err := tx.TransactionRepository()
			if err != nil {
				return err
			}
			return repo.Append(ctx, dto.TransactionCreate{
				ID:             id,
				AccountID:      accountID,
				Type:           string(escrowdomain.TxDeposit),
				Amount:         1000,
				Currency:       "USD",
				IdempotencyKey: "dep-1",
			})
		})
	}
	require.NoError(t, append1(uuid.New()))
	require.ErrorIs(t, append1(uuid.New()), common.ErrDuplicateOperation)
}

func TestAppend_DuplicateReleaseKey(t *testing.T) {
	uow := NewMemoryUoW()
	ctx := context.Background()
	accountID := createAccount(t, uow)
	milestoneID := uuid.New()

	release := func(key string) error {
		return uow.Do(ctx, func(tx repository.UnitOfWork) error {
			repo, err := tx.TransactionRepository()
			if err != nil {
				return err
			}
			return repo.Append(ctx, dto.TransactionCreate{
				ID:             uuid.New(),
				AccountID:      accountID,
				Type:           string(escrowdomain.TxRelease),
				Amount:         1000,
				Currency:       "USD",
				MilestoneID:    &milestoneID,
				IdempotencyKey: key,
			})
		})
	}
	require.NoError(t, release("rel-1"))
	require.ErrorIs(t, release("rel-2"), escrowdomain.ErrAlreadyReleased)
}
