package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/buildrail/escrow/pkg/domain/common"
	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTransactionRepository_Append(t *testing.T) {
	db, mock := newMockDB(t)
	repo := transactionRepository{db: db}
	ctx := context.Background()
	milestoneID := uuid.New()

	create := dto.TransactionCreate{
		ID:             uuid.New(),
		AccountID:      uuid.New(),
		Type:           string(escrowdomain.TxRelease),
		Amount:         5000,
		Currency:       "USD",
		MilestoneID:    &milestoneID,
		IdempotencyKey: "rel-1",
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Append(ctx, create))

	// a racing second release dies on the release key index
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnError(uniqueViolation("idx_transactions_release_key"))
	mock.ExpectRollback()

	err := repo.Append(ctx, create)
	require.ErrorIs(t, err, escrowdomain.ErrAlreadyReleased)

	// a replayed idempotency key is a duplicated operation, not a release race
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnError(uniqueViolation("idx_transactions_idempotency_key"))
	mock.ExpectRollback()

	err = repo.Append(ctx, create)
	require.ErrorIs(t, err, common.ErrDuplicateOperation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := transactionRepository{db: db}
	ctx := context.Background()

	txID := uuid.New()
	accountID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "account_id", "type", "amount", "currency", "idempotency_key", "created_at"}).
		AddRow(txID, accountID, "deposit", int64(10000), "USD", "dep-1", time.Now().UTC())
	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)`).
		WithArgs(txID, 1).
		WillReturnRows(rows)

	got, err := repo.Get(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, txID, got.ID)
	assert.Equal(t, accountID, got.AccountID)
	assert.Equal(t, int64(10000), got.Amount)

	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)`).
		WithArgs(sqlmock.AnyArg(), 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err = repo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPayoutRepository_Create_UniqueRelease(t *testing.T) {
	db, mock := newMockDB(t)
	repo := payoutRepository{db: db}
	ctx := context.Background()

	releaseTxID := uuid.New()
	create := dto.PayoutCreate{
		ID:                   uuid.New(),
		ContractorID:         uuid.New(),
		ReleaseTransactionID: &releaseTxID,
		Amount:               5000,
		Currency:             "USD",
		BankAccount:          "acct_99",
		Status:               string(payoutdomain.StatusPending),
		ScheduledDate:        time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "payouts" (.+) VALUES (.+)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(ctx, create))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "payouts" (.+) VALUES (.+)`).
		WillReturnError(uniqueViolation("idx_payouts_release_transaction_id"))
	mock.ExpectRollback()

	err := repo.Create(ctx, create)
	require.ErrorIs(t, err, common.ErrDuplicateOperation)
}

func TestPayoutRepository_Update(t *testing.T) {
	db, mock := newMockDB(t)
	repo := payoutRepository{db: db}
	ctx := context.Background()
	id := uuid.New()
	status := string(payoutdomain.StatusApproved)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payouts" SET (.+) WHERE id = (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(ctx, id, dto.PayoutUpdate{Status: &status}))

	// updating a missing payout matches no row; the statement itself still
	// commits and the sentinel is raised afterwards
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payouts" SET (.+) WHERE id = (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Update(ctx, id, dto.PayoutUpdate{Status: &status})
	require.ErrorIs(t, err, payoutdomain.ErrPayoutNotFound)
}

func TestPayoutRepository_ProcessedAtWriteOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := payoutRepository{db: db}
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payouts" SET (.+) WHERE id = (.+) AND processed_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(ctx, id, dto.PayoutUpdate{ProcessedAt: &now}))

	// the guarded update matches no row once the timestamp is set, and that
	// is not an error
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payouts" SET (.+) WHERE id = (.+) AND processed_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(ctx, id, dto.PayoutUpdate{ProcessedAt: &now}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
