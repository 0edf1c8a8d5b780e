package project_test

import (
	"context"
	"testing"
	"time"

	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	projectdomain "github.com/buildrail/escrow/pkg/domain/project"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/buildrail/escrow/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	env := testutils.NewEnv()
	svc := projectsvc.NewService(env.Deps)

	proj, err := svc.Create(context.Background(), uuid.New(), "storefront", money.EUR)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusSetup), proj.Status)
	assert.Equal(t, "EUR", proj.Currency)
	assert.Nil(t, proj.ContractorID)
}

func TestActivate_CreatesAccountAndMilestones(t *testing.T) {
	env := testutils.NewEnv()
	svc := projectsvc.NewService(env.Deps)
	ctx := context.Background()

	ownerID := uuid.New()
	proj, err := svc.Create(ctx, ownerID, "storefront", money.USD)
	require.NoError(t, err)
	_, err = svc.Award(ctx, proj.ID, uuid.New(), ownerID)
	require.NoError(t, err)

	activated, err := svc.Activate(ctx, proj.ID, ownerID, []projectsvc.MilestoneSpec{
		{Title: "design", Amount: money.Must(20, money.USD), DueDate: time.Now().AddDate(0, 1, 0)},
		{Title: "build", Amount: money.Must(80, money.USD), DueDate: time.Now().AddDate(0, 2, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusActive), activated.Status)

	err = env.Uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acct, err := acctRepo.GetByProject(ctx, proj.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, string(escrowdomain.AccountActive), acct.Status)
		assert.Equal(t, "USD", acct.Currency)

		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		milestones, err := msRepo.ListByProject(ctx, proj.ID)
		if err != nil {
			return err
		}
		require.Len(t, milestones, 2)
		assert.Equal(t, "design", milestones[0].Title)
		assert.Equal(t, int64(8000), milestones[1].Amount)
		return nil
	})
	require.NoError(t, err)
}

func TestActivate_WithoutContractor(t *testing.T) {
	env := testutils.NewEnv()
	svc := projectsvc.NewService(env.Deps)
	ctx := context.Background()

	ownerID := uuid.New()
	proj, err := svc.Create(ctx, ownerID, "storefront", money.USD)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, proj.ID, ownerID, nil)
	require.ErrorIs(t, err, projectdomain.ErrNoContractor)
}

func TestActivate_RejectsCurrencyMismatch(t *testing.T) {
	env := testutils.NewEnv()
	svc := projectsvc.NewService(env.Deps)
	ctx := context.Background()

	ownerID := uuid.New()
	proj, err := svc.Create(ctx, ownerID, "storefront", money.USD)
	require.NoError(t, err)
	_, err = svc.Award(ctx, proj.ID, uuid.New(), ownerID)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, proj.ID, ownerID, []projectsvc.MilestoneSpec{
		{Title: "design", Amount: money.Must(20, money.EUR), DueDate: time.Now()},
	})
	require.ErrorIs(t, err, money.ErrMismatchedCurrencies)

	// the whole activation rolls back, including the status flip
	got, err := svc.Get(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusSetup), got.Status)
	err = env.Uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		_, err = acctRepo.GetByProject(ctx, proj.ID)
		require.ErrorIs(t, err, escrowdomain.ErrAccountNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestComplete(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := projectsvc.NewService(env.Deps)

	proj, err := svc.Complete(context.Background(), ledger.ProjectID, ledger.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusCompleted), proj.Status)
}

func TestCancel_CancelsUnpaidMilestonesOnly(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 3000, 7000)
	svc := projectsvc.NewService(env.Deps)
	escrows := escrowsvc.NewService(env.Deps)
	milestones := milestonesvc.NewService(env.Deps)
	ctx := context.Background()

	_, err := escrows.Deposit(ctx, escrowsvc.DepositCommand{
		AccountID: ledger.AccountID, Amount: 10000, IdempotencyKey: "dep-1",
	})
	require.NoError(t, err)
	testutils.ReadyMilestone(t, env, ledger, ledger.MilestoneIDs[0])
	_, err = escrows.Release(ctx, escrowsvc.ReleaseCommand{
		AccountID: ledger.AccountID, MilestoneID: ledger.MilestoneIDs[0],
		Amount: 3000, BankAccount: "acct_42", IdempotencyKey: "rel-1",
	})
	require.NoError(t, err)

	proj, err := svc.Cancel(ctx, ledger.ProjectID, ledger.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusCancelled), proj.Status)

	paid, err := milestones.Get(ctx, ledger.MilestoneIDs[0])
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusPaid), paid.Status, "paid milestones stay paid")

	cancelled, err := milestones.Get(ctx, ledger.MilestoneIDs[1])
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusCancelled), cancelled.Status)

	// the ledger survives cancellation untouched
	bal, err := escrows.Balance(ctx, ledger.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), bal.Released)
	assert.Equal(t, int64(7000), bal.Available)
}

func TestAward_UnknownProject(t *testing.T) {
	env := testutils.NewEnv()
	svc := projectsvc.NewService(env.Deps)

	_, err := svc.Award(context.Background(), uuid.New(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, projectdomain.ErrProjectNotFound)
}
