package milestone_test

import (
	"context"
	"testing"

	escrowdomain "github.com/buildrail/escrow/pkg/domain/escrow"
	"github.com/buildrail/escrow/pkg/domain/events"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/repository"
	"github.com/buildrail/escrow/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitApproveFlow(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := milestonesvc.NewService(env.Deps)
	escrows := escrowsvc.NewService(env.Deps)
	ctx := context.Background()

	_, err := escrows.Deposit(ctx, escrowsvc.DepositCommand{
		AccountID: ledger.AccountID, Amount: 5000, IdempotencyKey: "dep-1",
	})
	require.NoError(t, err)

	ms, err := svc.Submit(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusSubmitted), ms.Status)

	ms, err = svc.Approve(ctx, ledger.MilestoneIDs[0], ledger.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusApproved), ms.Status)

	ms, err = svc.RequestRelease(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusReleaseRequested), ms.Status)
}

func TestRequestRelease_InsufficientFunds(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := milestonesvc.NewService(env.Deps)
	escrows := escrowsvc.NewService(env.Deps)
	ctx := context.Background()

	_, err := escrows.Deposit(ctx, escrowsvc.DepositCommand{
		AccountID: ledger.AccountID, Amount: 4000, IdempotencyKey: "dep-1",
	})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, ledger.MilestoneIDs[0], ledger.OwnerID)
	require.NoError(t, err)

	// the account cannot cover the milestone, so the request fails now
	// rather than leaving a release_requested milestone nobody can pay
	_, err = svc.RequestRelease(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.ErrorIs(t, err, escrowdomain.ErrInsufficientFunds)

	ms, err := svc.Get(ctx, ledger.MilestoneIDs[0])
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusApproved), ms.Status)

	// topping up unblocks the request
	_, err = escrows.Deposit(ctx, escrowsvc.DepositCommand{
		AccountID: ledger.AccountID, Amount: 1000, IdempotencyKey: "dep-2",
	})
	require.NoError(t, err)
	ms, err = svc.RequestRelease(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusReleaseRequested), ms.Status)
}

func TestReject(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := milestonesvc.NewService(env.Deps)
	ctx := context.Background()

	_, err := svc.Submit(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	ms, err := svc.Reject(ctx, ledger.MilestoneIDs[0], ledger.OwnerID, "missing tests")
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusRejected), ms.Status)

	// resubmission after rework
	ms, err = svc.Submit(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusSubmitted), ms.Status)
}

func TestIllegalTransitionRollsBack(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := milestonesvc.NewService(env.Deps)
	ctx := context.Background()

	_, err := svc.Approve(ctx, ledger.MilestoneIDs[0], ledger.OwnerID)
	require.ErrorIs(t, err, milestonedomain.ErrInvalidTransition)

	ms, err := svc.Get(ctx, ledger.MilestoneIDs[0])
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusPending), ms.Status)
}

func TestUnknownMilestone(t *testing.T) {
	env := testutils.NewEnv()
	svc := milestonesvc.NewService(env.Deps)

	_, err := svc.Submit(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, milestonedomain.ErrMilestoneNotFound)
}

func TestListByProject(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 1000, 2000, 3000)
	svc := milestonesvc.NewService(env.Deps)

	list, err := svc.ListByProject(context.Background(), ledger.ProjectID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1000), list[0].Amount)
	assert.Equal(t, int64(3000), list[2].Amount)
}

func TestTransitionPublishesEventAndAudit(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := milestonesvc.NewService(env.Deps)
	ctx := context.Background()
	env.Bus.ClearPublished()

	_, err := svc.Submit(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)

	published := env.Bus.Published()
	require.Len(t, published, 1)
	ev, ok := published[0].(events.MilestoneTransitioned)
	require.True(t, ok)
	assert.Equal(t, string(milestonedomain.StatusPending), ev.From)
	assert.Equal(t, string(milestonedomain.StatusSubmitted), ev.To)
	assert.Equal(t, ledger.ContractorID, ev.Actor)

	err = env.Uow.Do(ctx, func(uow repository.UnitOfWork) error {
		auditRepo, err := uow.AuditRepository()
		if err != nil {
			return err
		}
		records, err := auditRepo.ListByProject(ctx, ledger.ProjectID)
		if err != nil {
			return err
		}
		found := false
		for _, rec := range records {
			if rec.Entity == "milestone" && rec.ToState == string(milestonedomain.StatusSubmitted) {
				found = true
			}
		}
		assert.True(t, found, "transition audit record written")
		return nil
	})
	require.NoError(t, err)
}
