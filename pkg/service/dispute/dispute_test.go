package dispute_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/buildrail/escrow/pkg/domain/common"
	disputedomain "github.com/buildrail/escrow/pkg/domain/dispute"
	"github.com/buildrail/escrow/pkg/domain/events"
	milestonedomain "github.com/buildrail/escrow/pkg/domain/milestone"
	projectdomain "github.com/buildrail/escrow/pkg/domain/project"
	"github.com/buildrail/escrow/pkg/dto"
	"github.com/buildrail/escrow/pkg/repository"
	disputesvc "github.com/buildrail/escrow/pkg/service/dispute"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_GatesProject(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	projects := projectsvc.NewService(env.Deps)
	ctx := context.Background()

	d, err := svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "deliverable rejected")
	require.NoError(t, err)
	assert.Equal(t, string(disputedomain.StatusOpen), d.Status)

	gated, err := svc.IsGated(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.True(t, gated)

	proj, err := projects.Get(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusDisputed), proj.Status)

	var opened *events.DisputeOpened
	for _, e := range env.Bus.Published() {
		if ev, ok := e.(events.DisputeOpened); ok {
			opened = &ev
		}
	}
	require.NotNil(t, opened)
	assert.Equal(t, d.ID, opened.DisputeID)
}

func TestOpen_UnknownProject(t *testing.T) {
	env := testutils.NewEnv()
	svc := disputesvc.NewService(env.Deps)

	_, err := svc.Open(context.Background(), uuid.New(), uuid.New(), "r")
	require.Error(t, err)
}

func TestOpen_BlocksReleaseRequest(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	milestones := milestonesvc.NewService(env.Deps)
	ctx := context.Background()

	_, err := milestones.Submit(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.NoError(t, err)
	_, err = milestones.Approve(ctx, ledger.MilestoneIDs[0], ledger.OwnerID)
	require.NoError(t, err)

	_, err = svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "quality concerns")
	require.NoError(t, err)

	_, err = milestones.RequestRelease(ctx, ledger.MilestoneIDs[0], ledger.ContractorID)
	require.ErrorIs(t, err, disputedomain.ErrProjectGated)

	// the transition must not have leaked through the failed request
	ms, err := milestones.Get(ctx, ledger.MilestoneIDs[0])
	require.NoError(t, err)
	assert.Equal(t, string(milestonedomain.StatusApproved), ms.Status)
}

func TestReviewKeepsGateClosed(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	ctx := context.Background()

	d, err := svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "r")
	require.NoError(t, err)

	reviewed, err := svc.StartReview(ctx, d.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, string(disputedomain.StatusUnderReview), reviewed.Status)

	gated, err := svc.IsGated(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.True(t, gated)
}

func TestResolve_LiftsGateAndReactivates(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	projects := projectsvc.NewService(env.Deps)
	ctx := context.Background()

	d, err := svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "r")
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, d.ID, disputedomain.StatusResolved, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, string(disputedomain.StatusResolved), resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	gated, err := svc.IsGated(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.False(t, gated)

	proj, err := projects.Get(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusActive), proj.Status)

	var closed *events.DisputeClosed
	for _, e := range env.Bus.Published() {
		if ev, ok := e.(events.DisputeClosed); ok {
			closed = &ev
		}
	}
	require.NotNil(t, closed)
	assert.Equal(t, string(disputedomain.StatusResolved), closed.Outcome)
}

func TestResolve_GateHoldsWhileAnotherDisputeOpen(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	projects := projectsvc.NewService(env.Deps)
	ctx := context.Background()

	first, err := svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "first")
	require.NoError(t, err)
	second, err := svc.Open(ctx, ledger.ProjectID, ledger.ContractorID, "second")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, first.ID, disputedomain.StatusDismissed, uuid.New())
	require.NoError(t, err)

	gated, err := svc.IsGated(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.True(t, gated, "second dispute still blocks")

	proj, err := projects.Get(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, string(projectdomain.StatusDisputed), proj.Status)

	_, err = svc.Resolve(ctx, second.ID, disputedomain.StatusResolved, uuid.New())
	require.NoError(t, err)

	gated, err = svc.IsGated(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.False(t, gated)
}

func TestResolve_AlreadyClosed(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	ctx := context.Background()

	d, err := svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "r")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, d.ID, disputedomain.StatusResolved, uuid.New())
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, d.ID, disputedomain.StatusDismissed, uuid.New())
	require.ErrorIs(t, err, disputedomain.ErrDisputeClosed)
}

func TestListByProject(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	ctx := context.Background()

	first, err := svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "first")
	require.NoError(t, err)
	_, err = svc.Open(ctx, ledger.ProjectID, ledger.ContractorID, "second")
	require.NoError(t, err)

	list, err := svc.ListByProject(ctx, ledger.ProjectID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestConcurrentOpens(t *testing.T) {
	env := testutils.NewEnv()
	ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
	svc := disputesvc.NewService(env.Deps)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Open(ctx, ledger.ProjectID, ledger.OwnerID, "concurrent")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err, "later opens tolerate the already-disputed project")
	}
	list, err := svc.ListByProject(ctx, ledger.ProjectID)
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestConcurrentOpenAndRelease(t *testing.T) {
	// whichever side commits first, the run must end in one of exactly two
	// states: the release landed and the milestone is paid, or the gate won
	// and no release row exists
	const runs = 20
	for i := 0; i < runs; i++ {
		env := testutils.NewEnv()
		ledger := testutils.SeedActiveProject(t, env, money.USD, 5000)
		escrows := escrowsvc.NewService(env.Deps)
		disputes := disputesvc.NewService(env.Deps)
		milestones := milestonesvc.NewService(env.Deps)
		ctx := context.Background()

		_, err := escrows.Deposit(ctx, escrowsvc.DepositCommand{
			AccountID: ledger.AccountID, Amount: 10000, IdempotencyKey: "dep-1",
		})
		require.NoError(t, err)
		testutils.ReadyMilestone(t, env, ledger, ledger.MilestoneIDs[0])

		var wg sync.WaitGroup
		var relErr, openErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, relErr = escrows.Release(ctx, escrowsvc.ReleaseCommand{
				AccountID: ledger.AccountID, MilestoneID: ledger.MilestoneIDs[0],
				Amount: 5000, BankAccount: "acct_42", IdempotencyKey: "rel-1",
			})
		}()
		go func() {
			defer wg.Done()
			_, openErr = disputes.Open(ctx, ledger.ProjectID, ledger.OwnerID, "race")
		}()
		wg.Wait()

		require.NoError(t, openErr)

		var releaseTx *dto.TransactionRead
		err = env.Uow.Do(ctx, func(uow repository.UnitOfWork) error {
			txRepo, err := uow.TransactionRepository()
			if err != nil {
				return err
			}
			got, err := txRepo.GetReleaseForMilestone(ctx, ledger.AccountID, ledger.MilestoneIDs[0])
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			releaseTx = got
			return nil
		})
		require.NoError(t, err)

		ms, err := milestones.Get(ctx, ledger.MilestoneIDs[0])
		require.NoError(t, err)

		if relErr != nil {
			require.ErrorIs(t, relErr, disputedomain.ErrProjectGated)
			require.Nil(t, releaseTx, "a gated release must not leave a ledger row")
			assert.Equal(t, string(milestonedomain.StatusReleaseRequested), ms.Status)
		} else {
			require.NotNil(t, releaseTx, "a committed release must have a ledger row")
			assert.Equal(t, string(milestonedomain.StatusPaid), ms.Status)
		}
	}
}
