// Package testutils wires the in-memory infrastructure into the deps
// bundle services are built from, so service and handler tests run against
// real transactional semantics without a database.
package testutils

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	infraeventbus "github.com/buildrail/escrow/infra/eventbus"
	"github.com/buildrail/escrow/infra/provider/mockpayment"
	"github.com/buildrail/escrow/internal/fixtures"
	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/money"
	"github.com/buildrail/escrow/pkg/repository"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Env bundles the in-memory infrastructure a test runs against.
type Env struct {
	Deps    config.Deps
	Uow     *fixtures.MemoryUoW
	Bus     *infraeventbus.MemoryEventBus
	Gateway *mockpayment.MockPaymentGateway
}

// NewEnv builds a fresh environment with an empty store and an immediately
// settling gateway.
func NewEnv() *Env {
	logger := slog.New(slog.DiscardHandler)
	uow := fixtures.NewMemoryUoW()
	bus := infraeventbus.NewWithMemory(logger)
	gateway := mockpayment.New()
	cfg := &config.App{
		Env:    "test",
		Server: &config.Server{Scheme: "http", Host: "localhost", Port: 3000},
		Log:    &config.Log{},
		DB:     &config.DB{},
		Auth: &config.Auth{
			Strategy: "jwt",
			Jwt:      &config.Jwt{Secret: "test-secret", Expiry: time.Hour},
		},
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
		Payout: &config.Payout{
			MaxRetries:      3,
			DispatchTimeout: 2 * time.Second,
			PollInterval:    10 * time.Millisecond,
			Workers:         2,
			BatchSize:       10,
		},
	}
	return &Env{
		Deps: config.Deps{
			Uow:      uow,
			Gateway:  gateway,
			EventBus: bus,
			Logger:   logger,
			Config:   cfg,
		},
		Uow:     uow,
		Bus:     bus,
		Gateway: gateway,
	}
}

// Ledger is a seeded active project with its escrow account and milestones.
type Ledger struct {
	ProjectID    uuid.UUID
	OwnerID      uuid.UUID
	ContractorID uuid.UUID
	AccountID    uuid.UUID
	MilestoneIDs []uuid.UUID
}

// SeedActiveProject drives a project through create, award and activate with
// one milestone per amount given (in the smallest currency unit).
func SeedActiveProject(t *testing.T, env *Env, currency money.Code, milestoneCents ...int64) *Ledger {
	t.Helper()
	ctx := context.Background()
	projects := projectsvc.NewService(env.Deps)

	ownerID := uuid.New()
	contractorID := uuid.New()

	proj, err := projects.Create(ctx, ownerID, "seeded project", currency)
	require.NoError(t, err)
	_, err = projects.Award(ctx, proj.ID, contractorID, ownerID)
	require.NoError(t, err)

	specs := make([]projectsvc.MilestoneSpec, 0, len(milestoneCents))
	for i, cents := range milestoneCents {
		amount, err := money.NewFromSmallestUnit(cents, currency)
		require.NoError(t, err)
		specs = append(specs, projectsvc.MilestoneSpec{
			Title:   fmt.Sprintf("milestone %d", i+1),
			Amount:  amount,
			DueDate: time.Now().AddDate(0, i+1, 0),
		})
	}
	_, err = projects.Activate(ctx, proj.ID, ownerID, specs)
	require.NoError(t, err)

	ledger := &Ledger{ProjectID: proj.ID, OwnerID: ownerID, ContractorID: contractorID}
	err = env.Uow.Do(ctx, func(uow repository.UnitOfWork) error {
		acctRepo, err := uow.EscrowAccountRepository()
		if err != nil {
			return err
		}
		acct, err := acctRepo.GetByProject(ctx, proj.ID)
		if err != nil {
			return err
		}
		ledger.AccountID = acct.ID

		msRepo, err := uow.MilestoneRepository()
		if err != nil {
			return err
		}
		milestones, err := msRepo.ListByProject(ctx, proj.ID)
		if err != nil {
			return err
		}
		for _, ms := range milestones {
			ledger.MilestoneIDs = append(ledger.MilestoneIDs, ms.ID)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, ledger.MilestoneIDs, len(milestoneCents))
	return ledger
}

// ReadyMilestone walks one milestone to release_requested.
func ReadyMilestone(t *testing.T, env *Env, ledger *Ledger, milestoneID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	milestones := milestonesvc.NewService(env.Deps)

	_, err := milestones.Submit(ctx, milestoneID, ledger.ContractorID)
	require.NoError(t, err)
	_, err = milestones.Approve(ctx, milestoneID, ledger.OwnerID)
	require.NoError(t, err)
	_, err = milestones.RequestRelease(ctx, milestoneID, ledger.ContractorID)
	require.NoError(t, err)
}
