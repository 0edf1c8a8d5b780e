// Package initializer assembles the runtime dependency graph: logger,
// database, unit of work, event bus, gateway and metrics.
package initializer

import (
	"fmt"

	"github.com/buildrail/escrow/infra"
	infraeventbus "github.com/buildrail/escrow/infra/eventbus"
	"github.com/buildrail/escrow/infra/model"
	"github.com/buildrail/escrow/infra/provider/mockpayment"
	infrarepository "github.com/buildrail/escrow/infra/repository"
	"github.com/buildrail/escrow/pkg/config"
	"github.com/buildrail/escrow/pkg/metrics"
)

// InitializeDependencies builds everything the services need. The schema is
// migrated on startup so a fresh database is usable immediately.
func InitializeDependencies(cfg *config.App) (*config.Deps, error) {
	logger := setupLogger(cfg.Log)

	db, err := infra.NewDBConnection(*cfg.DB, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	bus := infraeventbus.NewWithMemory(logger)
	metrics.Ledger().Attach(bus)

	return &config.Deps{
		Uow: infrarepository.NewUoW(db),
		// TODO: swap for the production gateway adapter once the rail is
		// contracted; the workflow only sees payment.Gateway.
		Gateway:  mockpayment.New(),
		EventBus: bus,
		Logger:   logger,
		Config:   cfg,
	}, nil
}
