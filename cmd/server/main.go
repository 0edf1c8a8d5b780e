package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/buildrail/escrow/infra/initializer"
	"github.com/buildrail/escrow/pkg/config"
	disputesvc "github.com/buildrail/escrow/pkg/service/dispute"
	escrowsvc "github.com/buildrail/escrow/pkg/service/escrow"
	milestonesvc "github.com/buildrail/escrow/pkg/service/milestone"
	payoutsvc "github.com/buildrail/escrow/pkg/service/payout"
	projectsvc "github.com/buildrail/escrow/pkg/service/project"
	reconcilesvc "github.com/buildrail/escrow/pkg/service/reconcile"
	"github.com/buildrail/escrow/webapi"
	log "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	logger := deps.Logger

	payoutSvc := payoutsvc.NewService(*deps)
	svcs := webapi.Services{
		Escrow:    escrowsvc.NewService(*deps),
		Milestone: milestonesvc.NewService(*deps),
		Dispute:   disputesvc.NewService(*deps),
		Payout:    payoutSvc,
		Project:   projectsvc.NewService(*deps),
		Reconcile: reconcilesvc.NewService(*deps),
	}
	app := webapi.NewApp(svcs, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker := payoutsvc.NewWorker(payoutSvc)
		if err := worker.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	return g.Wait()
}
