package payout

import (
	"context"
	"log/slog"
	"time"

	payoutdomain "github.com/buildrail/escrow/pkg/domain/payout"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Worker drains the payout queue in the background. Each poll it claims a
// batch of approved payouts and dispatches them across a bounded pool, then
// sweeps payouts stuck in processing from an earlier crash.
type Worker struct {
	svc    *Service
	logger *slog.Logger
}

// NewWorker wraps the service with the polling loop.
func NewWorker(svc *Service) *Worker {
	return &Worker{
		svc:    svc,
		logger: svc.logger.With("component", "payout_worker"),
	}
}

// Run blocks until ctx is cancelled. Safe to run in its own goroutine next
// to the API server.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("payout worker started",
		"poll_interval", w.svc.cfg.PollInterval,
		"workers", w.svc.cfg.Workers,
		"batch_size", w.svc.cfg.BatchSize,
	)
	ticker := time.NewTicker(w.svc.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("payout worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.tick(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("payout poll failed", "error", err)
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context) error {
	if w.svc.cfg.AutoApprove {
		if err := w.approvePending(ctx); err != nil {
			return err
		}
	}
	if err := w.dispatchApproved(ctx); err != nil {
		return err
	}
	if _, err := w.svc.ResolveProcessing(ctx, w.svc.cfg.BatchSize); err != nil {
		return err
	}
	return nil
}

func (w *Worker) approvePending(ctx context.Context) error {
	pending, err := w.svc.ListByStatus(ctx, payoutdomain.StatusPending, w.svc.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if _, err := w.svc.Approve(ctx, p.ID, uuid.Nil); err != nil {
			// a concurrent transition claimed it first, skip
			w.logger.Debug("auto approve skipped", "payout_id", p.ID, "error", err)
		}
	}
	return nil
}

func (w *Worker) dispatchApproved(ctx context.Context) error {
	approved, err := w.svc.ListByStatus(ctx, payoutdomain.StatusApproved, w.svc.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(approved) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.svc.cfg.Workers)
	for _, p := range approved {
		id := p.ID
		g.Go(func() error {
			if _, err := w.svc.Dispatch(gctx, id); err != nil {
				// failed dispatches are recorded on the row, nothing to
				// propagate here
				w.logger.Warn("dispatch failed", "payout_id", id, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
