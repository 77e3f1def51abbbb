package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianlabs/lpboost/internal/service"
)

// ClaimArchiver exports confirmed claim audits to cold storage. Satisfied by
// the S3 archiver; nil disables the archive loop.
type ClaimArchiver interface {
	ArchiveClaimAudits(ctx context.Context, before time.Time) (int, error)
}

// Config holds the orchestrator's loop intervals.
type Config struct {
	// AccrualInterval is how often the accrual pass recomputes every
	// active ledger.
	AccrualInterval time.Duration

	// SweepInterval is how often expired sessions are evicted.
	SweepInterval time.Duration

	// ArchiveInterval is how often the audit archiver runs. Ignored when
	// no archiver is configured.
	ArchiveInterval time.Duration

	// ArchiveAge is how old a confirmed audit must be before export.
	ArchiveAge time.Duration
}

// Orchestrator manages the engine's background goroutines.
type Orchestrator struct {
	accrual    *AccrualRunner
	provenance *service.ProvenanceService
	archiver   ClaimArchiver
	cfg        Config
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil.
func NewOrchestrator(
	accrual *AccrualRunner,
	provenance *service.ProvenanceService,
	archiver ClaimArchiver,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		accrual:    accrual,
		provenance: provenance,
		archiver:   archiver,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "pipeline")),
	}
}

// Run starts the loops as concurrent goroutines under an errgroup. Each
// respects ctx cancellation; a non-context error from any loop cancels the
// rest and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline starting",
		slog.Duration("accrual_interval", o.cfg.AccrualInterval),
		slog.Duration("sweep_interval", o.cfg.SweepInterval),
		slog.Bool("archiver", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.runAccrualLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("accrual loop: %w", err)
	})

	g.Go(func() error {
		err := o.runSweepLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("session sweep: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.runArchiveLoop(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("audit archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline stopped cleanly")
	return nil
}

// runAccrualLoop runs a pass immediately on start, then on every tick. A
// failed pass is logged and retried next tick rather than taking the engine
// down: accrual is monotonic, so a missed tick only delays numbers.
func (o *Orchestrator) runAccrualLoop(ctx context.Context) error {
	if _, err := o.accrual.RunOnce(ctx); err != nil && ctx.Err() == nil {
		o.logger.Error("accrual pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.cfg.AccrualInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.accrual.RunOnce(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("accrual pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (o *Orchestrator) runSweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.provenance.SweepSessions(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("session sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (o *Orchestrator) runArchiveLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-o.cfg.ArchiveAge)
			if _, err := o.archiver.ArchiveClaimAudits(ctx, cutoff); err != nil && ctx.Err() == nil {
				o.logger.Error("audit archive failed", slog.String("error", err.Error()))
			}
		}
	}
}
