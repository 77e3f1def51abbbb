// Package pipeline runs the engine's background loops: the periodic accrual
// pass, session sweeping, and claim-audit archival.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/service"
)

// defaultAccrualWorkers bounds the per-tick fan-out across positions.
const defaultAccrualWorkers = 8

// AccrualRunner executes one accrual pass over all active positions: one
// ranking snapshot, then a bounded-concurrency recompute of every ledger.
// Positions without a ledger (not yet registered eligible) are skipped.
type AccrualRunner struct {
	positions domain.PositionStore
	rewards   domain.RewardStore
	ranking   *service.RankingService
	calc      *service.AccrualCalculator
	settings  *service.SettingsService
	bus       domain.SignalBus // optional
	workers   int
	logger    *slog.Logger
}

// NewAccrualRunner creates an AccrualRunner. workers <= 0 selects the
// default fan-out.
func NewAccrualRunner(
	positions domain.PositionStore,
	rewards domain.RewardStore,
	ranking *service.RankingService,
	calc *service.AccrualCalculator,
	settings *service.SettingsService,
	bus domain.SignalBus,
	workers int,
	logger *slog.Logger,
) *AccrualRunner {
	if workers <= 0 {
		workers = defaultAccrualWorkers
	}
	return &AccrualRunner{
		positions: positions,
		rewards:   rewards,
		ranking:   ranking,
		calc:      calc,
		settings:  settings,
		bus:       bus,
		workers:   workers,
		logger:    logger.With(slog.String("component", "accrual")),
	}
}

// RunOnce performs a single accrual pass and returns how many ledgers were
// updated. An unconfigured program is not an error: the pass is skipped with
// a warning until an operator writes the settings record.
func (r *AccrualRunner) RunOnce(ctx context.Context) (int, error) {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			r.logger.WarnContext(ctx, "program settings missing, skipping accrual pass")
			return 0, nil
		}
		return 0, err
	}

	now := time.Now().UTC()

	// One snapshot per pass: every position in the pass sees the same
	// ranking and the same denominators.
	snapshot, err := r.ranking.Snapshot(ctx, now)
	if err != nil {
		return 0, err
	}

	positions, err := r.positions.GetActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: load active positions: %w", err)
	}

	var updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, pos := range positions {
		g.Go(func() error {
			res := r.calc.Compute(pos, snapshot, settings, now)
			err := r.rewards.UpdateAccrual(gctx, pos.ID, res.DailyReward, res.Accumulated)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					// No ledger yet: the position has not been registered
					// eligible. Nothing to accrue into.
					return nil
				}
				return fmt.Errorf("pipeline: accrue position %s: %w", pos.ID, err)
			}
			updated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(updated.Load()), err
	}

	n := int(updated.Load())
	r.logger.InfoContext(ctx, "accrual pass complete",
		slog.Int("positions", len(positions)),
		slog.Int("updated", n),
		slog.Int("ranked", len(snapshot.Entries)),
	)

	r.publishTick(ctx, now, n, snapshot)
	return n, nil
}

func (r *AccrualRunner) publishTick(ctx context.Context, at time.Time, updated int, snapshot *service.RankingSnapshot) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":       "accrual_tick",
		"at":          at.Format(time.RFC3339),
		"updated":     updated,
		"totalActive": snapshot.TotalActive,
		"poolTvl":     snapshot.PoolTVL.String(),
	})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, domain.ChannelAccrual, payload); err != nil {
		r.logger.WarnContext(ctx, "publish accrual tick failed", slog.String("error", err.Error()))
	}
}
