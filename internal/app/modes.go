package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianlabs/lpboost/internal/pipeline"
	"github.com/meridianlabs/lpboost/internal/server"
	"github.com/meridianlabs/lpboost/internal/server/handler"
	"github.com/meridianlabs/lpboost/internal/server/ws"
	"github.com/meridianlabs/lpboost/internal/service"
)

// services bundles the engine's business-logic layer, built once per run on
// top of the wired dependencies.
type services struct {
	settings   *service.SettingsService
	ranking    *service.RankingService
	calculator *service.AccrualCalculator
	provenance *service.ProvenanceService
	claims     *service.ClaimService
}

// buildServices constructs the service layer from wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	settingsSvc := service.NewSettingsService(deps.SettingsStore, deps.SettingsCache, a.logger)
	rankingSvc := service.NewRankingService(deps.PositionStore, a.logger)
	calc := service.NewAccrualCalculator(a.logger)

	provenanceSvc := service.NewProvenanceService(
		deps.SessionStore,
		deps.TransactionStore,
		deps.EligibilityStore,
		deps.RewardStore,
		deps.PositionStore,
		deps.SignalBus,
		a.logger,
	).WithSessionTTL(a.cfg.Sessions.TTL.Duration)

	claimsSvc := service.NewClaimService(
		deps.RewardStore,
		settingsSvc,
		deps.Contract,
		deps.Signer,
		deps.ClaimAuditStore,
		deps.LockManager,
		deps.SignalBus,
		a.cfg.Chain.TokenDecimals,
		a.logger,
	)

	return &services{
		settings:   settingsSvc,
		ranking:    rankingSvc,
		calculator: calc,
		provenance: provenanceSvc,
		claims:     claimsSvc,
	}
}

// ServerMode runs only the HTTP and WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	return g.Wait()
}

// WorkerMode runs only the background pipeline: accrual ticks, session
// sweeps, and audit archival.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startPipeline(ctx, g, deps, svcs)
	return g.Wait()
}

// FullMode runs the API and the background pipeline in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	if a.cfg.Pipeline.Enabled {
		a.startPipeline(ctx, g, deps, svcs)
	} else {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, accrual will not run")
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	return g.Wait()
}

// startPipeline adds the orchestrator goroutine to the errgroup.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	runner := pipeline.NewAccrualRunner(
		deps.PositionStore,
		deps.RewardStore,
		svcs.ranking,
		svcs.calculator,
		svcs.settings,
		deps.SignalBus,
		a.cfg.Pipeline.AccrualWorkers,
		a.logger,
	)

	var archiver pipeline.ClaimArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}

	orch := pipeline.NewOrchestrator(runner, svcs.provenance, archiver, pipeline.Config{
		AccrualInterval: a.cfg.Pipeline.AccrualInterval.Duration,
		SweepInterval:   a.cfg.Pipeline.SweepInterval.Duration,
		ArchiveInterval: a.cfg.Pipeline.ArchiveInterval.Duration,
		ArchiveAge:      time.Duration(a.cfg.Pipeline.ArchiveAgeDays) * 24 * time.Hour,
	}, a.logger)

	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(deps.Pingers, a.logger),
		Sessions:     handler.NewSessionHandler(svcs.provenance, a.logger),
		Transactions: handler.NewTransactionHandler(svcs.provenance, a.logger),
		Positions:    handler.NewPositionHandler(svcs.provenance, deps.PositionStore, a.logger),
		Rewards:      handler.NewRewardsHandler(svcs.claims, deps.RewardStore, a.logger),
		Ranking:      handler.NewRankingHandler(svcs.ranking, a.logger),
		Claims:       handler.NewClaimHandler(svcs.claims, a.logger),
		Settings:     handler.NewSettingsHandler(svcs.settings, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		ClaimRateLimit:  a.cfg.Server.ClaimRateLimit,
		ClaimRateWindow: a.cfg.Server.ClaimRateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
