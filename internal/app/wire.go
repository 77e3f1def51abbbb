package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	s3blob "github.com/meridianlabs/lpboost/internal/blob/s3"
	"github.com/meridianlabs/lpboost/internal/cache/redis"
	"github.com/meridianlabs/lpboost/internal/chain"
	"github.com/meridianlabs/lpboost/internal/config"
	"github.com/meridianlabs/lpboost/internal/crypto"
	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/server/handler"
	"github.com/meridianlabs/lpboost/internal/session"
	"github.com/meridianlabs/lpboost/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore    domain.PositionStore
	RewardStore      domain.RewardStore
	TransactionStore domain.TransactionStore
	EligibilityStore domain.EligibilityStore
	SettingsStore    domain.SettingsStore
	ClaimAuditStore  domain.ClaimAuditStore
	SessionStore     domain.SessionStore

	// Caches and coordination
	SettingsCache domain.SettingsCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Chain access
	Contract domain.RewardContract
	Signer   domain.ClaimSigner // nil when no signing key is configured

	// Blob storage; nil when S3 is disabled.
	Archiver *s3blob.Archiver

	// Pingers feeds the health endpoint.
	Pingers map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Pingers: make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.RewardStore = postgres.NewRewardStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.EligibilityStore = postgres.NewEligibilityStore(pool)
	deps.SettingsStore = postgres.NewSettingsStore(pool)
	deps.ClaimAuditStore = postgres.NewAuditStore(pool)
	deps.Pingers["postgres"] = pgClient

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SettingsCache = redis.NewSettingsCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Pingers["redis"] = redisClient

	// --- Session store ---
	switch cfg.Sessions.Backend {
	case "redis":
		deps.SessionStore = redis.NewSessionStore(redisClient)
	default:
		deps.SessionStore = session.NewMemoryStore()
	}

	// --- Chain ---
	chainClient, err := chain.NewClient(chain.ClientConfig{
		Endpoints: cfg.Chain.RPCEndpoints,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain client: %w", err)
	}
	closers = append(closers, chainClient.Close)

	distributor, err := chain.NewDistributor(chainClient, cfg.Chain.DistributorAddress)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: distributor: %w", err)
	}
	deps.Contract = distributor

	// --- Claim signer (optional) ---
	key, err := crypto.LoadSigningKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Signer.PrivateKey,
		EncryptedKeyPath: cfg.Signer.EncryptedKeyPath,
		KeyPassword:      cfg.Signer.KeyPassword,
	})
	switch {
	case errors.Is(err, crypto.ErrNoSigningKey):
		logger.Warn("no signing key configured, claim authorization disabled")
	case err != nil:
		cleanup()
		return nil, nil, fmt.Errorf("wire: signing key: %w", err)
	default:
		signer, err := crypto.NewClaimSigner(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: claim signer: %w", err)
		}
		deps.Signer = signer
		logger.Info("claim signer ready", slog.String("address", signer.Address()))
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.ClaimAuditStore,
			logger,
		)
	}

	return deps, cleanup, nil
}
