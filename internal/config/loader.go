package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LPBOOST_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LPBOOST_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "LPBOOST_DATABASE_DSN")
	setStr(&cfg.Database.Host, "LPBOOST_DATABASE_HOST")
	setInt(&cfg.Database.Port, "LPBOOST_DATABASE_PORT")
	setStr(&cfg.Database.Database, "LPBOOST_DATABASE_NAME")
	setStr(&cfg.Database.User, "LPBOOST_DATABASE_USER")
	setStr(&cfg.Database.Password, "LPBOOST_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "LPBOOST_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "LPBOOST_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "LPBOOST_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "LPBOOST_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LPBOOST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LPBOOST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LPBOOST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LPBOOST_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LPBOOST_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LPBOOST_REDIS_TLS_ENABLED")

	// ── Chain ──
	setStringSlice(&cfg.Chain.RPCEndpoints, "LPBOOST_CHAIN_RPC_ENDPOINTS")
	setStr(&cfg.Chain.DistributorAddress, "LPBOOST_CHAIN_DISTRIBUTOR_ADDRESS")
	setInt(&cfg.Chain.ChainID, "LPBOOST_CHAIN_ID")
	setInt(&cfg.Chain.TokenDecimals, "LPBOOST_CHAIN_TOKEN_DECIMALS")

	// ── Signer ──
	setStr(&cfg.Signer.PrivateKey, "LPBOOST_SIGNER_PRIVATE_KEY")
	setStr(&cfg.Signer.EncryptedKeyPath, "LPBOOST_SIGNER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Signer.KeyPassword, "LPBOOST_SIGNER_KEY_PASSWORD")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LPBOOST_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LPBOOST_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LPBOOST_S3_REGION")
	setStr(&cfg.S3.Bucket, "LPBOOST_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LPBOOST_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LPBOOST_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LPBOOST_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LPBOOST_S3_FORCE_PATH_STYLE")

	// ── Sessions ──
	setStr(&cfg.Sessions.Backend, "LPBOOST_SESSIONS_BACKEND")
	setDuration(&cfg.Sessions.TTL, "LPBOOST_SESSIONS_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LPBOOST_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LPBOOST_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LPBOOST_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LPBOOST_SERVER_API_KEY")
	setInt(&cfg.Server.ClaimRateLimit, "LPBOOST_SERVER_CLAIM_RATE_LIMIT")
	setDuration(&cfg.Server.ClaimRateWindow, "LPBOOST_SERVER_CLAIM_RATE_WINDOW")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "LPBOOST_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.AccrualInterval, "LPBOOST_PIPELINE_ACCRUAL_INTERVAL")
	setInt(&cfg.Pipeline.AccrualWorkers, "LPBOOST_PIPELINE_ACCRUAL_WORKERS")
	setDuration(&cfg.Pipeline.SweepInterval, "LPBOOST_PIPELINE_SWEEP_INTERVAL")
	setDuration(&cfg.Pipeline.ArchiveInterval, "LPBOOST_PIPELINE_ARCHIVE_INTERVAL")
	setInt(&cfg.Pipeline.ArchiveAgeDays, "LPBOOST_PIPELINE_ARCHIVE_AGE_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LPBOOST_MODE")
	setStr(&cfg.LogLevel, "LPBOOST_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
