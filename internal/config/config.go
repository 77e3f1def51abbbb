// Package config defines the top-level configuration for the reward engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LPBOOST_* environment variables.
type Config struct {
	Database Postgres `toml:"database"`
	Redis    Redis    `toml:"redis"`
	Chain    Chain    `toml:"chain"`
	Signer   Signer   `toml:"signer"`
	S3       S3       `toml:"s3"`
	Sessions Sessions `toml:"sessions"`
	Server   Server   `toml:"server"`
	Pipeline Pipeline `toml:"pipeline"`
	Mode     string   `toml:"mode"`
	LogLevel string   `toml:"log_level"`
}

// Postgres holds PostgreSQL connection parameters.
type Postgres struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Redis holds Redis connection parameters.
type Redis struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Chain holds JSON-RPC endpoints and rewards distributor parameters.
type Chain struct {
	// RPCEndpoints is the ordered endpoint pool; the first entry is the
	// preferred provider, the rest are failover targets.
	RPCEndpoints       []string `toml:"rpc_endpoints"`
	DistributorAddress string   `toml:"distributor_address"`
	ChainID            int      `toml:"chain_id"`
	// TokenDecimals is the reward token's decimal count, used when scaling
	// claim amounts to wei for signing.
	TokenDecimals int `toml:"token_decimals"`
}

// Signer holds the claim-signing key source. Exactly one of private_key or
// encrypted_key_path should be set; leaving both empty disables claim
// authorization (summaries and accrual still work).
type Signer struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// S3 holds S3-compatible object storage parameters for audit archival.
type S3 struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Sessions selects the app-session store backend.
type Sessions struct {
	// Backend is "memory" (single instance) or "redis" (shared).
	Backend string   `toml:"backend"`
	TTL     duration `toml:"ttl"`
}

// Server holds HTTP server parameters.
type Server struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required as a Bearer token or X-API-Key header on
	// every request. Empty disables authentication.
	APIKey string `toml:"api_key"`
	// ClaimRateLimit bounds claim authorization requests per client IP per
	// ClaimRateWindow. Zero disables the limiter.
	ClaimRateLimit  int      `toml:"claim_rate_limit"`
	ClaimRateWindow duration `toml:"claim_rate_window"`
}

// Pipeline holds the background worker schedule.
type Pipeline struct {
	Enabled         bool     `toml:"enabled"`
	AccrualInterval duration `toml:"accrual_interval"`
	AccrualWorkers  int      `toml:"accrual_workers"`
	SweepInterval   duration `toml:"sweep_interval"`
	ArchiveInterval duration `toml:"archive_interval"`
	// ArchiveAgeDays is how old a confirmed claim audit must be before it is
	// exported to cold storage.
	ArchiveAgeDays int `toml:"archive_age_days"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values for a
// local development setup.
func Defaults() Config {
	return Config{
		Database: Postgres{
			Host:          "localhost",
			Port:          5432,
			Database:      "lpboost",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: Redis{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Chain: Chain{
			RPCEndpoints:  []string{"https://mainnet.base.org"},
			ChainID:       8453,
			TokenDecimals: 18,
		},
		S3: S3{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "lpboost-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Sessions: Sessions{
			Backend: "memory",
			TTL:     duration{24 * time.Hour},
		},
		Server: Server{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ClaimRateLimit:  10,
			ClaimRateWindow: duration{time.Minute},
		},
		Pipeline: Pipeline{
			Enabled:         true,
			AccrualInterval: duration{time.Hour},
			AccrualWorkers:  8,
			SweepInterval:   duration{5 * time.Minute},
			ArchiveInterval: duration{24 * time.Hour},
			ArchiveAgeDays:  90,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"worker": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSessionBackends enumerates the accepted values for Sessions.Backend.
var validSessionBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, worker, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Chain
	if len(c.Chain.RPCEndpoints) == 0 {
		errs = append(errs, "chain: at least one rpc_endpoint is required")
	}
	if c.Chain.DistributorAddress == "" {
		errs = append(errs, "chain: distributor_address must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.TokenDecimals < 0 || c.Chain.TokenDecimals > 36 {
		errs = append(errs, fmt.Sprintf("chain: token_decimals must be 0-36, got %d", c.Chain.TokenDecimals))
	}

	// Signer
	if c.Signer.EncryptedKeyPath != "" && c.Signer.KeyPassword == "" {
		errs = append(errs, "signer: key_password is required when encrypted_key_path is set")
	}
	if c.Signer.PrivateKey != "" && c.Signer.EncryptedKeyPath != "" {
		errs = append(errs, "signer: set private_key or encrypted_key_path, not both")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Sessions
	if !validSessionBackends[strings.ToLower(c.Sessions.Backend)] {
		errs = append(errs, fmt.Sprintf("sessions: unknown backend %q (valid: memory, redis)", c.Sessions.Backend))
	}
	if c.Sessions.TTL.Duration <= 0 {
		errs = append(errs, "sessions: ttl must be positive")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.ClaimRateLimit > 0 && c.Server.ClaimRateWindow.Duration <= 0 {
			errs = append(errs, "server: claim_rate_window must be positive when claim_rate_limit is set")
		}
	}

	// Pipeline
	if c.Pipeline.Enabled {
		if c.Pipeline.AccrualInterval.Duration <= 0 {
			errs = append(errs, "pipeline: accrual_interval must be positive")
		}
		if c.Pipeline.AccrualWorkers < 1 {
			errs = append(errs, "pipeline: accrual_workers must be >= 1")
		}
		if c.Pipeline.SweepInterval.Duration <= 0 {
			errs = append(errs, "pipeline: sweep_interval must be positive")
		}
		if c.Pipeline.ArchiveAgeDays < 1 {
			errs = append(errs, "pipeline: archive_age_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
