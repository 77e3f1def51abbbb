package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.DistributorAddress = "0x00000000000000000000000000000000000000aa"
	return cfg
}

func TestDefaultsValidateWithDistributor(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "batch"
	cfg.Redis.Addr = ""
	cfg.Chain.ChainID = 0
	cfg.Sessions.TTL = duration{0}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "batch"`)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "chain: chain_id must be positive")
	assert.Contains(t, err.Error(), "sessions: ttl must be positive")
}

func TestValidateRejectsAmbiguousSignerSource(t *testing.T) {
	cfg := validConfig()
	cfg.Signer.PrivateKey = "deadbeef"
	cfg.Signer.EncryptedKeyPath = "/etc/lpboost/key.enc"
	cfg.Signer.KeyPassword = "hunter2"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestValidateRequiresKeyPasswordForEncryptedKey(t *testing.T) {
	cfg := validConfig()
	cfg.Signer.EncryptedKeyPath = "/etc/lpboost/key.enc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "worker"
log_level = "debug"

[database]
host = "db.internal"
port = 5433

[chain]
distributor_address = "0x00000000000000000000000000000000000000aa"

[pipeline]
accrual_interval = "30m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "worker", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.AccrualInterval.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8000, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[chain]
distributor_address = "0x00000000000000000000000000000000000000aa"

[redis]
addr = "file-redis:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LPBOOST_REDIS_ADDR", "env-redis:6380")
	t.Setenv("LPBOOST_SERVER_PORT", "9090")
	t.Setenv("LPBOOST_SESSIONS_TTL", "1h")
	t.Setenv("LPBOOST_CHAIN_RPC_ENDPOINTS", "https://rpc-a.example.com, https://rpc-b.example.com")
	t.Setenv("LPBOOST_PIPELINE_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Sessions.TTL.Duration)
	assert.Equal(t, []string{"https://rpc-a.example.com", "https://rpc-b.example.com"}, cfg.Chain.RPCEndpoints)
	assert.False(t, cfg.Pipeline.Enabled)
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.Signer.PrivateKey = "deadbeef"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Signer.PrivateKey)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	// Non-secret fields survive.
	assert.Equal(t, cfg.Database.Host, red.Database.Host)
	assert.Equal(t, cfg.Chain.RPCEndpoints, red.Chain.RPCEndpoints)
}
