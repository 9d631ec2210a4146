package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", true)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Stream.Symbol)
	assert.Equal(t, 10*time.Second, cfg.Aggregation.Window)
	assert.Equal(t, "@every 10s", cfg.Submission.Schedule)
	assert.Equal(t, 100, cfg.Submission.BatchSize)
	assert.Equal(t, 30, cfg.Submission.ConfirmAttempts)
	assert.Equal(t, time.Second, cfg.Submission.ConfirmInterval)
	assert.True(t, cfg.Submission.SkipBacklog, "first start begins after the highest existing row")
	assert.Equal(t, 60, cfg.Retention.MaxAgeMinutes)
	assert.Equal(t, int32(10), cfg.DB.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.MaxConnLifetime)
	assert.Equal(t, 100*time.Millisecond, cfg.Store.InsertInitialBackoff)
	assert.Equal(t, "submit_prices", cfg.Ledger.Function)
	assert.Equal(t, int64(100), cfg.Ledger.BaseFee)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
stream:
  symbol: ETHUSDT
aggregation:
  window: 5s
db:
  dsn: postgres://file
ledger:
  rpc_url: http://ledger
`)
	t.Setenv("RELAY_DB_DSN", "postgres://env")
	t.Setenv("RELAY_SUBMISSION_BATCH_SIZE", "25")
	t.Setenv("RELAY_LEDGER_SECRET_KEY", "seed")

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Stream.Symbol)
	assert.Equal(t, 5*time.Second, cfg.Aggregation.Window)
	assert.Equal(t, "postgres://env", cfg.DB.DSN)
	assert.Equal(t, 25, cfg.Submission.BatchSize)
	assert.Equal(t, "http://ledger", cfg.Ledger.RPCURL)
	assert.Equal(t, "seed", cfg.Ledger.SecretKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load("", true)
	require.NoError(t, err)
	cfg.DB.DSN = "postgres://localhost/relay"
	cfg.Ledger.RPCURL = "http://localhost:8000"
	cfg.Ledger.SecretKey = "seed"
	cfg.Ledger.ContractID = "contract"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty symbol", func(c *Config) { c.Stream.Symbol = "" }, "stream.symbol"},
		{"zero window", func(c *Config) { c.Aggregation.Window = 0 }, "aggregation.window"},
		{"batch size", func(c *Config) { c.Submission.BatchSize = 0 }, "batch_size"},
		{"confirm attempts", func(c *Config) { c.Submission.ConfirmAttempts = 0 }, "confirm_attempts"},
		{"retention age", func(c *Config) { c.Retention.MaxAgeMinutes = 0 }, "max_age_minutes"},
		{"retention shorter than window", func(c *Config) {
			c.Aggregation.Window = 2 * time.Hour
		}, "must exceed"},
		{"missing dsn", func(c *Config) { c.DB.DSN = "" }, "db.dsn"},
		{"memory mode needs no dsn", func(c *Config) { c.DB.DSN = ""; c.DB.UseMemory = true }, ""},
		{"missing ledger key", func(c *Config) { c.Ledger.SecretKey = "" }, "ledger.secret_key"},
		{"dry run needs no ledger", func(c *Config) {
			c.Ledger = LedgerConfig{DryRun: true, Function: "submit_prices"}
		}, ""},
		{"archive without dsn", func(c *Config) { c.Archive.Enabled = true }, "clickhouse_dsn"},
		{"empty schedule", func(c *Config) { c.Retention.Schedule = "" }, "retention.schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
