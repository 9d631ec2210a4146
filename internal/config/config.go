// Package config loads relay configuration from YAML and RELAY_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. RELAY_DB_DSN.
const EnvPrefix = "RELAY"

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	DB          DBConfig          `mapstructure:"db"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Stream      StreamConfig      `mapstructure:"stream"`
	Store       StoreConfig       `mapstructure:"store"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Submission  SubmissionConfig  `mapstructure:"submission"`
	Retention   RetentionConfig   `mapstructure:"retention"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	UseMemory       bool          `mapstructure:"use_memory"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ArchiveConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

type StreamConfig struct {
	URL            string        `mapstructure:"url"`
	Symbol         string        `mapstructure:"symbol"`
	BufferSize     int           `mapstructure:"buffer_size"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
}

type StoreConfig struct {
	InsertMaxAttempts    int           `mapstructure:"insert_max_attempts"`
	InsertInitialBackoff time.Duration `mapstructure:"insert_initial_backoff"`
	InsertMaxBackoff     time.Duration `mapstructure:"insert_max_backoff"`
}

type AggregationConfig struct {
	Window     time.Duration `mapstructure:"window"`
	Schedule   string        `mapstructure:"schedule"`
	MaxCatchUp int           `mapstructure:"max_catch_up"`
}

type SubmissionConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	BatchSize       int           `mapstructure:"batch_size"`
	ConfirmAttempts int           `mapstructure:"confirm_attempts"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
	SkipBacklog     bool          `mapstructure:"skip_backlog"`
}

type RetentionConfig struct {
	Schedule      string `mapstructure:"schedule"`
	MaxAgeMinutes int    `mapstructure:"max_age_minutes"`
}

type LedgerConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	SecretKey         string        `mapstructure:"secret_key"`
	ContractID        string        `mapstructure:"contract_id"`
	NetworkPassphrase string        `mapstructure:"network_passphrase"`
	Function          string        `mapstructure:"function"`
	BaseFee           int64         `mapstructure:"base_fee"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	DryRun            bool          `mapstructure:"dry_run"`
}

// Load reads path (unless envOnly) and applies RELAY_* overrides on top of defaults.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key needs a default, even an empty one, for AutomaticEnv to apply during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.use_memory", false)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.max_conn_idle_time", "5m")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.clickhouse_dsn", "")

	v.SetDefault("stream.url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("stream.symbol", "BTCUSDT")
	v.SetDefault("stream.buffer_size", 1024)
	v.SetDefault("stream.reconnect_delay", "5s")
	v.SetDefault("stream.read_timeout", "60s")
	v.SetDefault("stream.write_timeout", "10s")
	v.SetDefault("stream.ping_interval", "30s")

	v.SetDefault("store.insert_max_attempts", 5)
	v.SetDefault("store.insert_initial_backoff", "100ms")
	v.SetDefault("store.insert_max_backoff", "2s")

	v.SetDefault("aggregation.window", "10s")
	v.SetDefault("aggregation.schedule", "@every 10s")
	v.SetDefault("aggregation.max_catch_up", 360)

	v.SetDefault("submission.schedule", "@every 10s")
	v.SetDefault("submission.batch_size", 100)
	v.SetDefault("submission.confirm_attempts", 30)
	v.SetDefault("submission.confirm_interval", "1s")
	v.SetDefault("submission.skip_backlog", true)

	v.SetDefault("retention.schedule", "@every 10m")
	v.SetDefault("retention.max_age_minutes", 60)

	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.secret_key", "")
	v.SetDefault("ledger.contract_id", "")
	v.SetDefault("ledger.network_passphrase", "")
	v.SetDefault("ledger.function", "submit_prices")
	v.SetDefault("ledger.base_fee", 100)
	v.SetDefault("ledger.timeout", "30s")
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.dry_run", false)
}
