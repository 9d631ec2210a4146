package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the configuration for values the relay cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Stream.Symbol == "" {
		errs = append(errs, errors.New("stream.symbol is required"))
	}
	if c.Aggregation.Window <= 0 {
		errs = append(errs, errors.New("aggregation.window must be positive"))
	} else if c.Aggregation.Window%time.Millisecond != 0 {
		errs = append(errs, errors.New("aggregation.window must be a whole number of milliseconds"))
	}
	if c.Submission.BatchSize < 1 {
		errs = append(errs, errors.New("submission.batch_size must be at least 1"))
	}
	if c.Submission.ConfirmAttempts < 1 {
		errs = append(errs, errors.New("submission.confirm_attempts must be at least 1"))
	}
	if c.Submission.ConfirmInterval <= 0 {
		errs = append(errs, errors.New("submission.confirm_interval must be positive"))
	}
	if c.Retention.MaxAgeMinutes <= 0 {
		errs = append(errs, errors.New("retention.max_age_minutes must be positive"))
	} else if time.Duration(c.Retention.MaxAgeMinutes)*time.Minute <= c.Aggregation.Window {
		errs = append(errs, fmt.Errorf("retention.max_age_minutes (%d) must exceed aggregation.window (%s)",
			c.Retention.MaxAgeMinutes, c.Aggregation.Window))
	}
	for name, spec := range map[string]string{
		"aggregation.schedule": c.Aggregation.Schedule,
		"submission.schedule":  c.Submission.Schedule,
		"retention.schedule":   c.Retention.Schedule,
	} {
		if spec == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	if !c.DB.UseMemory && c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required unless db.use_memory is set"))
	}
	if c.Archive.Enabled && c.Archive.ClickhouseDSN == "" {
		errs = append(errs, errors.New("archive.clickhouse_dsn is required when archive is enabled"))
	}

	if !c.Ledger.DryRun {
		if c.Ledger.RPCURL == "" {
			errs = append(errs, errors.New("ledger.rpc_url is required"))
		}
		if c.Ledger.SecretKey == "" {
			errs = append(errs, errors.New("ledger.secret_key is required"))
		}
		if c.Ledger.ContractID == "" {
			errs = append(errs, errors.New("ledger.contract_id is required"))
		}
	}
	if c.Ledger.Function == "" {
		errs = append(errs, errors.New("ledger.function is required"))
	}
	if c.Ledger.BaseFee < 0 {
		errs = append(errs, errors.New("ledger.base_fee must not be negative"))
	}

	return errors.Join(errs...)
}
