// Package config defines the configuration of the Xetra report ETL and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/pipeline"
	"github.com/alanyoungcy/xetraetl/internal/report"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by XETRA_* environment variables.
type Config struct {
	Source   SourceConfig   `toml:"source"`
	Target   TargetConfig   `toml:"target"`
	Meta     MetaConfig     `toml:"meta"`
	S3       S3Config       `toml:"s3"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Notify   NotifyConfig   `toml:"notify"`
	Schedule ScheduleConfig `toml:"schedule"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// SourceConfig describes the raw trading files.
type SourceConfig struct {
	FirstExtractDate string   `toml:"first_extract_date"`
	KeyPrefix        string   `toml:"key_prefix"`
	Columns          []string `toml:"columns"`
	ColISIN          string   `toml:"col_isin"`
	ColDate          string   `toml:"col_date"`
	ColTime          string   `toml:"col_time"`
	ColStartPrice    string   `toml:"col_start_price"`
	ColMinPrice      string   `toml:"col_min_price"`
	ColMaxPrice      string   `toml:"col_max_price"`
	ColTradedVolume  string   `toml:"col_traded_volume"`
	CSVSeparator     string   `toml:"csv_separator"`
	Workers          int      `toml:"workers"`
}

// TargetConfig describes the published report.
type TargetConfig struct {
	KeyPrefix             string `toml:"key_prefix"`
	KeyDateFormat         string `toml:"key_date_format"`
	Format                string `toml:"format"`
	ColISIN               string `toml:"col_isin"`
	ColDate               string `toml:"col_date"`
	ColOpeningPrice       string `toml:"col_opening_price"`
	ColClosingPrice       string `toml:"col_closing_price"`
	ColMinPrice           string `toml:"col_min_price"`
	ColMaxPrice           string `toml:"col_max_price"`
	ColTradedVolume       string `toml:"col_traded_volume"`
	ColChangePrevClose    string `toml:"col_change_prev_close"`
	MultipartThresholdMiB int    `toml:"multipart_threshold_mib"`
}

// MetaConfig locates the watermark ledger in the target bucket.
type MetaConfig struct {
	Key          string `toml:"key"`
	LookbackDays int    `toml:"lookback_days"`
}

// S3Config holds the source and target bucket connections. They may point
// at different endpoints.
type S3Config struct {
	Source BucketConfig `toml:"source"`
	Target BucketConfig `toml:"target"`
}

// BucketConfig holds S3-compatible object storage parameters.
type BucketConfig struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Profile        string `toml:"profile"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RedisConfig holds the optional run lock connection.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`
}

// PostgresConfig holds the optional run audit database.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// NotifyConfig holds notification channel credentials. A channel without
// credentials is disabled.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ScheduleConfig drives the cron mode.
type ScheduleConfig struct {
	Cron       string `toml:"cron"`
	RunOnStart bool   `toml:"run_on_start"`
}

// duration wraps time.Duration for TOML text decoding.
type duration struct {
	time.Duration
}

// UnmarshalText parses strings like "30m" or "1h".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration for the public Deutsche Börse Xetra
// dataset. Every field can be overridden by the TOML file.
func Defaults() Config {
	return Config{
		Source: SourceConfig{
			FirstExtractDate: "2021-04-01",
			Columns:          []string{"ISIN", "Mnemonic", "Date", "Time", "StartPrice", "EndPrice", "MinPrice", "MaxPrice", "TradedVolume"},
			ColISIN:          "ISIN",
			ColDate:          "Date",
			ColTime:          "Time",
			ColStartPrice:    "StartPrice",
			ColMinPrice:      "MinPrice",
			ColMaxPrice:      "MaxPrice",
			ColTradedVolume:  "TradedVolume",
			CSVSeparator:     ",",
			Workers:          8,
		},
		Target: TargetConfig{
			KeyPrefix:             "report1/xetra_daily_report1_",
			KeyDateFormat:         "%Y%m%d_%H%M%S",
			Format:                "parquet",
			ColISIN:               "isin",
			ColDate:               "date",
			ColOpeningPrice:       "opening_price_eur",
			ColClosingPrice:       "closing_price_eur",
			ColMinPrice:           "minimum_price_eur",
			ColMaxPrice:           "maximum_price_eur",
			ColTradedVolume:       "daily_traded_volume",
			ColChangePrevClose:    "change_prev_closing_%",
			MultipartThresholdMiB: 64,
		},
		Meta: MetaConfig{
			Key:          "meta/report1/xetra_report1_meta_file.csv",
			LookbackDays: 1,
		},
		S3: S3Config{
			Source: BucketConfig{
				Endpoint: "https://s3.eu-central-1.amazonaws.com",
				Region:   "eu-central-1",
				Bucket:   "xetra-1234",
				UseSSL:   true,
			},
			Target: BucketConfig{
				Endpoint: "https://s3.eu-central-1.amazonaws.com",
				Region:   "eu-central-1",
				Bucket:   "xetra-report",
				UseSSL:   true,
			},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			LockTTL:    duration{30 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "xetraetl",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		Notify: NotifyConfig{
			Events: []string{"run_succeeded", "run_failed", "run_skipped"},
		},
		Schedule: ScheduleConfig{
			Cron: "0 6 * * *",
		},
		Mode:     "once",
		LogLevel: "info",
	}
}

// FirstExtract parses Source.FirstExtractDate.
func (c *Config) FirstExtract() (time.Time, error) {
	t, err := time.Parse(domain.SourceDateLayout, strings.TrimSpace(c.Source.FirstExtractDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("config: source.first_extract_date %q: %w", c.Source.FirstExtractDate, domain.ErrConfiguration)
	}
	return t, nil
}

// ReportFormat parses Target.Format.
func (c *Config) ReportFormat() (table.Format, error) {
	return table.ParseFormat(c.Target.Format)
}

// Columns builds the report column mapping from the source and target
// sections.
func (c *Config) Columns() report.Columns {
	return report.Columns{
		Source: report.SourceColumns{
			Columns:      append([]string(nil), c.Source.Columns...),
			ISIN:         c.Source.ColISIN,
			Date:         c.Source.ColDate,
			Time:         c.Source.ColTime,
			StartPrice:   c.Source.ColStartPrice,
			MinPrice:     c.Source.ColMinPrice,
			MaxPrice:     c.Source.ColMaxPrice,
			TradedVolume: c.Source.ColTradedVolume,
		},
		Target: report.TargetColumns{
			ISIN:            c.Target.ColISIN,
			Date:            c.Target.ColDate,
			OpeningPrice:    c.Target.ColOpeningPrice,
			ClosingPrice:    c.Target.ColClosingPrice,
			MinPrice:        c.Target.ColMinPrice,
			MaxPrice:        c.Target.ColMaxPrice,
			TradedVolume:    c.Target.ColTradedVolume,
			ChangePrevClose: c.Target.ColChangePrevClose,
		},
	}
}

// CSVComma returns the source CSV separator.
func (c *Config) CSVComma() rune {
	r := []rune(c.Source.CSVSeparator)
	if len(r) != 1 {
		return ','
	}
	return r[0]
}

var validModes = map[string]bool{"once": true, "cron": true, "ledger": true}

// Validate checks every field and reports all problems at once. The error
// wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: once, cron, ledger)", c.Mode))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Source
	if _, err := c.FirstExtract(); err != nil {
		errs = append(errs, fmt.Sprintf("source: first_extract_date %q must be YYYY-MM-DD", c.Source.FirstExtractDate))
	}
	if c.Source.Workers < 1 {
		errs = append(errs, "source: workers must be >= 1")
	}
	if len([]rune(c.Source.CSVSeparator)) != 1 {
		errs = append(errs, fmt.Sprintf("source: csv_separator %q must be a single character", c.Source.CSVSeparator))
	}
	if err := c.Columns().Validate(); err != nil {
		errs = append(errs, strings.ReplaceAll(err.Error(), "\n", "; "))
	}

	// Target
	if _, err := c.ReportFormat(); err != nil {
		errs = append(errs, fmt.Sprintf("target: format %q (valid: csv, parquet)", c.Target.Format))
	}
	if c.Target.KeyDateFormat == "" {
		errs = append(errs, "target: key_date_format must not be empty")
	} else if _, err := strftime.Layout(c.Target.KeyDateFormat); err != nil {
		errs = append(errs, fmt.Sprintf("target: key_date_format %q: %v", c.Target.KeyDateFormat, err))
	}
	if c.Target.MultipartThresholdMiB < 5 {
		errs = append(errs, "target: multipart_threshold_mib must be >= 5")
	}

	// Meta
	if c.Meta.Key == "" {
		errs = append(errs, "meta: key must not be empty")
	} else if _, err := table.FormatFromKey(c.Meta.Key); err != nil {
		errs = append(errs, fmt.Sprintf("meta: key %q must end in .csv or .parquet", c.Meta.Key))
	}
	if c.Meta.LookbackDays < 0 {
		errs = append(errs, "meta: lookback_days must be >= 0")
	}

	// S3
	for _, b := range []struct {
		side string
		cfg  BucketConfig
	}{{"source", c.S3.Source}, {"target", c.S3.Target}} {
		if b.cfg.Bucket == "" {
			errs = append(errs, fmt.Sprintf("s3.%s: bucket must not be empty", b.side))
		}
		if (b.cfg.AccessKey == "") != (b.cfg.SecretKey == "") {
			errs = append(errs, fmt.Sprintf("s3.%s: access_key and secret_key must be set together", b.side))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be positive")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Schedule
	if c.Mode == "cron" {
		if _, err := pipeline.ParseCron(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("schedule: cron %q: %v", c.Schedule.Cron, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config validation failed:\n  - %s", domain.ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}
