package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xetraetl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	first, err := cfg.FirstExtract()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC), first)

	f, err := cfg.ReportFormat()
	require.NoError(t, err)
	assert.Equal(t, table.Parquet, f)
	assert.Equal(t, ',', cfg.CSVComma())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "cron"
log_level = "debug"

[source]
first_extract_date = "2022-01-03"
workers = 2

[target]
format = "csv"
key_prefix = "daily/"

[meta]
lookback_days = 3

[s3.target]
endpoint = "http://localhost:9000"
bucket = "reports"
force_path_style = true

[redis]
enabled = true
lock_ttl = "10m"

[schedule]
cron = "15 7 * * 1-5"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "cron", cfg.Mode)
	assert.Equal(t, "2022-01-03", cfg.Source.FirstExtractDate)
	assert.Equal(t, 2, cfg.Source.Workers)
	assert.Equal(t, "ISIN", cfg.Source.ColISIN, "unset keys keep their defaults")
	assert.Equal(t, "csv", cfg.Target.Format)
	assert.Equal(t, "daily/", cfg.Target.KeyPrefix)
	assert.Equal(t, 3, cfg.Meta.LookbackDays)
	assert.Equal(t, "reports", cfg.S3.Target.Bucket)
	assert.True(t, cfg.S3.Target.ForcePathStyle)
	assert.Equal(t, "xetra-1234", cfg.S3.Source.Bucket)
	assert.Equal(t, 10*time.Minute, cfg.Redis.LockTTL.Duration)
	assert.Equal(t, "15 7 * * 1-5", cfg.Schedule.Cron)
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	def := Defaults()
	assert.Equal(t, def.Source, cfg.Source)
	assert.Equal(t, def.Target, cfg.Target)
	assert.Equal(t, def.Meta, cfg.Meta)
	assert.Equal(t, def.S3, cfg.S3)
	assert.Equal(t, def.Schedule, cfg.Schedule)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[source]
first_extract_dat = "2022-01-03"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.first_extract_dat")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("XETRA_MODE", "ledger")
	t.Setenv("XETRA_S3_SOURCE_ACCESS_KEY", "AKIA")
	t.Setenv("XETRA_S3_SOURCE_SECRET_KEY", "secret")
	t.Setenv("XETRA_META_LOOKBACK_DAYS", "2")
	t.Setenv("XETRA_REDIS_LOCK_TTL", "45s")
	t.Setenv("XETRA_NOTIFY_EVENTS", "run_failed, ,run_skipped")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ledger", cfg.Mode)
	assert.Equal(t, "AKIA", cfg.S3.Source.AccessKey)
	assert.Equal(t, "secret", cfg.S3.Source.SecretKey)
	assert.Equal(t, 2, cfg.Meta.LookbackDays)
	assert.Equal(t, 45*time.Second, cfg.Redis.LockTTL.Duration)
	assert.Equal(t, []string{"run_failed", "run_skipped"}, cfg.Notify.Events)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backfill"
	cfg.Source.FirstExtractDate = "01.04.2021"
	cfg.Source.ColTime = "Uhrzeit"
	cfg.Target.Format = "xlsx"
	cfg.Meta.Key = "meta"
	cfg.S3.Target.AccessKey = "only-half"
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	for _, want := range []string{
		`unknown mode "backfill"`,
		`first_extract_date "01.04.2021"`,
		`source time column "Uhrzeit" is not in the source column list`,
		`target: format "xlsx"`,
		`meta: key "meta"`,
		"s3.target: access_key and secret_key must be set together",
		"notify: telegram_token and telegram_chat_id must be set together",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateCronMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "cron"
	cfg.Schedule.Cron = "every morning"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule: cron")

	cfg.Schedule.Cron = "0 6 * * 1-5"
	assert.NoError(t, cfg.Validate())
}

func TestValidateOptionalBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	cfg.Postgres.Host = ""
	require.NoError(t, cfg.Validate(), "disabled backends are not checked")

	cfg.Redis.Enabled = true
	cfg.Postgres.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "postgres: host must not be empty")

	cfg.Postgres.DSN = "postgres://localhost/xetraetl"
	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestColumnsMapping(t *testing.T) {
	cfg := Defaults()
	cols := cfg.Columns()

	assert.Equal(t, "StartPrice", cols.Source.StartPrice)
	assert.Equal(t, "change_prev_closing_%", cols.Target.ChangePrevClose)
	assert.NoError(t, cols.Validate())

	cols.Source.Columns[0] = "changed"
	assert.Equal(t, "ISIN", cfg.Source.Columns[0])
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Source.SecretKey = "s3cr3t"
	cfg.Postgres.Password = "pw"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.S3.Source.SecretKey)
	assert.Equal(t, "", out.S3.Source.AccessKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "s3cr3t", cfg.S3.Source.SecretKey)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "run_succeeded", cfg.Notify.Events[0])
}
