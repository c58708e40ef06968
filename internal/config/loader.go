package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults(), loads a .env file when
// present and applies XETRA_* environment overrides. An empty path skips the
// file. The result is not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject endpoints and secrets at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Source / target ──
	setStr(&cfg.Source.FirstExtractDate, "XETRA_SOURCE_FIRST_EXTRACT_DATE")
	setStr(&cfg.Source.KeyPrefix, "XETRA_SOURCE_KEY_PREFIX")
	setInt(&cfg.Source.Workers, "XETRA_SOURCE_WORKERS")
	setStr(&cfg.Target.KeyPrefix, "XETRA_TARGET_KEY_PREFIX")
	setStr(&cfg.Target.Format, "XETRA_TARGET_FORMAT")
	setStr(&cfg.Meta.Key, "XETRA_META_KEY")
	setInt(&cfg.Meta.LookbackDays, "XETRA_META_LOOKBACK_DAYS")

	// ── S3 ──
	setBucket(&cfg.S3.Source, "XETRA_S3_SOURCE_")
	setBucket(&cfg.S3.Target, "XETRA_S3_TARGET_")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "XETRA_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "XETRA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "XETRA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "XETRA_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "XETRA_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "XETRA_REDIS_LOCK_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "XETRA_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "XETRA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "XETRA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "XETRA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "XETRA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "XETRA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "XETRA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "XETRA_POSTGRES_SSL_MODE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "XETRA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "XETRA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "XETRA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "XETRA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Schedule.Cron, "XETRA_SCHEDULE_CRON")
	setStr(&cfg.Mode, "XETRA_MODE")
	setStr(&cfg.LogLevel, "XETRA_LOG_LEVEL")
}

func setBucket(b *BucketConfig, prefix string) {
	setStr(&b.Endpoint, prefix+"ENDPOINT")
	setStr(&b.Region, prefix+"REGION")
	setStr(&b.Bucket, prefix+"BUCKET")
	setStr(&b.AccessKey, prefix+"ACCESS_KEY")
	setStr(&b.SecretKey, prefix+"SECRET_KEY")
	setStr(&b.Profile, prefix+"PROFILE")
	setBool(&b.UseSSL, prefix+"USE_SSL")
	setBool(&b.ForcePathStyle, prefix+"FORCE_PATH_STYLE")
}

// Typed env helpers. Each only mutates the target when the variable is set
// and parses.

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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
