package config

// RedactedConfig returns a copy of cfg with credentials replaced by "***",
// for logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.S3.Source.AccessKey)
	redact(&out.S3.Source.SecretKey)
	redact(&out.S3.Target.AccessKey)
	redact(&out.S3.Target.SecretKey)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Slices are copied so the redacted value can be changed freely.
	out.Source.Columns = append([]string(nil), cfg.Source.Columns...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
