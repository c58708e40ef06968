package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/xetraetl/internal/blob/s3"
	"github.com/alanyoungcy/xetraetl/internal/cache/redis"
	"github.com/alanyoungcy/xetraetl/internal/config"
	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/extract"
	"github.com/alanyoungcy/xetraetl/internal/notify"
	"github.com/alanyoungcy/xetraetl/internal/pipeline"
	"github.com/alanyoungcy/xetraetl/internal/report"
	"github.com/alanyoungcy/xetraetl/internal/store/postgres"
	"github.com/alanyoungcy/xetraetl/internal/table"
	"github.com/alanyoungcy/xetraetl/internal/tablestore"
	"github.com/alanyoungcy/xetraetl/internal/watermark"
)

// Backends are the external systems a pipeline is assembled on. Source and
// Target are required; the rest are optional.
type Backends struct {
	Source   domain.BlobReader
	Target   domain.BlobStore
	Locker   domain.LockManager
	Runs     domain.AuditStore
	Notifier *notify.Notifier

	// Clock overrides time.Now for the ledger and the report key.
	Clock func() time.Time
}

// Dependencies bundles everything the modes need.
type Dependencies struct {
	Ledger    *watermark.Ledger
	Pipeline  *pipeline.Pipeline
	Scheduler *pipeline.Scheduler
	Runs      domain.AuditStore
}

// Build assembles the pipeline from validated configuration and backends.
func Build(cfg *config.Config, b Backends, logger *slog.Logger, opts ...pipeline.Option) (*Dependencies, error) {
	firstExtract, err := cfg.FirstExtract()
	if err != nil {
		return nil, err
	}
	format, err := cfg.ReportFormat()
	if err != nil {
		return nil, err
	}
	cols := cfg.Columns()
	if err := cols.Validate(); err != nil {
		return nil, err
	}

	codec := table.Codec{Comma: cfg.CSVComma()}
	source := tablestore.New(b.Source, nil,
		tablestore.WithCodec(codec),
		tablestore.WithLogger(logger),
	)
	// Reports and the ledger are always written with the default separator.
	target := tablestore.New(b.Target, b.Target,
		tablestore.WithMultipartThreshold(int64(cfg.Target.MultipartThresholdMiB)<<20),
		tablestore.WithLogger(logger),
	)

	lopts := []watermark.Option{
		watermark.WithLookbackDays(cfg.Meta.LookbackDays),
		watermark.WithLogger(logger),
	}
	popts := []pipeline.Option{pipeline.WithLogger(logger)}
	if b.Clock != nil {
		lopts = append(lopts, watermark.WithClock(b.Clock))
		popts = append(popts, pipeline.WithClock(b.Clock))
	}
	ledger := watermark.NewLedger(target, cfg.Meta.Key, lopts...)
	extractor := extract.New(source,
		extract.WithWorkers(cfg.Source.Workers),
		extract.WithKeyPrefix(cfg.Source.KeyPrefix),
		extract.WithLogger(logger),
	)
	aggregator := report.NewAggregator(cols, logger)

	if b.Locker != nil {
		popts = append(popts, pipeline.WithLocker(b.Locker))
	}
	if b.Runs != nil {
		popts = append(popts, pipeline.WithAuditLogger(b.Runs))
	}
	if b.Notifier != nil && b.Notifier.Enabled() {
		popts = append(popts, pipeline.WithNotifier(b.Notifier))
	}
	popts = append(popts, opts...)

	p := pipeline.New(pipeline.Config{
		FirstExtract:     firstExtract,
		ReportPrefix:     cfg.Target.KeyPrefix,
		ReportDateFormat: cfg.Target.KeyDateFormat,
		ReportFormat:     format,
		LockTTL:          cfg.Redis.LockTTL.Duration,
	}, ledger, extractor, aggregator, target, popts...)

	return &Dependencies{
		Ledger:    ledger,
		Pipeline:  p,
		Scheduler: pipeline.NewScheduler(p, logger),
		Runs:      b.Runs,
	}, nil
}

// Wire connects to the configured backends and builds the dependencies. The
// returned cleanup function releases every connection.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var b Backends

	// --- S3: source and target buckets ---
	srcClient, err := s3blob.New(ctx, bucketConfig(cfg.S3.Source))
	if err != nil {
		return fail(fmt.Errorf("wire: s3 source: %w", err))
	}
	closers = append(closers, func() { _ = srcClient.Close() })
	if err := srcClient.Health(ctx); err != nil {
		return fail(fmt.Errorf("wire: s3 source: %w", err))
	}
	b.Source = s3blob.NewReader(srcClient)

	trgClient, err := s3blob.New(ctx, bucketConfig(cfg.S3.Target))
	if err != nil {
		return fail(fmt.Errorf("wire: s3 target: %w", err))
	}
	closers = append(closers, func() { _ = trgClient.Close() })
	if err := trgClient.Health(ctx); err != nil {
		return fail(fmt.Errorf("wire: s3 target: %w", err))
	}
	b.Target = s3blob.NewStore(trgClient)

	// --- Redis run lock (optional) ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		b.Locker = redis.NewRunLock(rc)
	}

	// --- PostgreSQL run audit (optional) ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		b.Runs = postgres.NewRunStore(pg.Pool())
	}

	// --- Notifications ---
	b.Notifier = notify.NewNotifier(senders(cfg.Notify), cfg.Notify.Events, logger)

	deps, err := Build(cfg, b, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	return deps, cleanup, nil
}

func bucketConfig(b config.BucketConfig) s3blob.ClientConfig {
	return s3blob.ClientConfig{
		Endpoint:       b.Endpoint,
		Region:         b.Region,
		Bucket:         b.Bucket,
		AccessKey:      b.AccessKey,
		SecretKey:      b.SecretKey,
		Profile:        b.Profile,
		UseSSL:         b.UseSSL,
		ForcePathStyle: b.ForcePathStyle,
	}
}

func senders(cfg config.NotifyConfig) []notify.Sender {
	var out []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		out = append(out, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return out
}
