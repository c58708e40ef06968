package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// recentRuns is how many audit records the ledger mode prints.
const recentRuns = 20

// OnceMode performs a single pipeline run and returns its error.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	rep, err := deps.Pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: once: %w", err)
	}
	a.logger.InfoContext(ctx, "run complete",
		slog.String("run_id", rep.RunID),
		slog.String("report_key", rep.Report.Key),
		slog.Int("report_rows", rep.ReportRows),
		slog.Int("dates_appended", rep.Commit.Appended),
	)
	return nil
}

// CronMode runs the pipeline on the configured schedule until ctx is
// cancelled. With run_on_start the first run happens immediately; its failure
// is logged like any scheduled run.
func (a *App) CronMode(ctx context.Context, deps *Dependencies) error {
	if a.cfg.Schedule.RunOnStart {
		if _, err := deps.Pipeline.Run(ctx); err != nil {
			a.logger.ErrorContext(ctx, "startup run failed", slog.String("error", err.Error()))
		}
	}
	a.logger.InfoContext(ctx, "cron mode active", slog.String("cron", a.cfg.Schedule.Cron))
	return deps.Scheduler.RunCron(ctx, a.cfg.Schedule.Cron)
}

type ledgerLine struct {
	Type        string         `json:"type"`
	SourceDate  string         `json:"source_date,omitempty"`
	ProcessedAt string         `json:"processing_timestamp,omitempty"`
	Event       string         `json:"event,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

// LedgerMode prints the watermark ledger as JSON lines, followed by the most
// recent audited runs when a run store is configured.
func (a *App) LedgerMode(ctx context.Context, deps *Dependencies) error {
	entries, err := deps.Ledger.Entries(ctx)
	if err != nil {
		return fmt.Errorf("app: ledger: %w", err)
	}
	enc := json.NewEncoder(a.out)
	for _, e := range entries {
		line := ledgerLine{
			Type:        "watermark",
			SourceDate:  e.SourceDate,
			ProcessedAt: e.ProcessedAt.UTC().Format(domain.ProcessedAtLayout),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("app: ledger: %w", err)
		}
	}

	if deps.Runs == nil {
		return nil
	}
	runs, err := deps.Runs.List(ctx, domain.ListOpts{Limit: recentRuns})
	if err != nil {
		return fmt.Errorf("app: ledger: list runs: %w", err)
	}
	for _, r := range runs {
		line := ledgerLine{
			Type:      "run",
			Event:     r.Event,
			Detail:    r.Detail,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("app: ledger: %w", err)
		}
	}
	return nil
}
