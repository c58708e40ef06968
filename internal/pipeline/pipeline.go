// Package pipeline runs the report ETL: compute the extract window from the
// watermark ledger, extract the raw trading files, aggregate the daily
// report, publish it and commit the watermark.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
	"github.com/alanyoungcy/xetraetl/internal/tablestore"
	"github.com/alanyoungcy/xetraetl/internal/watermark"
)

// Audit and notification event names.
const (
	EventRunSucceeded = "run_succeeded"
	EventRunFailed    = "run_failed"
	EventRunSkipped   = "run_skipped"
)

// Ledger computes the extract window and records processed dates.
type Ledger interface {
	Key() string
	ComputeExtractWindow(ctx context.Context, firstExtract time.Time) (watermark.Window, error)
	Commit(ctx context.Context, newDates []string) (watermark.CommitResult, error)
}

// Extractor reads the raw source rows of the given dates.
type Extractor interface {
	Extract(ctx context.Context, dates []string) (*table.Table, error)
}

// Transformer turns raw rows into the report table.
type Transformer interface {
	Transform(src *table.Table, cutoff time.Time) (*table.Table, []domain.DailySummaryRow, error)
}

// ReportWriter stores the report table.
type ReportWriter interface {
	WriteTable(ctx context.Context, t *table.Table, key string, format table.Format) (tablestore.WriteResult, error)
}

// AuditLogger records finished runs.
type AuditLogger interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// Notifier announces finished runs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the run parameters.
type Config struct {
	FirstExtract time.Time
	// ReportPrefix, ReportDateFormat and ReportFormat build the report key
	// "{prefix}{strftime(now, date format)}.{format}".
	ReportPrefix     string
	ReportDateFormat string
	ReportFormat     table.Format
	// LockTTL bounds how long a run may hold the run lock.
	LockTTL time.Duration
}

// RunReport summarises one run.
type RunReport struct {
	RunID      string
	Stage      Stage
	StartedAt  time.Time
	FinishedAt time.Time
	Cutoff     string
	Dates      []string
	SourceRows int
	ReportRows int
	Report     tablestore.WriteResult
	Commit     watermark.CommitResult
}

// Pipeline executes runs. It is safe to call Run repeatedly, but not
// concurrently against the same ledger unless a Locker is configured.
type Pipeline struct {
	cfg       Config
	ledger    Ledger
	extractor Extractor
	transform Transformer
	writer    ReportWriter

	locker   domain.LockManager
	audit    AuditLogger
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocker guards each run with a lock named after the ledger key.
func WithLocker(l domain.LockManager) Option {
	return func(p *Pipeline) { p.locker = l }
}

// WithAuditLogger records every finished run.
func WithAuditLogger(a AuditLogger) Option {
	return func(p *Pipeline) { p.audit = a }
}

// WithNotifier announces every finished run.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline.
func New(cfg Config, ledger Ledger, extractor Extractor, transform Transformer, writer ReportWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		ledger:    ledger,
		extractor: extractor,
		transform: transform,
		writer:    writer,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.cfg.LockTTL <= 0 {
		p.cfg.LockTTL = 30 * time.Minute
	}
	p.logger = p.logger.With(slog.String("component", "pipeline"))
	return p
}

// ReportKey returns the key the report of a run at t is written to.
func (p *Pipeline) ReportKey(t time.Time) string {
	return p.cfg.ReportPrefix + strftime.Format(p.cfg.ReportDateFormat, t) + "." + p.cfg.ReportFormat.Extension()
}

// LockKey returns the name of the run lock.
func (p *Pipeline) LockKey() string {
	return "xetraetl:run:" + p.ledger.Key()
}

// Run executes one run. On failure the returned error is a *StageError and
// the report's Stage is StageFailed. The watermark is only committed after
// the report has been published, so a failed run leaves the ledger as it was.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	rep := RunReport{
		RunID:     uuid.NewString(),
		Stage:     StageInit,
		StartedAt: p.now().UTC(),
	}
	logger := p.logger.With(slog.String("run_id", rep.RunID))
	logger.InfoContext(ctx, "pipeline run started")

	err := p.run(ctx, logger, &rep)
	rep.FinishedAt = p.now().UTC()

	event := EventRunSucceeded
	switch {
	case err == nil:
		p.enter(ctx, logger, &rep, StageDone)
		logger.InfoContext(ctx, "pipeline run finished",
			slog.String("report_key", rep.Report.Key),
			slog.Bool("report_written", rep.Report.Written),
			slog.Int("report_rows", rep.ReportRows),
			slog.Int("dates_appended", rep.Commit.Appended),
			slog.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
		)
	case errors.Is(err, domain.ErrLockHeld):
		event = EventRunSkipped
		logger.WarnContext(ctx, "pipeline run skipped, another run holds the lock",
			slog.String("lock", p.LockKey()),
		)
	default:
		event = EventRunFailed
		logger.ErrorContext(ctx, "pipeline run failed",
			slog.String("stage", failedStage(err).String()),
			slog.String("error", err.Error()),
		)
	}
	if err != nil {
		rep.Stage = StageFailed
	}

	p.record(ctx, logger, event, rep, err)
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, rep *RunReport) error {
	if p.locker != nil {
		unlock, err := p.locker.Acquire(ctx, p.LockKey(), p.cfg.LockTTL)
		if err != nil {
			return &StageError{Stage: StageInit, Err: err}
		}
		defer unlock()
	}

	p.enter(ctx, logger, rep, StageComputeWindow)
	w, err := p.ledger.ComputeExtractWindow(ctx, p.cfg.FirstExtract)
	if err != nil {
		return &StageError{Stage: StageComputeWindow, Err: err}
	}
	rep.Cutoff = w.CutoffDate()
	rep.Dates = w.CommitDates()

	p.enter(ctx, logger, rep, StageExtract)
	src := table.Empty()
	if w.Empty() {
		logger.InfoContext(ctx, "extract window is empty, nothing to fetch",
			slog.String("cutoff", rep.Cutoff),
		)
	} else {
		src, err = p.extractor.Extract(ctx, w.FetchDates())
		if err != nil {
			return &StageError{Stage: StageExtract, Err: err}
		}
	}
	rep.SourceRows = src.Len()

	p.enter(ctx, logger, rep, StageTransform)
	out, rows, err := p.transform.Transform(src, w.Cutoff)
	if err != nil {
		return &StageError{Stage: StageTransform, Err: err}
	}
	rep.ReportRows = len(rows)

	p.enter(ctx, logger, rep, StagePublish)
	rep.Report, err = p.writer.WriteTable(ctx, out, p.ReportKey(p.now().UTC()), p.cfg.ReportFormat)
	if err != nil {
		return &StageError{Stage: StagePublish, Err: err}
	}

	p.enter(ctx, logger, rep, StageCommitWatermark)
	rep.Commit, err = p.ledger.Commit(ctx, w.CommitDates())
	if err != nil {
		return &StageError{Stage: StageCommitWatermark, Err: err}
	}
	return nil
}

func (p *Pipeline) enter(ctx context.Context, logger *slog.Logger, rep *RunReport, s Stage) {
	rep.Stage = s
	logger.DebugContext(ctx, "pipeline stage", slog.String("stage", s.String()))
}

// record writes the audit entry and sends the notification. Neither failure
// changes the outcome of the run.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, event string, rep RunReport, runErr error) {
	if p.audit != nil {
		if err := p.audit.Log(ctx, event, auditDetail(rep, runErr)); err != nil {
			logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	if p.notifier != nil {
		title, msg := notification(event, rep, runErr)
		if err := p.notifier.Notify(ctx, event, title, msg); err != nil {
			logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}
}

func auditDetail(rep RunReport, runErr error) map[string]any {
	d := map[string]any{
		"run_id":         rep.RunID,
		"stage":          rep.Stage.String(),
		"started_at":     rep.StartedAt.Format(time.RFC3339),
		"finished_at":    rep.FinishedAt.Format(time.RFC3339),
		"cutoff":         rep.Cutoff,
		"dates":          len(rep.Dates),
		"source_rows":    rep.SourceRows,
		"report_rows":    rep.ReportRows,
		"report_key":     rep.Report.Key,
		"report_written": rep.Report.Written,
		"report_bytes":   rep.Report.Bytes,
		"dates_appended": rep.Commit.Appended,
	}
	if runErr != nil {
		d["failed_stage"] = failedStage(runErr).String()
		d["error"] = runErr.Error()
	}
	return d
}

func notification(event string, rep RunReport, runErr error) (string, string) {
	switch event {
	case EventRunSucceeded:
		if !rep.Report.Written {
			return "Xetra report: nothing new",
				fmt.Sprintf("run %s: no report rows on or after %s", rep.RunID, rep.Cutoff)
		}
		return "Xetra report published",
			fmt.Sprintf("run %s: %d rows written to %s", rep.RunID, rep.ReportRows, rep.Report.Key)
	case EventRunSkipped:
		return "Xetra report skipped", fmt.Sprintf("run %s: %v", rep.RunID, runErr)
	default:
		return "Xetra report failed", fmt.Sprintf("run %s: %v", rep.RunID, runErr)
	}
}

func failedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}
