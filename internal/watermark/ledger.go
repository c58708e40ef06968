// Package watermark keeps the ledger of processed source dates and derives
// from it the extract window of each run.
//
// The ledger is one object in the target bucket with two columns,
// source_date and processing_timestamp. The object store has no partial
// update, so a commit reads the whole ledger, appends in memory and
// overwrites the object.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
	"github.com/alanyoungcy/xetraetl/internal/tablestore"
)

// TableStore is the subset of the object store the ledger needs.
type TableStore interface {
	ReadTable(ctx context.Context, key string) (*table.Table, error)
	WriteTable(ctx context.Context, t *table.Table, key string, format table.Format) (tablestore.WriteResult, error)
}

// CommitResult describes the outcome of Commit.
type CommitResult struct {
	Appended int
	Skipped  int
	Total    int
	Written  bool
}

// Ledger reads and updates the watermark ledger object.
type Ledger struct {
	store    TableStore
	key      string
	now      func() time.Time
	lookback int
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLookbackDays sets how many days before the cutoff are fetched for the
// day-over-day comparison. Negative values are treated as zero.
func WithLookbackDays(n int) Option {
	return func(l *Ledger) {
		if n < 0 {
			n = 0
		}
		l.lookback = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger creates a Ledger for the object at key.
func NewLedger(store TableStore, key string, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		key:    key,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With(slog.String("component", "watermark"), slog.String("ledger", key))
	return l
}

// Key returns the ledger object key.
func (l *Ledger) Key() string {
	return l.key
}

// ComputeExtractWindow derives the window of the current run from the
// ledger and the configured first extract date.
//
// With recorded dates the cutoff is min(firstExtract, latest recorded date),
// so the most recent processed day is always redone. A missing or malformed
// ledger counts as empty and the cutoff is firstExtract. Dates are not
// filtered against the ledger.
func (l *Ledger) ComputeExtractWindow(ctx context.Context, firstExtract time.Time) (Window, error) {
	entries, err := l.load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		l.logger.InfoContext(ctx, "no watermark ledger yet, starting from first extract date")
	case errors.Is(err, domain.ErrLedgerCorrupt):
		l.logger.WarnContext(ctx, "watermark ledger unreadable, treating as empty",
			slog.String("error", err.Error()),
		)
		entries = nil
	default:
		return Window{}, fmt.Errorf("watermark: compute window: %w", err)
	}

	cutoff := domain.Day(firstExtract)
	if latest, ok := latestDate(entries); ok && latest.Before(cutoff) {
		cutoff = latest
	}
	today := domain.Day(l.now())

	w := Window{
		Cutoff: cutoff,
		Dates:  dateRange(cutoff, today),
	}
	for i := l.lookback; i >= 1; i-- {
		w.Lookback = append(w.Lookback, cutoff.AddDate(0, 0, -i).Format(domain.SourceDateLayout))
	}

	l.logger.InfoContext(ctx, "extract window computed",
		slog.String("cutoff", w.CutoffDate()),
		slog.Int("dates", len(w.Dates)),
		slog.Int("lookback", len(w.Lookback)),
		slog.Int("recorded", len(entries)),
	)
	return w, nil
}

// Commit records newDates in the ledger with the current processing time.
// Dates already recorded are skipped. An empty newDates, or one that adds
// nothing, succeeds without writing. An existing ledger that does not parse
// fails with domain.ErrLedgerCorrupt, even when newDates is empty.
func (l *Ledger) Commit(ctx context.Context, newDates []string) (CommitResult, error) {
	var res CommitResult
	for _, d := range newDates {
		if _, err := ParseDate(d); err != nil {
			return res, fmt.Errorf("watermark: commit date %q: %w", d, domain.ErrConfiguration)
		}
	}

	entries, err := l.load(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return res, fmt.Errorf("watermark: commit: %w", err)
	}
	if len(newDates) == 0 {
		res.Total = len(entries)
		l.logger.InfoContext(ctx, "no new dates to commit", slog.Int("total", res.Total))
		return res, nil
	}

	recorded := make(map[string]bool, len(entries))
	for _, e := range entries {
		recorded[e.SourceDate] = true
	}

	processedAt := l.now().UTC().Truncate(time.Second)
	for _, d := range newDates {
		if recorded[d] {
			res.Skipped++
			continue
		}
		recorded[d] = true
		entries = append(entries, domain.WatermarkEntry{SourceDate: d, ProcessedAt: processedAt})
		res.Appended++
	}
	res.Total = len(entries)

	if res.Appended == 0 {
		l.logger.InfoContext(ctx, "all dates already recorded", slog.Int("skipped", res.Skipped))
		return res, nil
	}

	format, err := table.FormatFromKey(l.key)
	if err != nil {
		return res, fmt.Errorf("watermark: commit: %w", err)
	}
	wr, err := l.store.WriteTable(ctx, encodeEntries(entries), l.key, format)
	if err != nil {
		return res, fmt.Errorf("watermark: commit: %w", err)
	}
	res.Written = wr.Written

	l.logger.InfoContext(ctx, "watermark ledger updated",
		slog.Int("appended", res.Appended),
		slog.Int("skipped", res.Skipped),
		slog.Int("total", res.Total),
	)
	return res, nil
}

// Entries returns the recorded entries, deduplicated by source date. A
// missing ledger has no entries.
func (l *Ledger) Entries(ctx context.Context) ([]domain.WatermarkEntry, error) {
	entries, err := l.load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watermark: entries: %w", err)
	}
	return entries, nil
}

// load reads and parses the ledger. Errors are domain.ErrNotFound,
// domain.ErrLedgerCorrupt or a store failure.
func (l *Ledger) load(ctx context.Context) ([]domain.WatermarkEntry, error) {
	t, err := l.store.ReadTable(ctx, l.key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerCorrupt, err)
	}
	return decodeEntries(t)
}

func latestDate(entries []domain.WatermarkEntry) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, e := range entries {
		d, err := ParseDate(e.SourceDate)
		if err != nil {
			continue
		}
		if !found || d.After(latest) {
			latest, found = d, true
		}
	}
	return latest, found
}
