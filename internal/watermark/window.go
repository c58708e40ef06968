package watermark

import (
	"time"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// Window is the extract window of one run.
type Window struct {
	// Cutoff is the earliest date whose report rows are published.
	Cutoff time.Time
	// Dates holds every calendar date from Cutoff through today inclusive.
	Dates []string
	// Lookback holds the dates before Cutoff that are fetched only so the
	// first published day has a previous day to compare against.
	Lookback []string
}

// FetchDates returns the lookback dates followed by the window dates: every
// source prefix the extractor has to read.
func (w Window) FetchDates() []string {
	out := make([]string, 0, len(w.Lookback)+len(w.Dates))
	out = append(out, w.Lookback...)
	return append(out, w.Dates...)
}

// CommitDates returns the dates recorded in the ledger once the run has
// published its report.
func (w Window) CommitDates() []string {
	out := make([]string, len(w.Dates))
	copy(out, w.Dates)
	return out
}

// CutoffDate returns Cutoff in canonical form.
func (w Window) CutoffDate() string {
	return w.Cutoff.Format(domain.SourceDateLayout)
}

// Empty reports whether there is nothing to fetch.
func (w Window) Empty() bool {
	return len(w.Dates) == 0
}

// ParseDate parses a canonical YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(domain.SourceDateLayout, s)
}

// dateRange lists every date from start through end inclusive. It is empty
// when start is after end.
func dateRange(start, end time.Time) []string {
	if start.After(end) {
		return nil
	}
	days := int(end.Sub(start).Hours()/24) + 1
	out := make([]string, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(domain.SourceDateLayout))
	}
	return out
}
