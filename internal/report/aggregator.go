// Package report turns raw trading rows into the daily per-instrument
// summary: opening, closing, minimum and maximum price, traded volume and the
// percent change against the previous trading day.
package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

// Places is the number of decimal places of every numeric report value.
// Rounding is half to even.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Aggregator builds the daily report from a raw source table.
type Aggregator struct {
	cols   Columns
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. cols must have passed Validate.
func NewAggregator(cols Columns, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cols:   cols,
		logger: logger.With(slog.String("component", "report")),
	}
}

// Columns returns the column mapping.
func (a *Aggregator) Columns() Columns {
	return a.cols
}

type groupKey struct {
	isin string
	date time.Time
}

// Aggregate builds one summary row per instrument and day and keeps the rows
// dated on or after cutoff. Earlier rows only serve as the previous day of
// the change computation.
//
// An empty source yields no rows. A source lacking a configured column fails
// with domain.ErrConfiguration before any row is looked at.
func (a *Aggregator) Aggregate(src *table.Table, cutoff time.Time) ([]domain.DailySummaryRow, error) {
	if src.IsEmpty() {
		a.logger.Info("source table is empty, no transformation applied")
		return nil, nil
	}
	if missing := src.Missing(a.cols.Source.Columns...); len(missing) > 0 {
		return nil, fmt.Errorf("report: source lacks columns %s: %w",
			strings.Join(missing, ", "), domain.ErrConfiguration)
	}

	raw, dropped, err := a.selectRows(src)
	if err != nil {
		return nil, err
	}

	rows := summarize(raw)
	applyChange(rows)

	cut := domain.Day(cutoff)
	out := rows[:0]
	for _, r := range rows {
		if r.Date.Before(cut) {
			continue
		}
		out = append(out, round(r))
	}

	a.logger.Info("report aggregated",
		slog.Int("source_rows", src.Len()),
		slog.Int("dropped_rows", dropped),
		slog.Int("summary_rows", len(rows)),
		slog.Int("published_rows", len(out)),
		slog.String("cutoff", cut.Format(domain.SourceDateLayout)),
	)
	return out, nil
}

// selectRows keeps the configured columns and converts every row without a
// null among them. It returns the number of dropped rows.
func (a *Aggregator) selectRows(src *table.Table) ([]domain.RawTradeRow, int, error) {
	s := a.cols.Source
	idx := make([]int, len(s.Columns))
	for i, n := range s.Columns {
		idx[i], _ = src.Index(n)
	}
	at := func(name string) int {
		j, _ := src.Index(name)
		return j
	}
	iISIN, iDate, iTime := at(s.ISIN), at(s.Date), at(s.Time)
	iStart, iMin, iMax, iVol := at(s.StartPrice), at(s.MinPrice), at(s.MaxPrice), at(s.TradedVolume)

	raw := make([]domain.RawTradeRow, 0, src.Len())
	dropped := 0
rows:
	for n := 0; n < src.Len(); n++ {
		cells := src.Row(n)
		for _, j := range idx {
			if isNull(cells[j]) {
				dropped++
				continue rows
			}
		}

		r := domain.RawTradeRow{ISIN: strings.TrimSpace(cells[iISIN])}
		var err error
		if r.Date, err = time.Parse(domain.SourceDateLayout, strings.TrimSpace(cells[iDate])); err != nil {
			return nil, 0, cellErr(n, s.Date, cells[iDate])
		}
		if r.Time, err = parseTimeOfDay(cells[iTime]); err != nil {
			return nil, 0, cellErr(n, s.Time, cells[iTime])
		}
		for _, f := range []struct {
			dst  *decimal.Decimal
			col  string
			cell string
		}{
			{&r.StartPrice, s.StartPrice, cells[iStart]},
			{&r.MinPrice, s.MinPrice, cells[iMin]},
			{&r.MaxPrice, s.MaxPrice, cells[iMax]},
			{&r.TradedVolume, s.TradedVolume, cells[iVol]},
		} {
			if *f.dst, err = decimal.NewFromString(strings.TrimSpace(f.cell)); err != nil {
				return nil, 0, cellErr(n, f.col, f.cell)
			}
		}
		raw = append(raw, r)
	}
	return raw, dropped, nil
}

// summarize collapses raw rows into one row per (ISIN, date), ordered by
// ISIN then date. Within a group the rows are ordered by trade time; the
// opening price is the start price at the earliest time and the closing
// price the start price at the latest time. Several rows at the same
// earliest or latest time resolve to the smallest start price among them.
func summarize(raw []domain.RawTradeRow) []domain.DailySummaryRow {
	groups := make(map[groupKey][]domain.RawTradeRow)
	var keys []groupKey
	for _, r := range raw {
		k := groupKey{isin: r.ISIN, date: r.Date}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].isin != keys[j].isin {
			return keys[i].isin < keys[j].isin
		}
		return keys[i].date.Before(keys[j].date)
	})

	out := make([]domain.DailySummaryRow, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Time < g[j].Time })

		first, last := g[0].Time, g[len(g)-1].Time
		row := domain.DailySummaryRow{
			ISIN:         k.isin,
			Date:         k.date,
			OpeningPrice: g[0].StartPrice,
			ClosingPrice: g[len(g)-1].StartPrice,
			MinPrice:     g[0].MinPrice,
			MaxPrice:     g[0].MaxPrice,
			TradedVolume: decimal.Zero,
		}
		for _, r := range g {
			if r.Time == first && r.StartPrice.LessThan(row.OpeningPrice) {
				row.OpeningPrice = r.StartPrice
			}
			if r.Time == last && r.StartPrice.LessThan(row.ClosingPrice) {
				row.ClosingPrice = r.StartPrice
			}
			row.MinPrice = decimal.Min(row.MinPrice, r.MinPrice)
			row.MaxPrice = decimal.Max(row.MaxPrice, r.MaxPrice)
			row.TradedVolume = row.TradedVolume.Add(r.TradedVolume)
		}
		out = append(out, row)
	}
	return out
}

// applyChange sets the percent change of each row's opening price against
// the preceding row of the same instrument. rows must be ordered by ISIN then
// date. The first row of an instrument, and any row whose predecessor opened
// at zero, has no change.
func applyChange(rows []domain.DailySummaryRow) {
	for i := range rows {
		if i == 0 || rows[i-1].ISIN != rows[i].ISIN {
			continue
		}
		prev := rows[i-1].OpeningPrice
		if prev.IsZero() {
			continue
		}
		change := rows[i].OpeningPrice.Sub(prev).Div(prev).Mul(hundred)
		rows[i].ChangePrevClose = decimal.NullDecimal{Decimal: change, Valid: true}
	}
}

func round(r domain.DailySummaryRow) domain.DailySummaryRow {
	r.OpeningPrice = r.OpeningPrice.RoundBank(Places)
	r.ClosingPrice = r.ClosingPrice.RoundBank(Places)
	r.MinPrice = r.MinPrice.RoundBank(Places)
	r.MaxPrice = r.MaxPrice.RoundBank(Places)
	r.TradedVolume = r.TradedVolume.RoundBank(Places)
	if r.ChangePrevClose.Valid {
		r.ChangePrevClose.Decimal = r.ChangePrevClose.Decimal.RoundBank(Places)
	}
	return r
}

func isNull(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NaN", "nan", "NULL", "null":
		return true
	}
	return false
}

func cellErr(row int, col, cell string) error {
	return fmt.Errorf("report: row %d column %s: malformed value %q: %w", row+1, col, cell, domain.ErrConfiguration)
}

// parseTimeOfDay accepts "15:04", "15:04:05" and fractional seconds, with or
// without a leading zero on the hour.
func parseTimeOfDay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05", "15:04:05.999999999"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second +
				time.Duration(t.Nanosecond()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}
