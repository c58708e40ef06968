package report

import (
	"time"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

// ToTable renders summary rows as a table named by the target columns.
// Prices and the change carry exactly two decimals; a missing change is an
// empty cell.
func (a *Aggregator) ToTable(rows []domain.DailySummaryRow) (*table.Table, error) {
	tc := a.cols.Target
	t := table.New(
		table.Column{Name: tc.ISIN, Kind: table.String},
		table.Column{Name: tc.Date, Kind: table.String},
		table.Column{Name: tc.OpeningPrice, Kind: table.Float},
		table.Column{Name: tc.ClosingPrice, Kind: table.Float},
		table.Column{Name: tc.MinPrice, Kind: table.Float},
		table.Column{Name: tc.MaxPrice, Kind: table.Float},
		table.Column{Name: tc.TradedVolume, Kind: table.Float},
		table.Column{Name: tc.ChangePrevClose, Kind: table.Float},
	)
	for _, r := range rows {
		change := ""
		if r.ChangePrevClose.Valid {
			change = r.ChangePrevClose.Decimal.StringFixed(Places)
		}
		err := t.Append(
			r.ISIN,
			r.Date.Format(domain.SourceDateLayout),
			r.OpeningPrice.StringFixed(Places),
			r.ClosingPrice.StringFixed(Places),
			r.MinPrice.StringFixed(Places),
			r.MaxPrice.StringFixed(Places),
			r.TradedVolume.StringFixed(Places),
			change,
		)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Transform runs Aggregate and renders the result.
func (a *Aggregator) Transform(src *table.Table, cutoff time.Time) (*table.Table, []domain.DailySummaryRow, error) {
	rows, err := a.Aggregate(src, cutoff)
	if err != nil {
		return nil, nil, err
	}
	t, err := a.ToTable(rows)
	if err != nil {
		return nil, nil, err
	}
	return t, rows, nil
}
