package report

import (
	"errors"
	"fmt"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// SourceColumns names the columns of the raw trading files.
type SourceColumns struct {
	// Columns is the full selection kept from the source; rows with a null
	// in any of them are dropped.
	Columns      []string
	ISIN         string
	Date         string
	Time         string
	StartPrice   string
	MinPrice     string
	MaxPrice     string
	TradedVolume string
}

// TargetColumns names the columns of the published report.
type TargetColumns struct {
	ISIN            string
	Date            string
	OpeningPrice    string
	ClosingPrice    string
	MinPrice        string
	MaxPrice        string
	TradedVolume    string
	ChangePrevClose string
}

// Columns maps source columns to report columns.
type Columns struct {
	Source SourceColumns
	Target TargetColumns
}

// Validate checks the mapping once at startup so the aggregator can trust
// the names afterwards. Every problem is reported, wrapped in
// domain.ErrConfiguration.
func (c Columns) Validate() error {
	var errs []error

	selected := make(map[string]bool, len(c.Source.Columns))
	for _, n := range c.Source.Columns {
		if n == "" {
			errs = append(errs, errors.New("source column list contains an empty name"))
			continue
		}
		if selected[n] {
			errs = append(errs, fmt.Errorf("source column %q listed twice", n))
		}
		selected[n] = true
	}

	for _, f := range []struct{ field, name string }{
		{"isin", c.Source.ISIN},
		{"date", c.Source.Date},
		{"time", c.Source.Time},
		{"start_price", c.Source.StartPrice},
		{"min_price", c.Source.MinPrice},
		{"max_price", c.Source.MaxPrice},
		{"traded_volume", c.Source.TradedVolume},
	} {
		switch {
		case f.name == "":
			errs = append(errs, fmt.Errorf("source %s column is not set", f.field))
		case !selected[f.name]:
			errs = append(errs, fmt.Errorf("source %s column %q is not in the source column list", f.field, f.name))
		}
	}

	targets := make(map[string]string)
	for _, f := range []struct{ field, name string }{
		{"isin", c.Target.ISIN},
		{"date", c.Target.Date},
		{"opening_price", c.Target.OpeningPrice},
		{"closing_price", c.Target.ClosingPrice},
		{"min_price", c.Target.MinPrice},
		{"max_price", c.Target.MaxPrice},
		{"traded_volume", c.Target.TradedVolume},
		{"change_prev_close", c.Target.ChangePrevClose},
	} {
		if f.name == "" {
			errs = append(errs, fmt.Errorf("target %s column is not set", f.field))
			continue
		}
		if other, dup := targets[f.name]; dup {
			errs = append(errs, fmt.Errorf("target %s column %q already used for %s", f.field, f.name, other))
			continue
		}
		targets[f.name] = f.field
	}

	if len(errs) > 0 {
		return fmt.Errorf("report columns: %w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}
