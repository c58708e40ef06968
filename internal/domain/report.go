package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummaryRow is one row of the daily report: a single instrument on a
// single trading day.
type DailySummaryRow struct {
	ISIN         string
	Date         time.Time
	OpeningPrice decimal.Decimal
	ClosingPrice decimal.Decimal
	MinPrice     decimal.Decimal
	MaxPrice     decimal.Decimal
	TradedVolume decimal.Decimal
	// ChangePrevClose is the percent change of the opening price against the
	// instrument's previous trading day. Invalid on its first known day.
	ChangePrevClose decimal.NullDecimal
}
