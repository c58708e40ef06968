package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTradeRow is one source record of the trading feed after the configured
// columns have been selected and rows with missing values dropped.
type RawTradeRow struct {
	ISIN string
	Date time.Time
	// Time is the trade time of day as an offset from midnight.
	Time         time.Duration
	StartPrice   decimal.Decimal
	MinPrice     decimal.Decimal
	MaxPrice     decimal.Decimal
	TradedVolume decimal.Decimal
}
