package domain

import "time"

// Canonical layouts of the watermark ledger.
const (
	SourceDateLayout   = "2006-01-02"
	ProcessedAtLayout  = "2006-01-02 15:04:05"
	LedgerSourceColumn = "source_date"
	LedgerProcessedCol = "processing_timestamp"
)

// WatermarkEntry records that a source date has been processed.
type WatermarkEntry struct {
	SourceDate  string
	ProcessedAt time.Time
}

// Day returns midnight UTC of the UTC calendar date of t. Every date in the
// ledger, the extract window and the report is a UTC date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
