package watermark

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

// decodeEntries validates the ledger table and converts its rows. The table
// must have exactly the source_date and processing_timestamp columns. Rows
// repeating a source date are dropped, keeping the first.
func decodeEntries(t *table.Table) ([]domain.WatermarkEntry, error) {
	names := t.ColumnNames()
	if len(names) != 2 || len(t.Missing(domain.LedgerSourceColumn, domain.LedgerProcessedCol)) > 0 {
		return nil, fmt.Errorf("%w: columns %v, want [%s %s]",
			domain.ErrLedgerCorrupt, names, domain.LedgerSourceColumn, domain.LedgerProcessedCol)
	}

	entries := make([]domain.WatermarkEntry, 0, t.Len())
	seen := make(map[string]bool, t.Len())
	for i := 0; i < t.Len(); i++ {
		date, _ := t.Cell(i, domain.LedgerSourceColumn)
		stamp, _ := t.Cell(i, domain.LedgerProcessedCol)

		if _, err := ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: row %d: source_date %q", domain.ErrLedgerCorrupt, i+1, date)
		}
		processedAt, err := time.Parse(domain.ProcessedAtLayout, stamp)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: processing_timestamp %q", domain.ErrLedgerCorrupt, i+1, stamp)
		}
		if seen[date] {
			continue
		}
		seen[date] = true
		entries = append(entries, domain.WatermarkEntry{SourceDate: date, ProcessedAt: processedAt})
	}
	return entries, nil
}

func encodeEntries(entries []domain.WatermarkEntry) *table.Table {
	t := table.Strings(domain.LedgerSourceColumn, domain.LedgerProcessedCol)
	for _, e := range entries {
		// column count always matches
		_ = t.Append(e.SourceDate, e.ProcessedAt.UTC().Format(domain.ProcessedAtLayout))
	}
	return t
}
