package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

func decodeCSV(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("table: csv header: %w", err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	t := Strings(names...)
	if len(t.columns) != len(names) {
		return nil, fmt.Errorf("table: csv header has duplicate columns: %v", names)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: csv line %d: %w", line, err)
		}
		if err := t.Append(rec...); err != nil {
			return nil, fmt.Errorf("table: csv line %d: %w", line, err)
		}
	}
	return t, nil
}

func encodeCSV(w io.Writer, t *Table, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("table: csv write header: %w", err)
	}
	for i, row := range t.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("table: csv write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("table: csv flush: %w", err)
	}
	return nil
}
