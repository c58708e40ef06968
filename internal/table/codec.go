package table

import (
	"bytes"
	"fmt"
	"io"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// Codec encodes and decodes tables. The zero value uses a comma separator for
// CSV.
type Codec struct {
	// Comma is the CSV field separator.
	Comma rune
}

// Encode writes t to w in the given format.
func (c Codec) Encode(w io.Writer, t *Table, f Format) error {
	switch f {
	case CSV:
		return encodeCSV(w, t, c.comma())
	case Parquet:
		return encodeParquet(w, t)
	default:
		return fmt.Errorf("table: encode %q: %w", f, domain.ErrUnsupportedFormat)
	}
}

// Decode reads a table in the given format from r.
func (c Codec) Decode(r io.Reader, f Format) (*Table, error) {
	switch f {
	case CSV:
		return decodeCSV(r, c.comma())
	case Parquet:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("table: read parquet body: %w", err)
		}
		return decodeParquet(bytes.NewReader(data), int64(len(data)))
	default:
		return nil, fmt.Errorf("table: decode %q: %w", f, domain.ErrUnsupportedFormat)
	}
}

func (c Codec) comma() rune {
	if c.Comma == 0 {
		return ','
	}
	return c.Comma
}
