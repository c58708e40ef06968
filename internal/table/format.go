package table

import (
	"fmt"
	"path"
	"strings"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// Format is a supported object serialization.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, Parquet:
		return f, nil
	default:
		return "", fmt.Errorf("table: format %q: %w", s, domain.ErrUnsupportedFormat)
	}
}

// FormatFromKey derives the format from an object key's extension.
func FormatFromKey(key string) (Format, error) {
	ext := strings.TrimPrefix(path.Ext(key), ".")
	if ext == "" {
		return "", fmt.Errorf("table: key %q has no extension: %w", key, domain.ErrUnsupportedFormat)
	}
	return ParseFormat(ext)
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type used when uploading objects.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case Parquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
