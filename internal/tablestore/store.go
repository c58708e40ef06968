// Package tablestore reads and writes whole tables as objects in a bucket.
// It is the object-store contract the ETL stages depend on: list keys by
// prefix, read an object as a table, write a table as an object.
package tablestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

// defaultMultipartThreshold is the encoded size above which WriteTable
// switches to a multipart upload.
const defaultMultipartThreshold int64 = 64 * 1024 * 1024

// WriteResult describes the outcome of WriteTable.
type WriteResult struct {
	Key     string
	Written bool
	Rows    int
	Bytes   int64
}

// Store reads tables through a BlobReader and writes them through a
// BlobWriter. Either side may be nil for a read-only or write-only store.
type Store struct {
	reader    domain.BlobReader
	writer    domain.BlobWriter
	codec     table.Codec
	multipart int64
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec used for CSV separators.
func WithCodec(c table.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithMultipartThreshold sets the size above which uploads are multipart.
func WithMultipartThreshold(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.multipart = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store.
func New(reader domain.BlobReader, writer domain.BlobWriter, opts ...Option) *Store {
	s := &Store{
		reader:    reader,
		writer:    writer,
		multipart: defaultMultipartThreshold,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(slog.String("component", "tablestore"))
	return s
}

// List returns the keys of all objects starting with prefix, in store order.
// Failures are wrapped with domain.ErrSourceUnavailable.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("tablestore: list %s: store is write-only", prefix)
	}
	infos, err := s.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("tablestore: list %s: %w: %w", prefix, domain.ErrSourceUnavailable, err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Path)
	}
	return keys, nil
}

// ReadTable fetches the object at key and decodes it according to the key's
// extension. A missing object yields domain.ErrNotFound; any other fetch
// failure yields domain.ErrSourceUnavailable. Decoding failures are returned
// as they are.
func (s *Store) ReadTable(ctx context.Context, key string) (*table.Table, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("tablestore: read %s: store is write-only", key)
	}
	format, err := table.FormatFromKey(key)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "reading object", slog.String("key", key))
	body, err := s.reader.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("tablestore: read %s: %w", key, err)
		}
		return nil, fmt.Errorf("tablestore: read %s: %w: %w", key, domain.ErrSourceUnavailable, err)
	}
	defer body.Close()

	t, err := s.codec.Decode(body, format)
	if err != nil {
		return nil, fmt.Errorf("tablestore: decode %s: %w", key, err)
	}
	return t, nil
}

// WriteTable encodes t and overwrites the object at key with it. An empty
// table writes nothing and returns a result with Written false and no error.
func (s *Store) WriteTable(ctx context.Context, t *table.Table, key string, format table.Format) (WriteResult, error) {
	res := WriteResult{Key: key}
	if t.IsEmpty() {
		s.logger.InfoContext(ctx, "table is empty, no object written", slog.String("key", key))
		return res, nil
	}
	if s.writer == nil {
		return res, fmt.Errorf("tablestore: write %s: store is read-only", key)
	}

	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, t, format); err != nil {
		return res, fmt.Errorf("tablestore: encode %s: %w", key, err)
	}
	res.Bytes = int64(buf.Len())
	res.Rows = t.Len()

	s.logger.InfoContext(ctx, "writing object",
		slog.String("key", key),
		slog.Int("rows", res.Rows),
		slog.Int64("bytes", res.Bytes),
	)

	var err error
	if res.Bytes > s.multipart {
		err = s.writer.PutMultipart(ctx, key, &buf, s.multipart)
	} else {
		err = s.writer.Put(ctx, key, &buf, format.ContentType())
	}
	if err != nil {
		return res, fmt.Errorf("tablestore: write %s: %w", key, err)
	}
	res.Written = true
	return res, nil
}
