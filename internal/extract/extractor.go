// Package extract materializes the raw source objects of an extract window
// into one table.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/xetraetl/internal/domain"
	"github.com/alanyoungcy/xetraetl/internal/table"
)

const defaultWorkers = 8

// Source lists and reads source objects.
type Source interface {
	List(ctx context.Context, prefix string) ([]string, error)
	ReadTable(ctx context.Context, key string) (*table.Table, error)
}

// Extractor reads every object of the requested dates.
type Extractor struct {
	src     Source
	prefix  string
	workers int
	logger  *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers bounds the number of concurrent object reads.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithKeyPrefix sets a prefix placed in front of each date when listing,
// for sources that keep their date folders below a common root.
func WithKeyPrefix(p string) Option {
	return func(e *Extractor) { e.prefix = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor reading from src.
func New(src Source, opts ...Option) *Extractor {
	e := &Extractor{
		src:     src,
		workers: defaultWorkers,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With(slog.String("component", "extractor"))
	return e
}

// Extract lists the objects of every date and concatenates their rows: dates
// in the given order, objects in listing order within a date, rows in file
// order within an object. Reads run concurrently but the result does not
// depend on completion order.
//
// When no object exists for any date the result is table.Empty(). Any list or
// read failure aborts the extraction with domain.ErrSourceUnavailable.
func (e *Extractor) Extract(ctx context.Context, dates []string) (*table.Table, error) {
	start := time.Now()
	e.logger.InfoContext(ctx, "extracting source files", slog.Int("dates", len(dates)))

	var keys []string
	for _, d := range dates {
		ks, err := e.src.List(ctx, e.prefix+d)
		if err != nil {
			return nil, fmt.Errorf("extract: list %s: %w", d, sourceErr(err))
		}
		keys = append(keys, ks...)
	}

	if len(keys) == 0 {
		e.logger.InfoContext(ctx, "no source files found")
		return table.Empty(), nil
	}

	parts := make([]*table.Table, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			t, err := e.src.ReadTable(gctx, key)
			if err != nil {
				return fmt.Errorf("extract: read %s: %w", key, sourceErr(err))
			}
			parts[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := table.Concat(parts...)
	e.logger.InfoContext(ctx, "extraction finished",
		slog.Int("files", len(keys)),
		slog.Int("rows", out.Len()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func sourceErr(err error) error {
	if errors.Is(err, domain.ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
}
