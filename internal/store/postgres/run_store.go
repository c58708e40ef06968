package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

// DB is the subset of pgxpool.Pool the run store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunStore implements domain.AuditStore over the pipeline_runs table.
type RunStore struct {
	db DB
}

// NewRunStore creates a RunStore. Pass Client.Pool() in production.
func NewRunStore(db DB) *RunStore {
	return &RunStore{db: db}
}

// Log appends one run record. detail is stored as JSONB; its "run_id" value,
// when present, is also kept in its own column for lookups.
func (s *RunStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal run detail: %w", err)
	}
	runID, _ := detail["run_id"].(string)

	const query = `INSERT INTO pipeline_runs (run_id, event, detail) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, runID, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: log run event %s: %w", event, err)
	}
	return nil
}

// List returns run records, newest first.
func (s *RunStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := listQuery(opts)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var detailJSON []byte
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		if len(detailJSON) > 0 {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal run detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs rows: %w", err)
	}
	return entries, nil
}

func listQuery(opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, event, detail, created_at FROM pipeline_runs`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var where []string
	if opts.Since != nil {
		where = append(where, "created_at >= "+arg(*opts.Since))
	}
	if opts.Until != nil {
		where = append(where, "created_at <= "+arg(*opts.Until))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + arg(opts.Offset))
	}
	return b.String(), args
}

var _ domain.AuditStore = (*RunStore)(nil)
