package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs []execCall
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRunStoreLog(t *testing.T) {
	db := &fakeDB{}
	store := NewRunStore(db)

	err := store.Log(context.Background(), "run_succeeded", map[string]any{
		"run_id":      "2b1f",
		"report_rows": 3,
	})
	require.NoError(t, err)
	require.Len(t, db.execs, 1)

	call := db.execs[0]
	assert.Contains(t, call.sql, "INSERT INTO pipeline_runs")
	require.Len(t, call.args, 3)
	assert.Equal(t, "2b1f", call.args[0])
	assert.Equal(t, "run_succeeded", call.args[1])

	var detail map[string]any
	require.NoError(t, json.Unmarshal(call.args[2].([]byte), &detail))
	assert.Equal(t, float64(3), detail["report_rows"])
}

func TestRunStoreLogError(t *testing.T) {
	store := NewRunStore(&fakeDB{err: errors.New("relation does not exist")})
	err := store.Log(context.Background(), "run_failed", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run_failed")
}

func TestListQuery(t *testing.T) {
	since := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 1, 0)

	tests := []struct {
		name     string
		opts     domain.ListOpts
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "all",
			wantSQL: "SELECT id, event, detail, created_at FROM pipeline_runs ORDER BY created_at DESC, id DESC",
		},
		{
			name:     "window and page",
			opts:     domain.ListOpts{Since: &since, Until: &until, Limit: 10, Offset: 20},
			wantSQL:  "SELECT id, event, detail, created_at FROM pipeline_runs WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4",
			wantArgs: []any{since, until, 10, 20},
		},
		{
			name:     "limit only",
			opts:     domain.ListOpts{Limit: 5},
			wantSQL:  "SELECT id, event, detail, created_at FROM pipeline_runs ORDER BY created_at DESC, id DESC LIMIT $1",
			wantArgs: []any{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := listQuery(tt.opts)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn",
			cfg:  ClientConfig{DSN: "postgres://u@db/x", Host: "ignored"},
			want: "postgres://u@db/x",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "localhost", Database: "xetraetl", User: "etl", Password: "pw"},
			want: "postgres://etl:pw@localhost:5432/xetraetl?sslmode=disable",
		},
		{
			name: "password with special chars",
			cfg:  ClientConfig{Host: "db", Port: 5433, Database: "x", User: "etl", Password: "p@ss:word/1", SSLMode: "require"},
			want: "postgres://etl:p%40ss%3Aword%2F1@db:5433/x?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.cfg))
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_pipeline_runs.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS pipeline_runs")
}
