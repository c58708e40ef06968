package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

func TestColumnsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Columns)
		wantErr string
	}{
		{name: "valid", mutate: func(*Columns) {}},
		{
			name:    "key column outside selection",
			mutate:  func(c *Columns) { c.Source.Columns = c.Source.Columns[1:] },
			wantErr: `source isin column "ISIN" is not in the source column list`,
		},
		{
			name:    "unset source column",
			mutate:  func(c *Columns) { c.Source.Time = "" },
			wantErr: "source time column is not set",
		},
		{
			name:    "duplicate selection",
			mutate:  func(c *Columns) { c.Source.Columns = append(c.Source.Columns, "Date") },
			wantErr: `source column "Date" listed twice`,
		},
		{
			name:    "duplicate target",
			mutate:  func(c *Columns) { c.Target.MaxPrice = c.Target.MinPrice },
			wantErr: "already used for min_price",
		},
		{
			name:    "unset target",
			mutate:  func(c *Columns) { c.Target.ChangePrevClose = "" },
			wantErr: "target change_prev_close column is not set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := xetraColumns()
			tt.mutate(&cols)

			err := cols.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
