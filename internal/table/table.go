// Package table holds the in-memory column table exchanged between the
// object store, the extractor and the report aggregator, together with its
// CSV and Parquet codecs.
//
// Cells are kept as strings exactly as they were decoded; an empty cell is a
// null value.
package table

import (
	"fmt"
	"strings"
)

// Kind is the storage type of a column. It only matters to the Parquet
// encoder; CSV columns are always String.
type Kind int

const (
	String Kind = iota
	Float
	Int
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	default:
		return "string"
	}
}

// Column describes a named table column.
type Column struct {
	Name string
	Kind Kind
}

// Table is an ordered set of columns and rows of string cells.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]string
}

// New creates an empty table with the given columns. Duplicate names keep the
// first occurrence.
func New(columns ...Column) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			continue
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t
}

// Strings creates an empty table whose columns are all of kind String.
func Strings(names ...string) *Table {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Kind: String}
	}
	return New(cols...)
}

// Empty returns a table with no columns and no rows. Downstream stages treat
// it as "nothing to do".
func Empty() *Table {
	return New()
}

// Columns returns a copy of the column descriptors.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.rows) == 0
}

// Row returns the i-th row. The slice must not be modified.
func (t *Table) Row(i int) []string {
	return t.rows[i]
}

// Cell returns the value of the named column in row i and whether the column
// exists.
func (t *Table) Cell(i int, name string) (string, bool) {
	j, ok := t.index[name]
	if !ok {
		return "", false
	}
	return t.rows[i][j], true
}

// Append adds a row. The number of cells must match the number of columns.
func (t *Table) Append(cells ...string) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("table: append: got %d cells for %d columns", len(cells), len(t.columns))
	}
	row := make([]string, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// Missing returns the names that are not columns of t, in the given order.
func (t *Table) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// Concat appends the rows of every table after the rows of t, in argument
// order, and returns the result as a new table. Columns are the union of all
// columns by name in first-seen order; cells of columns a table does not have
// are null.
func Concat(tables ...*Table) *Table {
	var cols []Column
	seen := make(map[string]bool)
	for _, tb := range tables {
		if tb == nil {
			continue
		}
		for _, c := range tb.columns {
			if !seen[c.Name] {
				seen[c.Name] = true
				cols = append(cols, c)
			}
		}
	}

	out := New(cols...)
	for _, tb := range tables {
		if tb == nil {
			continue
		}
		// positions of out's columns in tb, -1 where tb lacks them
		pos := make([]int, len(out.columns))
		for i, c := range out.columns {
			if j, ok := tb.index[c.Name]; ok {
				pos[i] = j
			} else {
				pos[i] = -1
			}
		}
		for _, r := range tb.rows {
			row := make([]string, len(out.columns))
			for i, j := range pos {
				if j >= 0 {
					row[i] = r[j]
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// String renders a short description for logs.
func (t *Table) String() string {
	return fmt.Sprintf("table[%d rows; %s]", t.Len(), strings.Join(t.ColumnNames(), ","))
}
