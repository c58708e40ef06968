package table

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// readBatch is the number of rows pulled from a parquet reader per call.
const readBatch = 256

// parquetSchema builds a flat schema of optional leaves, one per column in
// table order, so that null cells survive the round trip. parquet.Group sorts
// its fields by name; a struct schema keeps declaration order.
func parquetSchema(t *Table) (*parquet.Schema, error) {
	fields := make([]reflect.StructField, len(t.columns))
	for i, c := range t.columns {
		if c.Name == "" || strings.Contains(c.Name, ",") {
			return nil, fmt.Errorf("table: parquet column name %q not supported", c.Name)
		}
		var typ reflect.Type
		switch c.Kind {
		case Float:
			typ = reflect.TypeOf(float64(0))
		case Int:
			typ = reflect.TypeOf(int64(0))
		default:
			typ = reflect.TypeOf("")
		}
		fields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: typ,
			Tag:  reflect.StructTag(fmt.Sprintf("parquet:%q", c.Name+",optional")),
		}
	}
	model := reflect.New(reflect.StructOf(fields)).Interface()
	return parquet.SchemaOf(model), nil
}

// encodeParquet writes t as a flat parquet file with the columns of t in
// table order.
func encodeParquet(w io.Writer, t *Table) error {
	schema, err := parquetSchema(t)
	if err != nil {
		return err
	}

	rows := make([]parquet.Row, 0, len(t.rows))
	for n, r := range t.rows {
		row := make(parquet.Row, len(t.columns))
		for i, c := range t.columns {
			v, err := parquetValue(r[i], c.Kind)
			if err != nil {
				return fmt.Errorf("table: parquet row %d column %s: %w", n, c.Name, err)
			}
			if v.IsNull() {
				row[i] = v.Level(0, 0, i)
			} else {
				row[i] = v.Level(0, 1, i)
			}
		}
		rows = append(rows, row)
	}

	pw := parquet.NewWriter(w, schema)
	if _, err := pw.WriteRows(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("table: parquet write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("table: parquet close: %w", err)
	}
	return nil
}

func parquetValue(cell string, k Kind) (parquet.Value, error) {
	if cell == "" {
		return parquet.NullValue(), nil
	}
	switch k {
	case Float:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return parquet.Value{}, err
		}
		return parquet.DoubleValue(f), nil
	case Int:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return parquet.Value{}, err
		}
		return parquet.Int64Value(n), nil
	default:
		return parquet.ByteArrayValue([]byte(cell)), nil
	}
}

// decodeParquet reads a flat parquet file. Nested schemas are rejected.
func decodeParquet(r io.ReaderAt, size int64) (*Table, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("table: open parquet: %w", err)
	}

	fields := f.Schema().Fields()
	cols := make([]Column, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, fmt.Errorf("table: parquet column %s is nested", field.Name())
		}
		cols[i] = Column{Name: field.Name(), Kind: kindOf(field.Type().Kind())}
	}
	t := New(cols...)

	pr := parquet.NewReader(f)
	defer pr.Close()

	buf := make([]parquet.Row, readBatch)
	for {
		n, err := pr.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]string, len(cols))
			for _, v := range row {
				c := v.Column()
				if c < 0 || c >= len(cells) {
					continue
				}
				cells[c] = cellString(v)
			}
			t.rows = append(t.rows, cells)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return t, nil
}

func kindOf(k parquet.Kind) Kind {
	switch k {
	case parquet.Float, parquet.Double:
		return Float
	case parquet.Int32, parquet.Int64:
		return Int
	default:
		return String
	}
}

func cellString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	default:
		return string(v.ByteArray())
	}
}
