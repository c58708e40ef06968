package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

func TestConcatUnionsColumnsByName(t *testing.T) {
	a := Strings("ISIN", "Date")
	require.NoError(t, a.Append("DE0001", "2021-04-16"))

	b := Strings("Date", "ISIN", "Time")
	require.NoError(t, b.Append("2021-04-17", "DE0002", "09:00"))

	out := Concat(a, nil, b)

	assert.Equal(t, []string{"ISIN", "Date", "Time"}, out.ColumnNames())
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"DE0001", "2021-04-16", ""}, out.Row(0))
	assert.Equal(t, []string{"DE0002", "2021-04-17", "09:00"}, out.Row(1))
}

func TestAppendRejectsWrongWidth(t *testing.T) {
	tb := Strings("a", "b")
	assert.Error(t, tb.Append("only-one"))
	assert.True(t, tb.IsEmpty())
}

func TestMissing(t *testing.T) {
	tb := Strings("ISIN", "Date")
	assert.Equal(t, []string{"Time", "StartPrice"}, tb.Missing("ISIN", "Time", "Date", "StartPrice"))
	assert.Nil(t, tb.Missing("Date"))
}

func TestDecodeCSV(t *testing.T) {
	src := "ISIN,Date,Time,StartPrice\n" +
		"DE0001,2021-04-16,09:00,100.5\n" +
		"DE0001,2021-04-16,09:01,\n"

	tb, err := Codec{}.Decode(strings.NewReader(src), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"ISIN", "Date", "Time", "StartPrice"}, tb.ColumnNames())
	require.Equal(t, 2, tb.Len())
	v, ok := tb.Cell(1, "StartPrice")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestDecodeCSVEmptyBody(t *testing.T) {
	tb, err := Codec{}.Decode(strings.NewReader(""), CSV)
	require.NoError(t, err)
	assert.True(t, tb.IsEmpty())
	assert.Empty(t, tb.ColumnNames())
}

func TestDecodeCSVSemicolon(t *testing.T) {
	tb, err := Codec{Comma: ';'}.Decode(strings.NewReader("a;b\n1;2\n"), CSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tb.Row(0))
}

func TestEncodeCSV(t *testing.T) {
	tb := Strings("ISIN", "change")
	require.NoError(t, tb.Append("DE0001", ""))
	require.NoError(t, tb.Append("DE0001", "10.00"))

	var buf bytes.Buffer
	require.NoError(t, Codec{}.Encode(&buf, tb, CSV))
	assert.Equal(t, "ISIN,change\nDE0001,\nDE0001,10.00\n", buf.String())
}

func TestParquetKeepsKindsAndNulls(t *testing.T) {
	tb := New(
		Column{Name: "isin", Kind: String},
		Column{Name: "opening_price", Kind: Float},
		Column{Name: "volume", Kind: Int},
	)
	require.NoError(t, tb.Append("DE0001", "100.25", "35"))
	require.NoError(t, tb.Append("DE0002", "", "7"))

	var buf bytes.Buffer
	require.NoError(t, Codec{}.Encode(&buf, tb, Parquet))

	out, err := Codec{}.Decode(&buf, Parquet)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	for i, want := range []map[string]string{
		{"isin": "DE0001", "opening_price": "100.25", "volume": "35"},
		{"isin": "DE0002", "opening_price": "", "volume": "7"},
	} {
		for col, v := range want {
			got, ok := out.Cell(i, col)
			require.True(t, ok, col)
			assert.Equal(t, v, got, "row %d column %s", i, col)
		}
	}

	idx, _ := out.Index("opening_price")
	assert.Equal(t, Float, out.Columns()[idx].Kind)
}

func TestParquetKeepsColumnOrder(t *testing.T) {
	tb := New(
		Column{Name: "isin", Kind: String},
		Column{Name: "date", Kind: String},
		Column{Name: "opening_price_eur", Kind: Float},
		Column{Name: "change_prev_closing_%", Kind: Float},
	)
	require.NoError(t, tb.Append("DE0001", "2021-04-16", "110.00", ""))

	var buf bytes.Buffer
	require.NoError(t, Codec{}.Encode(&buf, tb, Parquet))

	out, err := Codec{}.Decode(&buf, Parquet)
	require.NoError(t, err)
	assert.Equal(t, tb.ColumnNames(), out.ColumnNames())
	assert.Equal(t, []string{"DE0001", "2021-04-16", "110", ""}, out.Row(0))
}

func TestParquetRejectsBadNumber(t *testing.T) {
	tb := New(Column{Name: "x", Kind: Float})
	require.NoError(t, tb.Append("not-a-number"))
	assert.Error(t, Codec{}.Encode(&bytes.Buffer{}, tb, Parquet))
}

func TestFormats(t *testing.T) {
	f, err := FormatFromKey("2021-04-16/trades_0900.csv")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)

	f, err = ParseFormat(" Parquet ")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = FormatFromKey("no-extension")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	err = Codec{}.Encode(&bytes.Buffer{}, Empty(), Format("json"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
