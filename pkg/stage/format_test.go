package stage

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch() *extract.RowBatch {
	ts := time.Date(2022, 11, 3, 14, 20, 51, 563000000, time.UTC)

	return &extract.RowBatch{
		Table: "staff",
		Columns: []catalog.Column{
			{Name: "staff_id", DataType: "integer"},
			{Name: "first_name", DataType: "text"},
			{Name: "salary", DataType: "numeric(10,2)"},
			{Name: "active", DataType: "boolean"},
			{Name: "last_updated", DataType: "timestamp without time zone"},
		},
		Rows: [][]any{
			{int64(1), "Jeremie", []byte("1200.50"), true, ts},
			{int64(2), "Deron, Jr", nil, false, ts},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "CSV", "parquet"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err)
	}

	_, err := ParseFormat("avro")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestEncodeJSON(t *testing.T) {
	data, err := Encode(FormatJSON, testBatch())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"table": "staff",
		"columns": ["staff_id", "first_name", "salary", "active", "last_updated"],
		"rows": [
			[1, "Jeremie", "1200.50", true, "2022-11-03T14:20:51.563Z"],
			[2, "Deron, Jr", null, false, "2022-11-03T14:20:51.563Z"]
		]
	}`, string(data))
}

func TestEncodeJSON_EmptyBatch(t *testing.T) {
	batch := testBatch()
	batch.Rows = nil

	data, err := Encode(FormatJSON, batch)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rows":[]`)
}

func TestEncodeCSV(t *testing.T) {
	data, err := Encode(FormatCSV, testBatch())
	require.NoError(t, err)

	expected := "staff_id,first_name,salary,active,last_updated\n" +
		"1,Jeremie,1200.50,true,2022-11-03T14:20:51.563Z\n" +
		"2,\"Deron, Jr\",,false,2022-11-03T14:20:51.563Z\n"
	assert.Equal(t, expected, string(data))
}

func TestEncodeParquet(t *testing.T) {
	data, err := Encode(FormatParquet, testBatch())
	require.NoError(t, err)

	require.Greater(t, len(data), 8)
	assert.True(t, bytes.HasPrefix(data, []byte("PAR1")))
	assert.True(t, bytes.HasSuffix(data, []byte("PAR1")))
}

func TestEncodeParquet_BadValue(t *testing.T) {
	batch := testBatch()
	batch.Rows[0][0] = "not-a-number"

	_, err := Encode(FormatParquet, batch)
	assert.Error(t, err)
}

func TestEncode_RowWidth(t *testing.T) {
	batch := testBatch()
	batch.Rows = append(batch.Rows, []any{int64(3)})

	_, err := Encode(FormatCSV, batch)
	assert.ErrorIs(t, err, ErrRowWidth)
}

func TestParquetType(t *testing.T) {
	tests := map[string]string{
		"integer":                     "INT64",
		"BIGINT":                      "INT64",
		"int(11)":                     "INT64",
		"double precision":            "DOUBLE",
		"real":                        "DOUBLE",
		"boolean":                     "BOOLEAN",
		"bit":                         "BOOLEAN",
		"numeric(10,2)":               "BYTE_ARRAY",
		"timestamp without time zone": "BYTE_ARRAY",
		"TEXT":                        "BYTE_ARRAY",
	}

	for in, expected := range tests {
		assert.Equal(t, expected, parquetType(in), in)
	}
}
