package stage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/extract"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Format is the serialization of a staged object and its key extension
type Format string

const (
	// FormatJSON stages {"table", "columns", "rows"} documents
	FormatJSON Format = "json"
	// FormatCSV stages a header row followed by one record per row
	FormatCSV Format = "csv"
	// FormatParquet stages a SNAPPY-compressed parquet file
	FormatParquet Format = "parquet"
)

var (
	// ErrUnsupportedFormat is returned for unknown formats
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrRowWidth is returned when a row does not match the column count
	ErrRowWidth = errors.New("row width does not match columns")
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// batchDocument is the JSON layout of a staged batch. Rows are positional so column order is kept.
type batchDocument struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Encode serializes a row batch
func Encode(format Format, batch *extract.RowBatch) ([]byte, error) {
	width := len(batch.Columns)
	for i, row := range batch.Rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrRowWidth, i, len(row), width)
		}
	}

	switch format {
	case FormatJSON:
		return encodeJSON(batch)
	case FormatCSV:
		return encodeCSV(batch)
	case FormatParquet:
		return encodeParquet(batch)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func encodeJSON(batch *extract.RowBatch) ([]byte, error) {
	doc := batchDocument{
		Table:   batch.Table,
		Columns: batch.ColumnNames(),
		Rows:    make([][]any, 0, len(batch.Rows)),
	}

	for _, row := range batch.Rows {
		out := make([]any, len(row))
		for i, v := range row {
			out[i] = jsonValue(v)
		}

		doc.Rows = append(doc.Rows, out)
	}

	return json.Marshal(doc)
}

func encodeCSV(batch *extract.RowBatch) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)

	if err := w.Write(batch.ColumnNames()); err != nil {
		return nil, err
	}

	record := make([]string, len(batch.Columns))

	for _, row := range batch.Rows {
		for i, v := range row {
			record[i] = textValue(v)
		}

		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encodeParquet(batch *extract.RowBatch) ([]byte, error) {
	schema, err := parquetSchema(batch.Columns)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)

	pw, err := writer.NewJSONWriter(schema, pfw, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range batch.Rows {
		record := make(map[string]any, len(row))

		for j, v := range row {
			col := batch.Columns[j]

			value, err := parquetValue(parquetType(col.DataType), v)
			if err != nil {
				_ = pw.WriteStop()

				return nil, fmt.Errorf("row %d column %s: %w", i, col.Name, err)
			}

			record[col.Name] = value
		}

		line, err := json.Marshal(record)
		if err != nil {
			_ = pw.WriteStop()

			return nil, err
		}

		if err := pw.Write(string(line)); err != nil {
			_ = pw.WriteStop()

			return nil, fmt.Errorf("failed to write parquet row %d: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finish parquet file: %w", err)
	}

	_ = pfw.Close()

	return buf.Bytes(), nil
}

func parquetSchema(columns []catalog.Column) (string, error) {
	fields := make([]map[string]string, 0, len(columns))

	for _, c := range columns {
		tag := fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", c.Name, parquetType(c.DataType))
		if parquetType(c.DataType) == "BYTE_ARRAY" {
			tag = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", c.Name)
		}

		fields = append(fields, map[string]string{"Tag": tag})
	}

	out, err := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	})
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// parquetType maps a declared SQL type to a parquet physical type. Exact numerics stay strings.
func parquetType(dataType string) string {
	t := strings.ToUpper(dataType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}

	switch strings.TrimSpace(t) {
	case "BOOLEAN", "BOOL", "BIT":
		return "BOOLEAN"
	case "INTEGER", "INT", "BIGINT", "SMALLINT", "TINYINT", "INT2", "INT4", "INT8":
		return "INT64"
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION":
		return "DOUBLE"
	default:
		return "BYTE_ARRAY"
	}
}

func parquetValue(physical string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch physical {
	case "INT64":
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		default:
			return strconv.ParseInt(textValue(v), 10, 64)
		}
	case "DOUBLE":
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		default:
			return strconv.ParseFloat(textValue(v), 64)
		}
	case "BOOLEAN":
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		default:
			return strconv.ParseBool(textValue(v))
		}
	default:
		return textValue(v), nil
	}
}

// jsonValue converts driver values into JSON friendly values
func jsonValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return x
	}
}

// textValue renders driver values for CSV cells and string columns
func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
