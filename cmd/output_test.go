package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/ethpandaops/deltastage/pkg/stage"
	"github.com/ethpandaops/deltastage/pkg/watermark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *pipeline.Report {
	started := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 15, 8, 45, 10, 0, time.UTC)

	return &pipeline.Report{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Tables: []pipeline.TableReport{
			{Table: "address", Status: stage.StatusSuccess, Since: watermark.SentinelMin, Until: watermark.SentinelMin, Skipped: true},
			{Table: "staff", Status: stage.StatusSuccess, Rows: 5, Since: watermark.SentinelMin, Until: until, Location: "s3://staging/staff.json"},
			{Table: "department", Status: stage.StatusFailure, Kind: errkind.StorageBackend, Error: "an error occurred (NoSuchBucket)"},
		},
	}
}

func TestPrintReport_Text(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printReport(&buf, sampleReport(), outputText))

	out := buf.String()
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "s3://staging/staff.json")
	assert.Contains(t, out, "2024-01-15T08:45:10Z")
	assert.Contains(t, out, "skipped (no changes)")
	assert.Contains(t, out, "storage_backend: an error occurred (NoSuchBucket)")
	assert.Contains(t, out, "Watermark not published (run run-1)")
}

func TestPrintReport_JSON(t *testing.T) {
	report := sampleReport()
	report.Published = true
	report.WatermarkLocation = "s3://staging/timestamp_table.json"

	var buf bytes.Buffer

	require.NoError(t, printReport(&buf, report, outputJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Equal(t, true, decoded["published"])

	tables, ok := decoded["tables"].([]any)
	require.True(t, ok)
	require.Len(t, tables, 3)
	assert.Equal(t, "Failure", tables[2].(map[string]any)["result"])
}

func TestPrintReport_Nil(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printReport(&buf, nil, outputText))
	assert.Empty(t, buf.String())
}

func TestPrintWatermark(t *testing.T) {
	w := watermark.Watermark{
		"staff":   time.Date(2024, 1, 15, 8, 45, 10, 0, time.UTC),
		"address": watermark.SentinelMin,
	}

	var text bytes.Buffer
	require.NoError(t, printWatermark(&text, w, outputText))
	assert.Contains(t, text.String(), "LAST MODIFIED")
	assert.Contains(t, text.String(), "2024-01-15T08:45:10Z")
	assert.Less(t, bytes.Index(text.Bytes(), []byte("address")), bytes.Index(text.Bytes(), []byte("staff")))

	var raw bytes.Buffer
	require.NoError(t, printWatermark(&raw, w, outputJSON))

	decoded, err := watermark.Decode(bytes.TrimSpace(raw.Bytes()))
	require.NoError(t, err)
	assert.True(t, w.Equal(decoded))
}

func TestPrintTables(t *testing.T) {
	tables := []catalog.Table{
		{Schema: "public", Name: "staff", Columns: []catalog.Column{{Name: "staff_id", DataType: "integer"}, {Name: "last_updated", DataType: "timestamp"}}},
	}

	var summary bytes.Buffer
	require.NoError(t, printTables(&summary, tables, false))
	assert.Contains(t, summary.String(), "public")
	assert.Contains(t, summary.String(), "staff")

	var columns bytes.Buffer
	require.NoError(t, printTables(&columns, tables, true))
	assert.Contains(t, columns.String(), "last_updated")
	assert.Contains(t, columns.String(), "timestamp")
}

func TestCheckOutput(t *testing.T) {
	assert.NoError(t, checkOutput(outputText))
	assert.NoError(t, checkOutput(outputJSON))
	assert.True(t, errors.Is(checkOutput("yaml"), ErrUnsupportedOutput))
}
