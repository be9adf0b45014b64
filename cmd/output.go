package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/ethpandaops/deltastage/pkg/watermark"
)

// Output formats
const (
	outputText = "text"
	outputJSON = "json"
)

// ErrUnsupportedOutput is returned for unknown --output values
var ErrUnsupportedOutput = errors.New("unsupported output format")

func checkOutput(output string) error {
	if output != outputText && output != outputJSON {
		return fmt.Errorf("%w: %s", ErrUnsupportedOutput, output)
	}

	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func formatTime(ts time.Time) string {
	if ts.Equal(watermark.SentinelMin) {
		return "-"
	}

	return watermark.FormatTimestamp(ts)
}

func printReport(out io.Writer, report *pipeline.Report, output string) error {
	if report == nil {
		return nil
	}

	if output == outputJSON {
		return writeJSON(out, report)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tRESULT\tROWS\tSINCE\tUNTIL\tDETAIL")

	for _, t := range report.Tables {
		detail := t.Location
		if t.Skipped {
			detail = "skipped (no changes)"
		}

		if !t.OK() {
			detail = fmt.Sprintf("%s: %s", t.Kind, t.Error)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			t.Table, t.Status, t.Rows, formatTime(t.Since), formatTime(t.Until), detail)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if report.Published {
		_, _ = fmt.Fprintf(out, "\nWatermark published to %s (run %s, %s)\n",
			report.WatermarkLocation, report.RunID, report.Duration().Round(time.Millisecond))
	} else {
		_, _ = fmt.Fprintf(out, "\nWatermark not published (run %s)\n", report.RunID)
	}

	return nil
}

func printTables(out io.Writer, tables []catalog.Table, columns bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if columns {
		_, _ = fmt.Fprintln(w, "TABLE\tPOSITION\tCOLUMN\tTYPE")

		for _, t := range tables {
			for i, c := range t.Columns {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.Name, i+1, c.Name, c.DataType)
			}
		}

		return w.Flush()
	}

	_, _ = fmt.Fprintln(w, "SCHEMA\tTABLE\tCOLUMNS")

	for _, t := range tables {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", t.Schema, t.Name, len(t.Columns))
	}

	return w.Flush()
}

func printWatermark(out io.Writer, w watermark.Watermark, output string) error {
	if output == outputJSON {
		data, err := watermark.Encode(w)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, string(data))

		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TABLE\tLAST MODIFIED")

	for _, table := range w.Tables() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", table, formatTime(w[table]))
	}

	return tw.Flush()
}
