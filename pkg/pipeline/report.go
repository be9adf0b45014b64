package pipeline

import (
	"time"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/stage"
	"github.com/ethpandaops/deltastage/pkg/watermark"
)

// TableReport is the outcome of one table in a run
type TableReport struct {
	Table    string       `json:"table"`
	Status   stage.Status `json:"result"`
	Kind     errkind.Kind `json:"kind,omitempty"`
	Rows     int          `json:"rows"`
	Since    time.Time    `json:"since"`
	Until    time.Time    `json:"until"`
	Location string       `json:"location,omitempty"`
	Skipped  bool         `json:"skipped,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// OK reports whether the table was staged
func (t *TableReport) OK() bool {
	return t.Status == stage.StatusSuccess
}

// Report summarizes a run
type Report struct {
	RunID             string              `json:"runId"`
	StartedAt         time.Time           `json:"startedAt"`
	FinishedAt        time.Time           `json:"finishedAt"`
	Tables            []TableReport       `json:"tables"`
	Published         bool                `json:"published"`
	Watermark         watermark.Watermark `json:"watermark,omitempty"`
	WatermarkLocation string              `json:"watermarkLocation,omitempty"`
}

// Failed returns the tables that were not staged
func (r *Report) Failed() []TableReport {
	var failed []TableReport

	for i := range r.Tables {
		if !r.Tables[i].OK() {
			failed = append(failed, r.Tables[i])
		}
	}

	return failed
}

// Succeeded reports whether every table was staged and the watermark published
func (r *Report) Succeeded() bool {
	return r.Published && len(r.Failed()) == 0
}

// Rows returns the total number of rows staged
func (r *Report) Rows() int {
	total := 0
	for i := range r.Tables {
		total += r.Tables[i].Rows
	}

	return total
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
