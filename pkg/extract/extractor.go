// Package extract selects the rows of a source table changed within a watermark interval
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/query"
	"github.com/ethpandaops/deltastage/pkg/source"
	"github.com/sirupsen/logrus"
)

// RowBatch holds the changed rows of one table. Every row has one value per column,
// in the table's declared column order.
type RowBatch struct {
	Table   string
	Columns []catalog.Column
	Rows    [][]any
	Since   time.Time
	Until   time.Time
}

// Len returns the number of rows
func (b *RowBatch) Len() int {
	return len(b.Rows)
}

// ColumnNames returns the batch column names in order
func (b *RowBatch) ColumnNames() []string {
	names := make([]string, 0, len(b.Columns))
	for _, c := range b.Columns {
		names = append(names, c.Name)
	}

	return names
}

// Extractor reads deltas from the source database
type Extractor interface {
	Extract(ctx context.Context, table catalog.Table, since, until time.Time) (*RowBatch, error)
}

type extractor struct {
	log      logrus.FieldLogger
	db       *sql.DB
	dialect  source.Dialect
	engine   *query.Engine
	modified string
}

// NewExtractor creates an extractor. modified is the modification timestamp column.
func NewExtractor(log logrus.FieldLogger, db *sql.DB, dialect source.Dialect, modified string) Extractor {
	return &extractor{
		log:      log.WithField("component", "extractor"),
		db:       db,
		dialect:  dialect,
		engine:   query.NewEngine(dialect),
		modified: modified,
	}
}

// Extract selects rows with since < modified <= until, projecting the declared columns.
// An interval with since after until yields an empty batch.
func (e *extractor) Extract(ctx context.Context, table catalog.Table, since, until time.Time) (*RowBatch, error) {
	batch := &RowBatch{
		Table:   table.Name,
		Columns: table.Columns,
		Rows:    [][]any{},
		Since:   since,
		Until:   until,
	}

	log := e.log.WithField("table", table.Name)

	if since.After(until) {
		log.WithFields(logrus.Fields{
			"since": since,
			"until": until,
		}).Warn("Watermark is ahead of the source, treating table as unchanged")

		return batch, nil
	}

	if since.Equal(until) {
		return batch, nil
	}

	stmt, err := e.engine.Delta(table.Schema, table.Name, table.ColumnNames(), e.modified)
	if err != nil {
		return nil, fmt.Errorf("failed to render delta query for %s: %w", table.Name, err)
	}

	dataType := table.ColumnType(e.modified)

	rows, err := e.db.QueryContext(ctx, stmt, e.dialect.BindTime(since, dataType), e.dialect.BindTime(until, dataType))
	if err != nil {
		return nil, errkind.Wrap(fmt.Sprintf("extract %s", table.Name), err)
	}
	defer rows.Close()

	width := len(table.Columns)

	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, errkind.Wrap(fmt.Sprintf("scan %s", table.Name), err)
		}

		batch.Rows = append(batch.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(fmt.Sprintf("extract %s", table.Name), err)
	}

	log.WithFields(logrus.Fields{
		"rows":  batch.Len(),
		"since": since,
		"until": until,
	}).Debug("Extracted delta")

	return batch, nil
}
