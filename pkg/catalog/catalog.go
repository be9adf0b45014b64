// Package catalog enumerates the extractable tables of the source database
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/source"
	"github.com/sirupsen/logrus"
)

// Column is a declared column of a source table
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Table is an extractable source table with its columns in declared order
type Table struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns the column names in declared order
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}

	return names
}

// HasColumn reports whether the table declares a column
func (t *Table) HasColumn(name string) bool {
	return slices.ContainsFunc(t.Columns, func(c Column) bool { return c.Name == name })
}

// ColumnType returns the declared data type of a column, or "" when the table has no such column
func (t *Table) ColumnType(name string) string {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.DataType
		}
	}

	return ""
}

// Names returns the names of a table list
func Names(tables []Table) []string {
	names := make([]string, 0, len(tables))
	for i := range tables {
		names = append(names, tables[i].Name)
	}

	return names
}

// Reader lists extractable tables
type Reader interface {
	Tables(ctx context.Context) ([]Table, error)
}

type reader struct {
	log     logrus.FieldLogger
	db      *sql.DB
	dialect source.Dialect
	cfg     *source.Config
}

// NewReader creates a catalog reader over an open source database
func NewReader(log logrus.FieldLogger, db *sql.DB, dialect source.Dialect, cfg *source.Config) Reader {
	return &reader{
		log:     log.WithField("component", "catalog"),
		db:      db,
		dialect: dialect,
		cfg:     cfg,
	}
}

// Tables returns the base tables of the configured schema that pass the include and exclude
// lists and declare the modification column, ordered by name.
func (r *reader) Tables(ctx context.Context) ([]Table, error) {
	schema := r.cfg.Schema
	if schema == "" {
		schema = r.dialect.DefaultSchema()
	}

	if slices.Contains(r.dialect.SystemSchemas(), schema) {
		return nil, fmt.Errorf("%w: %s", source.ErrSystemSchema, schema)
	}

	names, err := r.tableNames(ctx, schema)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))

	for _, name := range names {
		if !r.cfg.Includes(name) {
			r.log.WithField("table", name).Debug("Skipping excluded table")
			continue
		}

		columns, err := r.columns(ctx, schema, name)
		if err != nil {
			return nil, err
		}

		table := Table{Schema: schema, Name: name, Columns: columns}

		if !table.HasColumn(r.cfg.ModifiedColumn) {
			r.log.WithFields(logrus.Fields{
				"table":  name,
				"column": r.cfg.ModifiedColumn,
			}).Warn("Skipping table without modification column")

			continue
		}

		tables = append(tables, table)
	}

	r.log.WithField("tables", len(tables)).Debug("Read source catalog")

	return tables, nil
}

func (r *reader) tableNames(ctx context.Context, schema string) ([]string, error) {
	query, args := r.dialect.TablesQuery(schema)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap("list tables", err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errkind.Wrap("scan table name", err)
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap("list tables", err)
	}

	// Byte order, independent of the database collation.
	sort.Strings(names)

	return names, nil
}

func (r *reader) columns(ctx context.Context, schema, table string) ([]Column, error) {
	query, args := r.dialect.ColumnsQuery(schema, table)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(fmt.Sprintf("list columns of %s", table), err)
	}
	defer rows.Close()

	var columns []Column

	for rows.Next() {
		var (
			col      Column
			dataType sql.NullString
		)

		if err := rows.Scan(&col.Name, &dataType); err != nil {
			return nil, errkind.Wrap(fmt.Sprintf("scan column of %s", table), err)
		}

		col.DataType = dataType.String
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(fmt.Sprintf("list columns of %s", table), err)
	}

	return columns, nil
}
