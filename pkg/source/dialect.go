package source

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/deltastage/pkg/credentials"
	mssql "github.com/microsoft/go-mssqldb"
)

const (
	// DriverPostgres selects the lib/pq driver
	DriverPostgres = "postgres"
	// DriverSQLServer selects the go-mssqldb driver
	DriverSQLServer = "sqlserver"
	// DriverSQLite selects the go-sqlite3 driver
	DriverSQLite = "sqlite3"

	sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"
)

// Dialect hides the per-vendor differences in catalog queries, quoting and parameter binding
type Dialect interface {
	Name() string
	DefaultSchema() string
	// SystemSchemas are never enumerated
	SystemSchemas() []string
	Placeholder(n int) string
	QuoteIdent(name string) string
	QualifiedTable(schema, table string) string
	// TablesQuery returns base table names of schema, ordered by name
	TablesQuery(schema string) (string, []any)
	// ColumnsQuery returns (column_name, data_type) of a table in declared order
	ColumnsQuery(schema, table string) (string, []any)
	// BindTime converts a watermark bound into a parameter comparable with a column of dataType
	BindTime(t time.Time, dataType string) any
	DSN(cfg *Config, creds *credentials.Credentials) (string, error)
}

// DialectFor returns the dialect of a driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverSQLServer:
		return sqlserverDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string          { return DriverPostgres }
func (postgresDialect) DefaultSchema() string { return "public" }

func (postgresDialect) SystemSchemas() []string {
	return []string{"pg_catalog", "information_schema", "pg_toast"}
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d postgresDialect) QualifiedTable(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (postgresDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, []any{schema}
}

func (postgresDialect) ColumnsQuery(schema, table string) (string, []any) {
	return `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, []any{schema, table}
}

func (postgresDialect) BindTime(t time.Time, _ string) any { return t }

func (postgresDialect) DSN(cfg *Config, creds *credentials.Credentials) (string, error) {
	if creds == nil {
		return "", ErrCredentialsRequired
	}

	parts := []string{
		"host=" + quoteDSNValue(creds.Host),
		"port=" + quoteDSNValue(creds.Port),
		"user=" + quoteDSNValue(creds.Username),
		"password=" + quoteDSNValue(creds.Password),
		"dbname=" + quoteDSNValue(creds.DBName),
		"sslmode=" + quoteDSNValue(cfg.SSLMode),
	}

	if cfg.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(cfg.ConnectTimeout.Seconds())))
	}

	return strings.Join(parts, " "), nil
}

// quoteDSNValue quotes a libpq key/value connection string value
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}

	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)

	return "'" + v + "'"
}

type sqlserverDialect struct{}

func (sqlserverDialect) Name() string          { return DriverSQLServer }
func (sqlserverDialect) DefaultSchema() string { return "dbo" }

func (sqlserverDialect) SystemSchemas() []string {
	return []string{"sys", "INFORMATION_SCHEMA"}
}

func (sqlserverDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (sqlserverDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d sqlserverDialect) QualifiedTable(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (sqlserverDialect) TablesQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, []any{schema}
}

func (sqlserverDialect) ColumnsQuery(schema, table string) (string, []any) {
	return `SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`, []any{schema, table}
}

// BindTime sends legacy datetime bounds as datetime. A datetime2 parameter is compared after
// widening the column, which can place the stored MAX just above the bound.
func (sqlserverDialect) BindTime(t time.Time, dataType string) any {
	if strings.EqualFold(dataType, "datetime") {
		return mssql.DateTime1(t)
	}

	return t
}

func (sqlserverDialect) DSN(cfg *Config, creds *credentials.Credentials) (string, error) {
	if creds == nil {
		return "", ErrCredentialsRequired
	}

	query := url.Values{}
	query.Set("database", creds.DBName)

	if cfg.ConnectTimeout > 0 {
		query.Set("connection timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}

	if cfg.SSLMode == "disable" {
		query.Set("encrypt", "disable")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     creds.Host + ":" + creds.Port,
		RawQuery: query.Encode(),
	}

	return u.String(), nil
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string            { return DriverSQLite }
func (sqliteDialect) DefaultSchema() string   { return "main" }
func (sqliteDialect) SystemSchemas() []string { return []string{"temp"} }
func (sqliteDialect) Placeholder(_ int) string {
	return "?"
}

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d sqliteDialect) QualifiedTable(_, table string) string {
	return d.QuoteIdent(table)
}

func (sqliteDialect) TablesQuery(_ string) (string, []any) {
	return `SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, nil
}

func (sqliteDialect) ColumnsQuery(_, table string) (string, []any) {
	return `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, []any{table}
}

// BindTime uses the layout go-sqlite3 writes timestamps with, so text comparisons order correctly
func (sqliteDialect) BindTime(t time.Time, _ string) any {
	return t.UTC().Format(sqliteTimeLayout)
}

func (sqliteDialect) DSN(cfg *Config, _ *credentials.Credentials) (string, error) {
	if cfg.Path == "" {
		return "", ErrPathRequired
	}

	return cfg.Path, nil
}
