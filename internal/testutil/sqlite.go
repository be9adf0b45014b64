package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for fixture databases
)

// SQLiteTimeLayout is the layout go-sqlite3 uses when it binds time.Time values
const SQLiteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// SQLiteTime formats a timestamp the way fixture rows store it
func SQLiteTime(ts time.Time) string {
	return ts.UTC().Format(SQLiteTimeLayout)
}

// NewSQLiteDB creates a file-backed sqlite database in a temp dir and runs the statements.
// The database is closed when the test completes.
func NewSQLiteDB(t *testing.T, statements ...string) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "source.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close sqlite database: %v", err)
		}
	})

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to run fixture statement %q: %v", stmt, err)
		}
	}

	return db, path
}

// StaffUpdates are the last_updated values of the staff fixture rows, oldest first
//
//nolint:gochecknoglobals // Shared read-only fixture data
var StaffUpdates = []time.Time{
	time.Date(2022, 11, 3, 14, 20, 51, 563000000, time.UTC),
	time.Date(2022, 11, 3, 14, 20, 51, 563000000, time.UTC),
	time.Date(2023, 2, 14, 9, 30, 0, 0, time.UTC),
	time.Date(2023, 6, 1, 12, 0, 0, 250000000, time.UTC),
	time.Date(2024, 1, 15, 8, 45, 10, 0, time.UTC),
}

// DepartmentUpdate is the last_updated value of every department fixture row
//
//nolint:gochecknoglobals // Shared read-only fixture data
var DepartmentUpdate = time.Date(2022, 11, 3, 14, 20, 49, 962000000, time.UTC)

// StaffColumns are the declared columns of the staff fixture table
//
//nolint:gochecknoglobals // Shared read-only fixture data
var StaffColumns = []string{
	"staff_id", "first_name", "last_name", "department_id", "email_address", "created_at", "last_updated",
}

// SourceFixture returns statements creating a small operational schema: staff (5 rows, 7 columns),
// department (2 rows), an empty address table, a table without last_updated and a view.
func SourceFixture() []string {
	stmts := []string{
		`CREATE TABLE staff (
			staff_id INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			department_id INTEGER NOT NULL,
			email_address TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE department (
			department_id INTEGER PRIMARY KEY,
			department_name TEXT NOT NULL,
			location TEXT,
			manager TEXT,
			created_at TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE address (
			address_id INTEGER PRIMARY KEY,
			address_line_1 TEXT NOT NULL,
			city TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE schema_notes (note TEXT)`,
		`CREATE VIEW staff_emails AS SELECT staff_id, email_address, last_updated FROM staff`,
	}

	names := [][2]string{
		{"Jeremie", "Franey"},
		{"Deron", "Beier"},
		{"Jeanette", "Erdman"},
		{"Ana", "Glover"},
		{"Magdalena", "Zieme"},
	}

	for i, name := range names {
		ts := SQLiteTime(StaffUpdates[i])
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO staff VALUES (%d, '%s', '%s', %d, '%s@terrifictotes.com', '%s', '%s')`,
			i+1, name[0], name[1], i%2+1, strings.ToLower(name[0]+"."+name[1]), ts, ts,
		))
	}

	dept := SQLiteTime(DepartmentUpdate)
	stmts = append(stmts,
		fmt.Sprintf(`INSERT INTO department VALUES (1, 'Sales', 'Manchester', 'Richard Roma', '%s', '%s')`, dept, dept),
		fmt.Sprintf(`INSERT INTO department VALUES (2, 'Purchasing', 'Manchester', 'Naomi Lapaglia', '%s', '%s')`, dept, dept),
	)

	return stmts
}
