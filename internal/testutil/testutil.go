// Package testutil provides test utilities for deltastage, including:
//   - Miniredis helpers for the run lock (miniredis.go)
//   - File-backed sqlite source databases with a small operational schema (sqlite.go)
//   - Temporary local object stores (storage.go)
//
// None of the helpers need Docker or network access.
package testutil
