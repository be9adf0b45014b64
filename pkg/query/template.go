// Package query renders the extraction SQL for a source dialect
package query

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const (
	// DeltaTemplate selects the declared columns changed in (since, until]
	DeltaTemplate = `SELECT {{ .columns | join ", " }} FROM {{ .table }} ` +
		`WHERE {{ .modified }} > {{ param 1 }} AND {{ .modified }} <= {{ param 2 }}`

	// MaxTemplate selects the newest modification timestamp of a table
	MaxTemplate = `SELECT MAX({{ .modified }}) FROM {{ .table }}`
)

// Dialect is the part of a source dialect the renderer needs
type Dialect interface {
	Placeholder(n int) string
	QuoteIdent(name string) string
	QualifiedTable(schema, table string) string
}

// Engine renders SQL templates with Sprig functions and a dialect-aware `param` function
type Engine struct {
	dialect Dialect
	funcMap template.FuncMap
}

// NewEngine creates a new template engine for a dialect
func NewEngine(dialect Dialect) *Engine {
	funcMap := sprig.TxtFuncMap()
	funcMap["param"] = dialect.Placeholder

	return &Engine{
		dialect: dialect,
		funcMap: funcMap,
	}
}

// Render renders a template with the given variables
func (e *Engine) Render(content string, variables map[string]interface{}) (string, error) {
	tmpl, err := template.New("query").Funcs(e.funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// Delta renders the bounded delta query for a table. Columns keep the order they are given in.
func (e *Engine) Delta(schema, table string, columns []string, modified string) (string, error) {
	quoted := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted = append(quoted, e.dialect.QuoteIdent(col))
	}

	return e.Render(DeltaTemplate, e.variables(schema, table, modified, quoted))
}

// Max renders the MAX(modified) query for a table
func (e *Engine) Max(schema, table, modified string) (string, error) {
	return e.Render(MaxTemplate, e.variables(schema, table, modified, nil))
}

func (e *Engine) variables(schema, table, modified string, columns []string) map[string]interface{} {
	return map[string]interface{}{
		"table":    e.dialect.QualifiedTable(schema, table),
		"modified": e.dialect.QuoteIdent(modified),
		"columns":  columns,
	}
}
