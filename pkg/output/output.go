// Package output renders CLI output as aligned tables or user supplied Go templates
package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/ethpandaops/querycat/pkg/driver"
	"github.com/spf13/cast"
)

// ErrColumnMismatch is returned when a table row does not match its header
var ErrColumnMismatch = errors.New("row has a different number of columns than the header")

// TemplateEngine renders data through text/template with Sprig functions
type TemplateEngine struct {
	funcMap template.FuncMap
}

// NewTemplateEngine creates a new template engine with Sprig functions
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		funcMap: sprig.TxtFuncMap(),
	}
}

// Render executes content against data and returns the result
func (t *TemplateEngine) Render(content string, data interface{}) (string, error) {
	tmpl, err := template.New("output").Funcs(t.funcMap).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// RenderEach renders content once per item, one line each
func (t *TemplateEngine) RenderEach(w io.Writer, content string, items []interface{}) error {
	for _, item := range items {
		out, err := t.Render(content, item)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(out, "\n")); err != nil {
			return err
		}
	}

	return nil
}

// Table writes headers and rows as tab-aligned columns
func Table(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for i, row := range rows {
		if len(row) != len(headers) {
			return fmt.Errorf("%w: row %d", ErrColumnMismatch, i)
		}
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// ResultTable writes a backend query result as a table. Cells are stringified
// with cast; values that cannot be converted fall back to fmt.
func ResultTable(w io.Writer, result *driver.Result) error {
	if result == nil || len(result.Columns) == 0 {
		_, err := fmt.Fprintln(w, "(no results)")
		return err
	}

	headers := make([]string, len(result.Columns))
	for i, c := range result.Columns {
		headers[i] = strings.ToUpper(c)
	}

	rows := make([][]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		row := make([]string, len(result.Columns))
		for i, c := range result.Columns {
			row[i] = Cell(r[c])
		}
		rows = append(rows, row)
	}

	if err := Table(w, headers, rows); err != nil {
		return err
	}

	suffix := ""
	if result.Partial {
		suffix = " (partial)"
	}
	_, err := fmt.Fprintf(w, "\n%d rows%s\n", len(result.Rows), suffix)

	return err
}

// Cell formats a single value for table output
func Cell(v interface{}) string {
	if v == nil {
		return "-"
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if s == "" {
		return "-"
	}

	return s
}
