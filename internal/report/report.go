// Package report renders the analysis outputs as console tables, markdown,
// JSON, or CSV, and persists them under the output directory.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render output formats.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
)

// Table is one named analysis output: a title for display, a slug used for
// the persisted file name, and string cells. Missing values are empty cells.
type Table struct {
	Name    string
	Title   string
	Columns []string
	Rows    [][]string
}

// Render writes the table in the requested format.
func Render(w io.Writer, t Table, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, t)
	case FormatCSV:
		return renderCSV(w, t)
	case "md", FormatMarkdown:
		return renderMarkdown(w, t)
	case "", FormatTable:
		return renderTable(w, t)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, t Table) error {
	if t.Title != "" {
		_, _ = fmt.Fprintln(w, t.Title)
	}
	if len(t.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(t.Columns))
	for i, col := range t.Columns {
		headerRow[i] = col
	}
	tw.AppendHeader(headerRow)

	for _, cells := range t.Rows {
		row := make(table.Row, len(t.Columns))
		for i := range t.Columns {
			row[i] = cell(cells, i)
		}
		tw.AppendRow(row)
	}

	tw.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(t.Rows))
	return nil
}

func renderJSON(w io.Writer, t Table) error {
	results := make([]map[string]string, 0, len(t.Rows))
	for _, cells := range t.Rows {
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			row[col] = cell(cells, i)
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, t Table) error {
	_, _ = fmt.Fprintln(w, strings.Join(t.Columns, ","))
	for _, cells := range t.Rows {
		values := make([]string, len(t.Columns))
		for i := range t.Columns {
			values[i] = escapeCSV(cell(cells, i))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, t Table) error {
	if t.Title != "" {
		_, _ = fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	if len(t.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(t.Columns, " | "))
	seps := make([]string, len(t.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, cells := range t.Rows {
		values := make([]string, len(t.Columns))
		for i := range t.Columns {
			values[i] = cell(cells, i)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

// cell tolerates short rows so a builder bug renders as blanks, not a panic.
func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// Num formats a statistic with the given number of decimals; missing values
// become empty cells.
func Num(v float64, decimals int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Count formats an integer cell.
func Count(n int) string {
	return strconv.Itoa(n)
}
