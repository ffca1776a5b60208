// Package format renders tables for the CLI and the audit reports.
package format

import (
	"maps"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode is a table output format.
type Mode int

const (
	ASCII    Mode = iota // terminal tables
	Markdown             // GitHub-flavoured Markdown
	CSV
)

// ParseMode maps "table", "markdown" and "csv" to a Mode. Unknown names
// fall back to ASCII.
func ParseMode(s string) Mode {
	switch s {
	case "markdown", "md":
		return Markdown
	case "csv":
		return CSV
	default:
		return ASCII
	}
}

// Table collects a header, rows and an optional footer and renders them in
// the Mode chosen at creation. Column settings accumulate; setting the same
// column twice keeps the last value.
type Table struct {
	w    table.Writer
	mode Mode
	cols map[int]table.ColumnConfig
}

// NewTable returns an empty table rendering in m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{w: w, mode: m, cols: make(map[int]table.ColumnConfig)}
}

// Title sets a caption. Only ASCII tables render it.
func (t *Table) Title(s string) {
	if t.mode == ASCII {
		t.w.SetTitle(s)
	}
}

func (t *Table) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.w.AppendHeader(row)
}

// Row appends a data row; values are printed with fmt.Sprint.
func (t *Table) Row(vals ...any) {
	t.w.AppendRow(table.Row(slices.Clone(vals)))
}

func (t *Table) Footer(vals ...any) {
	t.w.AppendFooter(table.Row(slices.Clone(vals)))
}

// AlignRight right-aligns the given 1-based columns, header and footer
// included.
func (t *Table) AlignRight(cols ...int) {
	for _, n := range cols {
		c := t.column(n)
		c.Align, c.AlignHeader, c.AlignFooter = text.AlignRight, text.AlignRight, text.AlignRight
		t.cols[n] = c
	}
}

// Wrap wraps the content of a 1-based column beyond width runes. Only
// ASCII tables wrap; Markdown and CSV cells stay on one line.
func (t *Table) Wrap(col, width int) {
	if t.mode != ASCII {
		return
	}
	c := t.column(col)
	c.WidthMax = width
	t.cols[col] = c
}

func (t *Table) column(n int) table.ColumnConfig {
	if c, ok := t.cols[n]; ok {
		return c
	}
	return table.ColumnConfig{Number: n}
}

// String renders the table.
func (t *Table) String() string {
	if len(t.cols) > 0 {
		cfgs := make([]table.ColumnConfig, 0, len(t.cols))
		for _, n := range slices.Sorted(maps.Keys(t.cols)) {
			cfgs = append(cfgs, t.cols[n])
		}
		t.w.SetColumnConfigs(cfgs)
	}
	switch t.mode {
	case Markdown:
		return t.w.RenderMarkdown()
	case CSV:
		return t.w.RenderCSV()
	default:
		return t.w.Render()
	}
}
