package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column.
type Column struct {
	Title string
	Width int
}

// Row is a slice of cell values.
type Row []string

// Table renders a lipgloss-styled table.
type Table struct {
	Columns []Column
	Rows    []Row
	SelIdx  int // selected row index (-1 = none)
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols, SelIdx: -1}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// Render returns the full table as a string.
func (t *Table) Render() string {
	return t.RenderRange(0, len(t.Rows))
}

// RenderRange renders the header and rows [from, to). Bounds are clamped.
func (t *Table) RenderRange(from, to int) string {
	from = max(from, 0)
	to = min(to, len(t.Rows))

	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMeta)

	var headers, divider []string
	for _, col := range t.Columns {
		headers = append(headers, headerStyle.Render(pad(col.Title, col.Width)))
		divider = append(divider, dimStyle.Render(strings.Repeat("-", col.Width)))
	}
	sb.WriteString(strings.Join(headers, " "))
	sb.WriteString("\n")
	sb.WriteString(strings.Join(divider, " "))
	sb.WriteString("\n")

	for i := from; i < to; i++ {
		row := t.Rows[i]
		style := cellStyle
		if i == t.SelIdx {
			style = StyleSelected
		}
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			var val string
			if j < len(row) {
				val = row[j]
			}
			cells[j] = style.Render(pad(val, col.Width))
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// pad left-aligns s within exactly width display cells, truncating with an
// ellipsis when it does not fit.
func pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w == width {
		return s
	}
	if w < width {
		return s + strings.Repeat(" ", width-w)
	}
	if width <= 1 {
		return string([]rune(s)[:width])
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	out := string(r) + "…"
	return out + strings.Repeat(" ", width-lipgloss.Width(out))
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		sb.WriteString("  " + key + " " + StyleValue.Render(p[1]) + "\n")
	}
	return StyleBorder.Render(sb.String())
}
